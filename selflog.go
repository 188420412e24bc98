package hyperrelay

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/hyp3rd/hyperrelay/internal/constants"
)

// Diagnostic is a single entry written to the self-log.
type Diagnostic struct {
	Time    time.Time
	Source  string
	Kind    FailureKind
	Message string
	Records int
	Err     error
}

// SelfLog is the process-wide diagnostic channel that receives failures of
// relays configured without their own FailureListener. Implementations must
// be safe for concurrent use and must not panic.
type SelfLog interface {
	Emit(diagnostic Diagnostic)
}

// SelfLogFunc adapts a function to the SelfLog interface.
type SelfLogFunc func(Diagnostic)

// Emit calls f(diagnostic).
func (f SelfLogFunc) Emit(diagnostic Diagnostic) {
	f(diagnostic)
}

// SelfLogOptions configures a WriterSelfLog.
type SelfLogOptions struct {
	// Color configures ANSI highlighting per failure kind.
	Color ColorConfig
	// Rate is the sustained number of lines per second. Zero selects the default; rate.Inf disables throttling.
	Rate rate.Limit
	// Burst is the number of lines that may be written back to back.
	Burst int
}

// WriterSelfLog writes one line per diagnostic to an io.Writer, throttled by a
// token bucket. Lines dropped by the throttle are counted and reported on the
// next line that gets through.
type WriterSelfLog struct {
	mu         sync.Mutex
	out        io.Writer
	colors     map[FailureKind]string
	limiter    *rate.Limiter
	suppressed atomic.Uint64
}

// NewWriterSelfLog creates a self-log writing to out.
func NewWriterSelfLog(out io.Writer, opts SelfLogOptions) *WriterSelfLog {
	if out == nil {
		out = io.Discard
	}

	if opts.Rate == 0 {
		opts.Rate = constants.DefaultSelfLogRate
	}

	if opts.Burst <= 0 {
		opts.Burst = constants.DefaultSelfLogBurst
	}

	var colors map[FailureKind]string

	if opts.Color.Enable && (opts.Color.ForceTTY || IsTerminal(out)) {
		colors = opts.Color.KindColors
		if colors == nil {
			colors = DefaultKindColors()
		}
	}

	return &WriterSelfLog{
		out:     out,
		colors:  colors,
		limiter: rate.NewLimiter(opts.Rate, opts.Burst),
	}
}

// Emit implements SelfLog.
func (w *WriterSelfLog) Emit(diagnostic Diagnostic) {
	if !w.limiter.Allow() {
		w.suppressed.Add(1)

		return
	}

	line := w.format(diagnostic, w.suppressed.Swap(0))

	w.mu.Lock()
	defer w.mu.Unlock()

	_, _ = w.out.Write(line)
}

// Suppressed returns the number of diagnostics dropped by the throttle since the last written line.
func (w *WriterSelfLog) Suppressed() uint64 {
	return w.suppressed.Load()
}

func (w *WriterSelfLog) format(diagnostic Diagnostic, suppressed uint64) []byte {
	var buf bytes.Buffer

	ts := diagnostic.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	buf.WriteString(ts.Format(time.RFC3339))
	buf.WriteString(" hyperrelay ")

	color, colored := w.colors[diagnostic.Kind]
	if colored {
		buf.WriteString(color)
	}

	buf.WriteString(diagnostic.Kind.String())

	if colored {
		buf.WriteString(Reset)
	}

	if diagnostic.Source != "" {
		buf.WriteString(" source=")
		buf.WriteString(diagnostic.Source)
	}

	buf.WriteString(" message=")
	buf.WriteString(strconv.Quote(diagnostic.Message))

	if diagnostic.Records > 0 {
		buf.WriteString(" records=")
		buf.WriteString(strconv.Itoa(diagnostic.Records))
	}

	if diagnostic.Err != nil {
		buf.WriteString(" error=")
		buf.WriteString(strconv.Quote(diagnostic.Err.Error()))
	}

	if suppressed > 0 {
		fmt.Fprintf(&buf, " suppressed=%d", suppressed)
	}

	buf.WriteByte('\n')

	return buf.Bytes()
}

type selfLogRef struct {
	log SelfLog
}

//nolint:gochecknoglobals // the self-log is a process-wide diagnostic channel by contract.
var (
	selfLogDefault = sync.OnceValue(func() *selfLogRef {
		return &selfLogRef{log: NewWriterSelfLog(os.Stderr, SelfLogOptions{Color: DefaultColorConfig()})}
	})
	selfLogCurrent atomic.Pointer[selfLogRef]
)

// CurrentSelfLog returns the active process-wide self-log.
func CurrentSelfLog() SelfLog {
	if ref := selfLogCurrent.Load(); ref != nil {
		return ref.log
	}

	return selfLogDefault().log
}

// SetSelfLog replaces the process-wide self-log and returns a function that
// restores the previous one. A nil log discards diagnostics.
func SetSelfLog(log SelfLog) (restore func()) {
	if log == nil {
		log = SelfLogFunc(func(Diagnostic) {})
	}

	previous := selfLogCurrent.Swap(&selfLogRef{log: log})

	return func() {
		selfLogCurrent.Store(previous)
	}
}

// SelfLogListener returns a FailureListener forwarding every failure to the
// self-log that is current at the time of the report.
func SelfLogListener[T any]() FailureListener[T] {
	return selfLogListener[T]{}
}

type selfLogListener[T any] struct{}

func (selfLogListener[T]) OnFailure(failure Failure[T]) {
	defer func() {
		// The self-log is the last resort; nothing is left to report to.
		_ = recover()
	}()

	CurrentSelfLog().Emit(Diagnostic{
		Time:    time.Now(),
		Source:  failure.Source,
		Kind:    failure.Kind,
		Message: failure.Message,
		Records: len(failure.Records),
		Err:     failure.Err,
	})
}
