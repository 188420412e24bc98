// Package adapter provides a concrete implementation of the relay Logger interface.
//
// The adapter formats lifecycle diagnostics as console lines (optionally
// colored when the output is a terminal) or as one JSON object per line, and
// writes them to an io.Writer. Loggers derived with WithFields share the
// output, the lock and the level of their parent.
package adapter

import (
	"bytes"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/hyperrelay"
	"github.com/hyp3rd/hyperrelay/internal/constants"
)

const (
	defaultBufferSize = 512
	maxPooledBuffer   = 16384

	// Predicted sizes by message type to reduce reallocations.
	jsonBaseSize     = 120
	consoleBaseSize  = 64
	fieldOverhead    = 32
	consoleFieldSize = 24
)

var (
	// ErrNilOutput indicates that no output writer was configured.
	ErrNilOutput = ewrap.New("output writer is required")
	// ErrInvalidEncoding indicates an unknown encoding name.
	ErrInvalidEncoding = ewrap.New("invalid encoding")
	// ErrInvalidLevel indicates an unknown minimum level.
	ErrInvalidLevel = ewrap.New("invalid log level")
)

// Options configures an Adapter.
type Options struct {
	// Output is where the log lines are written.
	Output io.Writer
	// Level is the minimum level to log.
	Level hyperrelay.Level
	// Encoding selects console or JSON output.
	Encoding constants.Encoding
	// TimeFormat specifies the format for timestamps.
	TimeFormat string
	// DisableTimestamp disables timestamp in log entries.
	DisableTimestamp bool
	// Color configures level colors for console output.
	Color hyperrelay.ColorConfig
	// Fields are added to every entry.
	Fields []hyperrelay.Field
}

// DefaultOptions returns options writing colored console lines to stdout at info level.
func DefaultOptions() Options {
	return Options{
		Output:     os.Stdout,
		Level:      hyperrelay.InfoLevel,
		Encoding:   constants.EncodingConsole,
		TimeFormat: time.RFC3339,
		Color:      hyperrelay.DefaultColorConfig(),
	}
}

// core is shared between an adapter and the loggers derived from it.
type core struct {
	mu       sync.Mutex
	out      io.Writer
	level    atomic.Uint32
	encoder  encoder
	opts     Options
	failures atomic.Uint64
	pool     sync.Pool
}

// Adapter implements the hyperrelay.Logger interface.
type Adapter struct {
	core   *core
	fields []hyperrelay.Field
}

// New creates a new logger adapter with the given options.
func New(opts Options) (*Adapter, error) {
	if opts.Output == nil {
		return nil, ErrNilOutput
	}

	if opts.Encoding == "" {
		opts.Encoding = constants.EncodingConsole
	}

	if !opts.Encoding.IsValid() {
		return nil, ewrap.Wrap(ErrInvalidEncoding, "creating logger").WithMetadata("encoding", opts.Encoding.String())
	}

	if !opts.Level.IsValid() {
		return nil, ewrap.Wrap(ErrInvalidLevel, "creating logger").WithMetadata("level", int(opts.Level))
	}

	if opts.TimeFormat == "" {
		opts.TimeFormat = time.RFC3339
	}

	enforceColorPolicy(&opts)

	c := &core{
		out:     opts.Output,
		encoder: newEncoder(opts.Encoding),
		opts:    opts,
	}

	c.pool = sync.Pool{
		New: func() any {
			return bytes.NewBuffer(make([]byte, 0, defaultBufferSize))
		},
	}

	c.level.Store(uint32(opts.Level))

	return &Adapter{
		core:   c,
		fields: cloneFields(opts.Fields),
	}, nil
}

// Debug implements hyperrelay.Logger.
func (a *Adapter) Debug(msg string, fields ...hyperrelay.Field) {
	a.log(hyperrelay.DebugLevel, msg, fields)
}

// Info implements hyperrelay.Logger.
func (a *Adapter) Info(msg string, fields ...hyperrelay.Field) {
	a.log(hyperrelay.InfoLevel, msg, fields)
}

// Warn implements hyperrelay.Logger.
func (a *Adapter) Warn(msg string, fields ...hyperrelay.Field) {
	a.log(hyperrelay.WarnLevel, msg, fields)
}

// Error implements hyperrelay.Logger.
func (a *Adapter) Error(msg string, fields ...hyperrelay.Field) {
	a.log(hyperrelay.ErrorLevel, msg, fields)
}

// WithFields returns a new logger with the given fields added to every entry.
func (a *Adapter) WithFields(fields ...hyperrelay.Field) hyperrelay.Logger {
	if len(fields) == 0 {
		return a
	}

	return &Adapter{
		core:   a.core,
		fields: mergeFields(a.fields, fields),
	}
}

// GetLevel returns the current minimum level.
func (a *Adapter) GetLevel() hyperrelay.Level {
	return hyperrelay.Level(a.core.level.Load()) //nolint:gosec // levels are validated on write.
}

// SetLevel changes the minimum level for this logger and every logger sharing its output.
func (a *Adapter) SetLevel(level hyperrelay.Level) {
	if !level.IsValid() {
		return
	}

	a.core.level.Store(uint32(level))
}

// WriteFailures returns the number of entries the output rejected.
func (a *Adapter) WriteFailures() uint64 {
	return a.core.failures.Load()
}

func (a *Adapter) log(level hyperrelay.Level, msg string, fields []hyperrelay.Field) {
	if uint32(level) < a.core.level.Load() {
		return
	}

	entry := entry{
		time:    time.Now(),
		level:   level,
		message: msg,
		fields:  mergeFields(a.fields, fields),
	}

	buf := a.getBuffer()
	defer a.returnBuffer(buf)

	a.core.encoder.encode(buf, &entry, &a.core.opts)

	a.core.mu.Lock()
	defer a.core.mu.Unlock()

	_, err := a.core.out.Write(buf.Bytes())
	if err != nil {
		a.core.failures.Add(1)
	}
}

func (a *Adapter) getBuffer() *bytes.Buffer {
	buf, ok := a.core.pool.Get().(*bytes.Buffer)
	if !ok {
		return bytes.NewBuffer(make([]byte, 0, defaultBufferSize))
	}

	buf.Reset()

	return buf
}

func (a *Adapter) returnBuffer(buf *bytes.Buffer) {
	// Oversized buffers are left to the garbage collector.
	if buf.Cap() > maxPooledBuffer {
		return
	}

	a.core.pool.Put(buf)
}

func enforceColorPolicy(opts *Options) {
	if !opts.Color.Enable || opts.Color.ForceTTY {
		return
	}

	if hyperrelay.IsTerminal(opts.Output) {
		return
	}

	opts.Color.Enable = false
}

// cloneFields creates a shallow copy of a slice of fields to prevent shared state mutation.
func cloneFields(fields []hyperrelay.Field) []hyperrelay.Field {
	if len(fields) == 0 {
		return nil
	}

	cloned := make([]hyperrelay.Field, len(fields))
	copy(cloned, fields)

	return cloned
}

// mergeFields concatenates field sets into a new slice.
func mergeFields(base, extra []hyperrelay.Field) []hyperrelay.Field {
	if len(extra) == 0 {
		return base
	}

	merged := make([]hyperrelay.Field, 0, len(base)+len(extra))
	merged = append(merged, base...)
	merged = append(merged, extra...)

	return merged
}

var _ hyperrelay.Logger = (*Adapter)(nil)
