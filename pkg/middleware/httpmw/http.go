// Package httpmw provides net/http middleware that correlates requests and
// submits one access record per request into a relay.
package httpmw

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hyp3rd/hyperrelay"
	"github.com/hyp3rd/hyperrelay/internal/constants"
)

// AccessRecord describes one served HTTP request.
type AccessRecord struct {
	Time       time.Time      `json:"time"`
	Method     string         `json:"method"`
	Path       string         `json:"path"`
	Status     int            `json:"status"`
	Bytes      int64          `json:"bytes"`
	Duration   time.Duration  `json:"duration"`
	RemoteAddr string         `json:"remote_addr,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	TraceID    string         `json:"trace_id,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Option configures the behaviour of the middleware.
type Option func(*options)

type options struct {
	traceHeader    string
	requestHeader  string
	idGenerator    func() string
	generateIfMiss bool
	extractors     []hyperrelay.ContextExtractor
	now            func() time.Time
}

// WithTraceHeader configures the header used to populate the trace id.
func WithTraceHeader(name string) Option {
	return func(o *options) {
		if name != "" {
			o.traceHeader = name
		}
	}
}

// WithRequestHeader configures the header used to populate the request id.
func WithRequestHeader(name string) Option {
	return func(o *options) {
		if name != "" {
			o.requestHeader = name
		}
	}
}

// WithIDGenerator provides a custom generator used when headers are missing.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.idGenerator = fn
		}
	}
}

// WithGenerateMissingIDs instructs the middleware to create ids when headers are absent.
func WithGenerateMissingIDs(enable bool) Option {
	return func(o *options) {
		o.generateIfMiss = enable
	}
}

// WithContextExtractors adds extractors whose fields are stored in AccessRecord.Attributes,
// after the globally registered ones.
func WithContextExtractors(extractors ...hyperrelay.ContextExtractor) Option {
	return func(o *options) {
		o.extractors = append(o.extractors, extractors...)
	}
}

func newOptions(opts []Option) options {
	cfg := options{
		traceHeader:    constants.TraceHeader,
		requestHeader:  constants.RequestHeader,
		idGenerator:    uuid.NewString,
		generateIfMiss: true,
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

// ContextMiddleware enriches the request context with the trace and request identifiers.
func ContextMiddleware(opts ...Option) func(http.Handler) http.Handler {
	cfg := newOptions(opts)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(cfg.enrich(r)))
		})
	}
}

// Middleware enriches the request context like ContextMiddleware and submits
// an AccessRecord to submitter once the handler returned.
func Middleware(submitter hyperrelay.Submitter[AccessRecord], opts ...Option) func(http.Handler) http.Handler {
	cfg := newOptions(opts)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := cfg.now()
			ctx := cfg.enrich(r)
			recorder := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(recorder, r.WithContext(ctx))

			if submitter == nil {
				return
			}

			record := AccessRecord{
				Time:       start,
				Method:     r.Method,
				Path:       r.URL.Path,
				Status:     recorder.statusCode(),
				Bytes:      recorder.written,
				Duration:   cfg.now().Sub(start),
				RemoteAddr: r.RemoteAddr,
				UserAgent:  r.UserAgent(),
				Attributes: attributes(ctx, cfg.extractors),
			}
			record.TraceID, _ = ctx.Value(constants.TraceKey{}).(string)
			record.RequestID, _ = ctx.Value(constants.RequestKey{}).(string)

			submitter.Submit(record)
		})
	}
}

func (o options) enrich(r *http.Request) context.Context {
	ctx := r.Context()

	if traceID := r.Header.Get(o.traceHeader); traceID != "" {
		ctx = contextWithValue(ctx, constants.TraceKey{}, traceID)
	} else if o.generateIfMiss {
		ctx = contextWithValue(ctx, constants.TraceKey{}, o.idGenerator())
	}

	if reqID := r.Header.Get(o.requestHeader); reqID != "" {
		ctx = contextWithValue(ctx, constants.RequestKey{}, reqID)
	} else if o.generateIfMiss {
		ctx = contextWithValue(ctx, constants.RequestKey{}, o.idGenerator())
	}

	return ctx
}

func attributes(ctx context.Context, extractors []hyperrelay.ContextExtractor) map[string]any {
	all := append(hyperrelay.GlobalContextExtractors(), extractors...)

	fields := hyperrelay.ApplyContextExtractors(ctx, all...)
	if len(fields) == 0 {
		return nil
	}

	attrs := make(map[string]any, len(fields))
	for _, field := range fields {
		attrs[field.Key] = field.Value
	}

	return attrs
}

func contextWithValue(ctx context.Context, key any, value string) context.Context {
	if value == "" {
		return ctx
	}

	return context.WithValue(ctx, key, value)
}

type statusRecorder struct {
	http.ResponseWriter

	status  int
	written int64
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}

	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(p []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}

	n, err := s.ResponseWriter.Write(p)
	s.written += int64(n)

	return n, err
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

func (s *statusRecorder) statusCode() int {
	if s.status == 0 {
		return http.StatusOK
	}

	return s.status
}
