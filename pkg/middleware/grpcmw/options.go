package grpcmw

import (
	"time"

	"github.com/google/uuid"

	"github.com/hyp3rd/hyperrelay"
	"github.com/hyp3rd/hyperrelay/internal/constants"
)

// Option defines a configuration option for the gRPC middleware.
type Option func(*options)

type options struct {
	traceKey       string
	requestKey     string
	idGenerator    func() string
	generateIfMiss bool
	extractors     []hyperrelay.ContextExtractor
	now            func() time.Time
}

// WithTraceKey customizes the metadata key used to populate the trace identifier.
func WithTraceKey(name string) Option {
	return func(o *options) {
		if o == nil || name == "" {
			return
		}

		o.traceKey = name
	}
}

// WithRequestKey customizes the metadata key used to populate the request identifier.
func WithRequestKey(name string) Option {
	return func(o *options) {
		if o == nil || name == "" {
			return
		}

		o.requestKey = name
	}
}

// WithIDGenerator provides a custom generator used when metadata values are missing.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if o == nil || fn == nil {
			return
		}

		o.idGenerator = fn
	}
}

// WithGenerateMissingIDs controls whether identifiers absent from the metadata are generated.
func WithGenerateMissingIDs(enable bool) Option {
	return func(o *options) {
		if o == nil {
			return
		}

		o.generateIfMiss = enable
	}
}

// WithContextExtractors adds extractors whose fields are stored in CallRecord.Attributes,
// after the globally registered ones.
func WithContextExtractors(extractors ...hyperrelay.ContextExtractor) Option {
	return func(o *options) {
		if o == nil {
			return
		}

		o.extractors = append(o.extractors, extractors...)
	}
}

func actualOptions(opts ...Option) options {
	cfg := options{
		traceKey:       constants.TraceMetadataKey,
		requestKey:     constants.RequestMetadataKey,
		idGenerator:    uuid.NewString,
		generateIfMiss: true,
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}
