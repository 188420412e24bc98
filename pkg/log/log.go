// Package log provides application-level construction of relay loggers.
//
// It picks sensible defaults from the environment name:
//
// - In non-production environments: debug level with readable, colored console output
// - In production environments: info level with structured JSON output
// - Service name and environment included as additional fields in all log entries
//
// Usage:
//
//	logger, err := log.NewWithDefaults("development", "billing")
//	if err != nil {
//		panic(err)
//	}
//
//	sink, err := relay.New(ctx, handle, hyperrelay.NewConfigBuilder().WithLogger(logger).Build())
package log

import (
	"io"
	"os"
	"time"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/hyperrelay"
	"github.com/hyp3rd/hyperrelay/internal/constants"
	"github.com/hyp3rd/hyperrelay/pkg/adapter"
)

// Defaults returns the adapter options used for the environment and service.
func Defaults(output io.Writer, environment, service string) adapter.Options {
	opts := adapter.DefaultOptions()
	opts.Output = output
	opts.TimeFormat = time.RFC3339

	if environment == constants.NonProductionEnvironment {
		opts.Level = hyperrelay.DebugLevel
		opts.Encoding = constants.EncodingConsole
	} else {
		opts.Level = hyperrelay.InfoLevel
		opts.Encoding = constants.EncodingJSON
		opts.Color.Enable = false
	}

	opts.Fields = []hyperrelay.Field{
		hyperrelay.Str("service", service),
		hyperrelay.Str("environment", environment),
	}

	return opts
}

// NewWithDefaults creates a logger writing to stdout configured for the environment and service.
func NewWithDefaults(environment, service string) (*adapter.Adapter, error) {
	return NewWithOutput(os.Stdout, environment, service)
}

// NewWithOutput is NewWithDefaults writing to output.
func NewWithOutput(output io.Writer, environment, service string) (*adapter.Adapter, error) {
	logger, err := adapter.New(Defaults(output, environment, service))
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to create logger")
	}

	return logger, nil
}
