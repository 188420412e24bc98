// Package configloader builds relay configurations from environment variables,
// YAML documents and files using Viper.
//
// Recognised keys:
//
//	name             relay name
//	capacity         buffer capacity (> 0)
//	block_when_full  wait for free space instead of dropping
//	drain_timeout    bound on Close, as a Go duration ("5s"); 0 waits indefinitely
//	log.level        debug | info | warn | error
//	log.encoding     console | json
//	log.output       stdout | stderr
//
// Environment keys are the upper-cased key with dots replaced by underscores,
// prefixed with the given prefix: HYPERRELAY_LOG_LEVEL. Documents containing
// any other key are rejected with ErrUnknownKey.
package configloader

import (
	"bytes"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/hyp3rd/ewrap"
	"github.com/spf13/viper"

	"github.com/hyp3rd/hyperrelay"
	"github.com/hyp3rd/hyperrelay/internal/constants"
	"github.com/hyp3rd/hyperrelay/pkg/adapter"
)

const defaultEnvPrefix = "HYPERRELAY"

var (
	// ErrInvalidLevel is returned for an unknown log.level value.
	ErrInvalidLevel = ewrap.New("invalid log level")
	// ErrInvalidOutput is returned for an unknown log.output value.
	ErrInvalidOutput = ewrap.New("invalid log output")
	// ErrUnknownKey is returned when a document sets a key the relay does not recognise.
	ErrUnknownKey = ewrap.New("unknown configuration key")
)

// keys lists every recognised configuration key.
//
//nolint:gochecknoglobals // fixed schema shared by every loader.
var keys = []string{
	"name",
	"capacity",
	"block_when_full",
	"drain_timeout",
	"log.level",
	"log.encoding",
	"log.output",
}

// relayDocument mirrors the recognised keys. Pointers tell unset values from zero values.
type relayDocument struct {
	Name          string         `mapstructure:"name"`
	Capacity      *int           `mapstructure:"capacity"`
	BlockWhenFull *bool          `mapstructure:"block_when_full"`
	DrainTimeout  *time.Duration `mapstructure:"drain_timeout"`
	Log           logDocument    `mapstructure:"log"`
}

type logDocument struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
	Output   string `mapstructure:"output"`
}

// FromEnv loads a relay configuration from environment variables carrying
// prefix. An empty prefix selects HYPERRELAY; the prefix is upper-cased and a
// trailing underscore is optional.
func FromEnv(prefix string) (*hyperrelay.Config, error) {
	v, err := withEnvironment(normalizePrefix(prefix))
	if err != nil {
		return nil, err
	}

	return decode(v)
}

// FromYAML loads a relay configuration from a YAML document.
func FromYAML(data []byte) (*hyperrelay.Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	err := v.ReadConfig(bytes.NewReader(data))
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to read YAML configuration")
	}

	return decode(v)
}

// FromFile loads a relay configuration from a file and applies HYPERRELAY_*
// environment overrides on top of it.
func FromFile(path string) (*hyperrelay.Config, error) {
	v, err := withEnvironment(defaultEnvPrefix)
	if err != nil {
		return nil, err
	}

	v.SetConfigFile(path)

	err = v.ReadInConfig()
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to read configuration file").WithMetadata("path", path)
	}

	return decode(v)
}

func withEnvironment(prefix string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	errs := ewrap.NewErrorGroup()

	for _, key := range keys {
		err := v.BindEnv(key)
		if err != nil {
			errs.Add(ewrap.Wrap(err, "failed to bind environment key").
				WithMetadata("key", key).
				WithMetadata("prefix", prefix))
		}
	}

	if errs.HasErrors() {
		return nil, errs
	}

	return v, nil
}

// decode checks the document against the schema and turns it into a validated Config.
func decode(v *viper.Viper) (*hyperrelay.Config, error) {
	var unknown []string

	for _, key := range v.AllKeys() {
		if !slices.Contains(keys, key) {
			unknown = append(unknown, key)
		}
	}

	if len(unknown) > 0 {
		slices.Sort(unknown)

		return nil, ewrap.Wrap(ErrUnknownKey, "decoding configuration").
			WithMetadata("keys", strings.Join(unknown, ","))
	}

	// Environment-only values are invisible to Unmarshal until they are set explicitly.
	for _, key := range keys {
		if v.IsSet(key) {
			v.Set(key, v.Get(key))
		}
	}

	var doc relayDocument

	err := v.Unmarshal(&doc)
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to decode configuration")
	}

	return doc.config()
}

func (d relayDocument) config() (*hyperrelay.Config, error) {
	builder := hyperrelay.NewConfigBuilder()

	if d.Name != "" {
		builder.WithName(d.Name)
	}

	if d.Capacity != nil {
		builder.WithCapacity(*d.Capacity)
	}

	if d.BlockWhenFull != nil {
		builder.WithBlockWhenFull(*d.BlockWhenFull)
	}

	if d.DrainTimeout != nil {
		builder.WithDrainTimeout(*d.DrainTimeout)
	}

	if d.Log != (logDocument{}) {
		logger, err := d.Log.logger()
		if err != nil {
			return nil, err
		}

		builder.WithLogger(logger)
	}

	cfg := builder.Build()

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// logger builds the adapter the relay reports its lifecycle to.
func (d logDocument) logger() (hyperrelay.Logger, error) {
	opts := adapter.DefaultOptions()

	if d.Level != "" {
		level, err := ParseLevel(d.Level)
		if err != nil {
			return nil, err
		}

		opts.Level = level
	}

	if d.Encoding != "" {
		opts.Encoding = constants.Encoding(strings.ToLower(d.Encoding))
	}

	if d.Output != "" {
		output, err := ParseOutput(d.Output)
		if err != nil {
			return nil, err
		}

		opts.Output = output
	}

	logger, err := adapter.New(opts)
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to build logger from configuration")
	}

	return logger, nil
}

// ParseLevel parses a case-insensitive level name.
func ParseLevel(level string) (hyperrelay.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return hyperrelay.DebugLevel, nil
	case "info":
		return hyperrelay.InfoLevel, nil
	case "warn", "warning":
		return hyperrelay.WarnLevel, nil
	case "error":
		return hyperrelay.ErrorLevel, nil
	default:
		return hyperrelay.InfoLevel, ewrap.Wrap(ErrInvalidLevel, "parsing level").WithMetadata("level", level)
	}
}

// ParseOutput resolves "stdout" or "stderr" to the matching stream.
func ParseOutput(output string) (io.Writer, error) {
	switch strings.ToLower(strings.TrimSpace(output)) {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		return nil, ewrap.Wrap(ErrInvalidOutput, "parsing output").WithMetadata("output", output)
	}
}

func normalizePrefix(prefix string) string {
	prefix = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(prefix), "-", "_"))
	prefix = strings.TrimSuffix(prefix, "_")

	if prefix == "" {
		return defaultEnvPrefix
	}

	return prefix
}
