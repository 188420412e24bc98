package adapter

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/hyp3rd/hyperrelay"
	"github.com/hyp3rd/hyperrelay/internal/constants"
)

const (
	charactersPadding = 5

	// ASCII control characters and printable range.
	asciiControlStart = 32  // Start of ASCII printable characters (space)
	asciiControlEnd   = 126 // End of ASCII printable characters (~)
)

type entry struct {
	time    time.Time
	level   hyperrelay.Level
	message string
	fields  []hyperrelay.Field
}

type encoder interface {
	encode(buf *bytes.Buffer, entry *entry, opts *Options)
}

func newEncoder(encoding constants.Encoding) encoder {
	if encoding == constants.EncodingJSON {
		return jsonEncoder{}
	}

	return consoleEncoder{}
}

type consoleEncoder struct{}

// encode formats an entry for console output.
func (consoleEncoder) encode(builder *bytes.Buffer, entry *entry, opts *Options) {
	builder.Grow(consoleBaseSize + len(entry.message) + len(entry.fields)*consoleFieldSize)

	if !opts.DisableTimestamp {
		builder.WriteString(entry.time.Format(opts.TimeFormat))
		builder.WriteByte(' ')
	}

	appendLogLevel(builder, entry.level, opts.Color)

	builder.WriteString(entry.message)

	if len(entry.fields) > 0 {
		appendFields(builder, entry.fields)
	}

	builder.WriteByte('\n')
}

type jsonEncoder struct{}

// encode formats an entry as a single JSON object.
func (jsonEncoder) encode(builder *bytes.Buffer, entry *entry, opts *Options) {
	builder.Grow(jsonBaseSize + len(entry.message) + len(entry.fields)*fieldOverhead)

	builder.WriteString("{")

	if !opts.DisableTimestamp {
		builder.WriteString(`"time":"`)
		builder.WriteString(entry.time.Format(opts.TimeFormat))
		builder.WriteString(`",`)
	}

	builder.WriteString(`"severity":"`)
	builder.WriteString(entry.level.String())
	builder.WriteString(`",`)

	builder.WriteString(`"message":`)
	jsonEscapeString(builder, entry.message)

	for _, field := range entry.fields {
		builder.WriteByte(',')
		jsonEscapeString(builder, field.Key)
		builder.WriteByte(':')
		formatJSONValue(builder, field.Value)
	}

	builder.WriteString("}\n")
}

// appendLogLevel formats and writes the log level to the buffer.
func appendLogLevel(builder *bytes.Buffer, level hyperrelay.Level, colorCfg hyperrelay.ColorConfig) {
	levelStr := level.String()

	if colorCfg.Enable {
		colors := colorCfg.LevelColors
		if colors == nil {
			colors = hyperrelay.DefaultLevelColors()
		}

		if seq, ok := colors[level]; ok && seq != "" {
			builder.WriteString(seq)
			appendPaddedLevel(builder, levelStr)
			builder.WriteString(hyperrelay.Reset)
			builder.WriteByte(' ')

			return
		}
	}

	appendPaddedLevel(builder, levelStr)
	builder.WriteByte(' ')
}

// appendPaddedLevel writes the level string padded to 5 characters.
func appendPaddedLevel(builder *bytes.Buffer, levelStr string) {
	builder.WriteByte('[')

	for range charactersPadding - len(levelStr) {
		builder.WriteByte(' ')
	}

	builder.WriteString(levelStr)
	builder.WriteByte(']')
}

// appendFields formats and writes the fields to the buffer.
func appendFields(builder *bytes.Buffer, fields []hyperrelay.Field) {
	builder.WriteString(" {")

	for i, field := range fields {
		if i > 0 {
			builder.WriteString(", ")
		}

		builder.WriteString(field.Key)
		builder.WriteByte('=')
		builder.WriteString(formatValue(field.Value))
	}

	builder.WriteByte('}')
}

// formatValue formats a value for console output.
func formatValue(v any) string {
	if v == nil {
		return "null"
	}

	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(time.RFC3339)
	case error:
		return val.Error()
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%+v", val)
	}
}

// jsonEscapeString writes a properly escaped JSON string to the buffer.
func jsonEscapeString(buf *bytes.Buffer, target string) {
	buf.WriteByte('"')

	start := 0

	for i := range len(target) {
		character := target[i]
		if needsEscaping(character) {
			if start < i {
				buf.WriteString(target[start:i])
			}

			writeEscapedChar(buf, character)

			start = i + 1
		}
	}

	if start < len(target) {
		buf.WriteString(target[start:])
	}

	buf.WriteByte('"')
}

// needsEscaping reports whether a byte must be escaped. Bytes of multi-byte
// UTF-8 sequences are written as is.
func needsEscaping(c byte) bool {
	switch c {
	case '"', '\\':
		return true
	default:
		return c < asciiControlStart || c == asciiControlEnd+1
	}
}

// writeEscapedChar writes the escaped version of a character to the buffer.
func writeEscapedChar(buf *bytes.Buffer, character byte) {
	switch character {
	case '"':
		buf.WriteString(`\"`)
	case '\\':
		buf.WriteString(`\\`)
	case '\b':
		buf.WriteString(`\b`)
	case '\f':
		buf.WriteString(`\f`)
	case '\n':
		buf.WriteString(`\n`)
	case '\r':
		buf.WriteString(`\r`)
	case '\t':
		buf.WriteString(`\t`)
	default:
		fmt.Fprintf(buf, `\u%04x`, character)
	}
}

// formatJSONValue formats a value for JSON output.
//
//nolint:cyclop // It's a long switch still readable.
func formatJSONValue(buf *bytes.Buffer, data any) {
	switch val := data.(type) {
	case nil:
		buf.WriteString("null")
	case string:
		jsonEscapeString(buf, val)
	case int:
		buf.WriteString(strconv.Itoa(val))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case uint:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint32:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(val, 10))
	case float64:
		buf.WriteString(strconv.FormatFloat(val, 'f', -1, 64))
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case time.Duration:
		jsonEscapeString(buf, val.String())
	case time.Time:
		jsonEscapeString(buf, val.Format(time.RFC3339))
	case error:
		jsonEscapeString(buf, val.Error())
	case fmt.Stringer:
		jsonEscapeString(buf, val.String())
	default:
		jsonEscapeString(buf, fmt.Sprintf("%+v", val))
	}
}
