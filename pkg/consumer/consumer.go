// Package consumer provides ready-made relay consumers.
//
// Writer encodes each record with an Encoder and writes it to an io.Writer.
// Records are written one at a time, so a Writer behind a relay never sees
// concurrent calls, but it is safe to share with other goroutines anyway.
package consumer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/hyp3rd/ewrap"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/hyp3rd/hyperrelay"
	"github.com/hyp3rd/hyperrelay/internal/utils"
)

// FilePermissions are the permissions of files created by OpenFile.
const FilePermissions = 0o600

var (
	// ErrNilWriter is returned when a Writer is built without an output.
	ErrNilWriter = ewrap.New("output writer is required")
	// ErrShortWrite is returned when the output accepted only part of an encoded record.
	ErrShortWrite = ewrap.New("short write")
)

// Encoder appends the encoding of a record to buf.
type Encoder[T any] interface {
	Encode(buf *bytes.Buffer, record T) error
}

// EncoderFunc adapts a function to the Encoder interface.
type EncoderFunc[T any] func(buf *bytes.Buffer, record T) error

// Encode calls f(buf, record).
func (f EncoderFunc[T]) Encode(buf *bytes.Buffer, record T) error {
	return f(buf, record)
}

// JSONLines encodes each record as one JSON document followed by a newline.
func JSONLines[T any]() Encoder[T] {
	return EncoderFunc[T](func(buf *bytes.Buffer, record T) error {
		err := json.NewEncoder(buf).Encode(record)
		if err != nil {
			return ewrap.Wrap(err, "encoding record as JSON")
		}

		return nil
	})
}

// ProtoJSONLines encodes protobuf messages in their canonical JSON form, one per line.
func ProtoJSONLines[T proto.Message]() Encoder[T] {
	return EncoderFunc[T](func(buf *bytes.Buffer, record T) error {
		data, err := protojson.MarshalOptions{UseProtoNames: true}.Marshal(record)
		if err != nil {
			return ewrap.Wrap(err, "encoding record as protobuf JSON")
		}

		buf.Write(data)
		buf.WriteByte('\n')

		return nil
	})
}

// Writer is a Consumer writing encoded records to an io.Writer.
type Writer[T any] struct {
	mu      sync.Mutex
	out     io.Writer
	encoder Encoder[T]
	buf     bytes.Buffer
}

// NewWriter creates a Writer. A nil encoder selects JSONLines.
func NewWriter[T any](out io.Writer, encoder Encoder[T]) (*Writer[T], error) {
	if out == nil {
		return nil, ErrNilWriter
	}

	if encoder == nil {
		encoder = JSONLines[T]()
	}

	return &Writer[T]{out: out, encoder: encoder}, nil
}

// OpenFile opens (or creates) path for appending, confined to the base
// directory, and returns a Writer over it. Use Handle to let the relay
// close the file on shutdown.
func OpenFile[T any](base, path string, encoder Encoder[T]) (*Writer[T], error) {
	securePath, err := utils.SecurePath(base, path)
	if err != nil {
		return nil, ewrap.Wrap(err, "invalid output path")
	}

	file, err := os.OpenFile(securePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, FilePermissions)
	if err != nil {
		return nil, ewrap.Wrapf(err, "failed to open output file %s", securePath)
	}

	return NewWriter(file, encoder)
}

// Consume implements hyperrelay.Consumer.
func (w *Writer[T]) Consume(ctx context.Context, record T) error {
	err := ctx.Err()
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Reset()

	err = w.encoder.Encode(&w.buf, record)
	if err != nil {
		return err
	}

	n, err := w.out.Write(w.buf.Bytes())
	if err != nil {
		return ewrap.Wrap(err, "writing record")
	}

	if n != w.buf.Len() {
		return ewrap.Wrap(ErrShortWrite, "writing record").
			WithMetadata("written", n).
			WithMetadata("expected", w.buf.Len())
	}

	return nil
}

// Close syncs and closes the output when it supports it. Standard streams
// are left open.
func (w *Writer[T]) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if isStandardStream(w.out) {
		return nil
	}

	if syncer, ok := w.out.(interface{ Sync() error }); ok {
		err := syncer.Sync()
		if err != nil {
			return ewrap.Wrap(err, "syncing output")
		}
	}

	if closer, ok := w.out.(io.Closer); ok {
		err := closer.Close()
		if err != nil {
			return ewrap.Wrap(err, "closing output")
		}
	}

	return nil
}

// Handle returns the relay handle for this writer. The relay owns the output
// when it can be closed; standard streams are only borrowed.
func (w *Writer[T]) Handle() hyperrelay.Handle[T] {
	if isStandardStream(w.out) {
		return hyperrelay.Borrow[T](w)
	}

	if _, ok := w.out.(io.Closer); !ok {
		return hyperrelay.Borrow[T](w)
	}

	return hyperrelay.OwnCloser[T](w, w)
}

func isStandardStream(out io.Writer) bool {
	file, ok := out.(*os.File)

	return ok && (file == os.Stdout || file == os.Stderr)
}

var _ hyperrelay.Consumer[any] = (*Writer[any])(nil)
