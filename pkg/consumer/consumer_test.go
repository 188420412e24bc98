package consumer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/hyp3rd/hyperrelay"
	"github.com/hyp3rd/hyperrelay/internal/utils"
	"github.com/hyp3rd/hyperrelay/pkg/relay"
)

type event struct {
	ID   int    `json:"id"`
	Kind string `json:"kind"`
}

func TestWriterJSONLines(t *testing.T) {
	buf := &bytes.Buffer{}

	writer, err := NewWriter[event](buf, nil)
	require.NoError(t, err)

	require.NoError(t, writer.Consume(context.Background(), event{ID: 1, Kind: "created"}))
	require.NoError(t, writer.Consume(context.Background(), event{ID: 2, Kind: "deleted"}))

	assert.Equal(t, "{\"id\":1,\"kind\":\"created\"}\n{\"id\":2,\"kind\":\"deleted\"}\n", buf.String())
}

func TestWriterProtoJSONLines(t *testing.T) {
	buf := &bytes.Buffer{}

	writer, err := NewWriter(buf, ProtoJSONLines[*healthpb.HealthCheckResponse]())
	require.NoError(t, err)

	err = writer.Consume(context.Background(), &healthpb.HealthCheckResponse{
		Status: healthpb.HealthCheckResponse_SERVING,
	})
	require.NoError(t, err)

	line := strings.ReplaceAll(buf.String(), " ", "")
	assert.Equal(t, "{\"status\":\"SERVING\"}\n", line)
}

func TestWriterErrors(t *testing.T) {
	t.Run("nil output", func(t *testing.T) {
		_, err := NewWriter[event](nil, nil)
		assert.ErrorIs(t, err, ErrNilWriter)
	})

	t.Run("encoder failure", func(t *testing.T) {
		errEncode := errors.New("unsupported")

		writer, err := NewWriter(&bytes.Buffer{}, EncoderFunc[event](func(*bytes.Buffer, event) error {
			return errEncode
		}))
		require.NoError(t, err)

		assert.ErrorIs(t, writer.Consume(context.Background(), event{}), errEncode)
	})

	t.Run("cancelled context", func(t *testing.T) {
		buf := &bytes.Buffer{}

		writer, err := NewWriter[event](buf, nil)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.ErrorIs(t, writer.Consume(ctx, event{}), context.Canceled)
		assert.Zero(t, buf.Len())
	})

	t.Run("short write", func(t *testing.T) {
		writer, err := NewWriter[event](shortWriter{}, nil)
		require.NoError(t, err)

		assert.ErrorIs(t, writer.Consume(context.Background(), event{ID: 1}), ErrShortWrite)
	})
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) { return len(p) / 2, nil }

func TestHandleOwnership(t *testing.T) {
	t.Run("standard streams are borrowed", func(t *testing.T) {
		writer, err := NewWriter[event](os.Stdout, nil)
		require.NoError(t, err)

		assert.False(t, writer.Handle().Owned())
		require.NoError(t, writer.Close())
	})

	t.Run("plain writers are borrowed", func(t *testing.T) {
		writer, err := NewWriter[event](&bytes.Buffer{}, nil)
		require.NoError(t, err)

		assert.False(t, writer.Handle().Owned())
	})

	t.Run("files are owned", func(t *testing.T) {
		base := t.TempDir()

		writer, err := OpenFile[event](base, "out.jsonl", nil)
		require.NoError(t, err)

		handle := writer.Handle()
		require.True(t, handle.Owned())
		require.NoError(t, handle.Release())
	})
}

func TestOpenFileRejectsEscapes(t *testing.T) {
	_, err := OpenFile[event](t.TempDir(), "../outside.jsonl", nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrPathTraversal))
}

func TestFileWriterBehindRelay(t *testing.T) {
	base := t.TempDir()

	writer, err := OpenFile[event](base, "events.jsonl", nil)
	require.NoError(t, err)

	cfg := hyperrelay.DefaultConfig()
	cfg.Capacity = 8
	cfg.BlockWhenFull = true

	sink, err := relay.New(context.Background(), writer.Handle(), cfg)
	require.NoError(t, err)

	for i := range 20 {
		sink.Submit(event{ID: i, Kind: "tick"})
	}

	require.NoError(t, sink.Close())

	data, err := os.ReadFile(filepath.Join(base, "events.jsonl"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 20)
	assert.Equal(t, `{"id":0,"kind":"tick"}`, lines[0])
	assert.Equal(t, `{"id":19,"kind":"tick"}`, lines[19])

	// The relay closed the file on shutdown.
	assert.Error(t, writer.Consume(context.Background(), event{}))
}
