package hyperrelay

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestHandles(t *testing.T) {
	consumer := ConsumerFunc[int](func(context.Context, int) error { return nil })

	t.Run("borrow", func(t *testing.T) {
		handle := Borrow[int](consumer)
		assert.False(t, handle.Owned())
		require.NoError(t, handle.Consumer.Consume(context.Background(), 1))
	})

	t.Run("own", func(t *testing.T) {
		released := false
		handle := Own[int](consumer, func() error {
			released = true

			return nil
		})

		require.True(t, handle.Owned())
		require.NoError(t, handle.Release())
		assert.True(t, released)
	})

	t.Run("own closer", func(t *testing.T) {
		errClose := errors.New("close failed")
		handle := OwnCloser[int](consumer, closerFunc(func() error { return errClose }))

		require.True(t, handle.Owned())
		assert.ErrorIs(t, handle.Release(), errClose)
	})

	t.Run("nil closer borrows", func(t *testing.T) {
		assert.False(t, OwnCloser[int](consumer, nil).Owned())
	})
}

func TestFailureKind(t *testing.T) {
	assert.Equal(t, "PERMANENT", FailurePermanent.String())
	assert.Equal(t, "FINAL", FailureFinal.String())
	assert.Equal(t, "UNKNOWN", FailureKind(9).String())
	assert.True(t, FailureFinal.IsValid())
	assert.False(t, FailureKind(9).IsValid())
}
