package hyperrelay

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenerRegistryAddRemove(t *testing.T) {
	registry := NewListenerRegistry[string]()

	listener := FailureListenerFunc[string](func(Failure[string]) {})

	require.NoError(t, registry.AddListener("a", listener))
	assert.Equal(t, 1, registry.Len())

	err := registry.AddListener("a", listener)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrListenerExists))

	err = registry.AddListener("nil", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNilListener))

	got, ok := registry.GetListener("a")
	assert.True(t, ok)
	assert.NotNil(t, got)

	assert.True(t, registry.RemoveListener("a"))
	assert.False(t, registry.RemoveListener("a"))
	assert.Zero(t, registry.Len())

	_, ok = registry.GetListener("a")
	assert.False(t, ok)
}

func TestListenerRegistryFanOut(t *testing.T) {
	registry := NewListenerRegistry[int]()

	var order []string

	require.NoError(t, registry.AddListener("all", FailureListenerFunc[int](func(Failure[int]) {
		order = append(order, "all")
	})))
	require.NoError(t, registry.AddListener("final", NewStandardListener([]FailureKind{FailureFinal}, func(Failure[int]) {
		order = append(order, "final")
	})))
	require.NoError(t, registry.AddListener("any-kind", NewStandardListener[int](nil, func(Failure[int]) {
		order = append(order, "any-kind")
	})))

	registry.OnFailure(Failure[int]{Kind: FailurePermanent})
	assert.Equal(t, []string{"all", "any-kind"}, order)

	order = nil

	registry.OnFailure(Failure[int]{Kind: FailureFinal})
	assert.Equal(t, []string{"all", "final", "any-kind"}, order)
}

func TestListenerRegistryIsolatesPanics(t *testing.T) {
	recorder := &recordingSelfLog{}
	t.Cleanup(SetSelfLog(recorder))

	registry := NewListenerRegistry[int]()
	reached := false

	require.NoError(t, registry.AddListener("bad", FailureListenerFunc[int](func(Failure[int]) {
		panic("listener bug")
	})))
	require.NoError(t, registry.AddListener("good", FailureListenerFunc[int](func(Failure[int]) {
		reached = true
	})))

	assert.NotPanics(t, func() {
		registry.OnFailure(Failure[int]{Source: "s/1", Kind: FailurePermanent, Records: []int{1}})
	})

	assert.True(t, reached)

	diagnostics := recorder.all()
	require.Len(t, diagnostics, 1)
	assert.Equal(t, "failure listener panicked", diagnostics[0].Message)
	assert.Contains(t, diagnostics[0].Err.Error(), "listener bug")
}
