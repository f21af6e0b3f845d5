package kernel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerRegistry_DispatchRunsRegisteredHandler(t *testing.T) {
	r := NewHandlerRegistry()
	r.Register(NewHandlerFunc("echo", func(ctx context.Context, payload interface{}) (interface{}, error) {
		return payload, nil
	}))

	v, err := r.Dispatch(context.Background(), "echo", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hi", v)
}

func TestHandlerRegistry_DispatchUnknownNameErrors(t *testing.T) {
	r := NewHandlerRegistry()
	_, err := r.Dispatch(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, ErrHandlerNotFound)
}

func TestHandlerRegistry_RegisterReplacesExisting(t *testing.T) {
	r := NewHandlerRegistry()
	r.Register(NewHandlerFunc("name", func(ctx context.Context, payload interface{}) (interface{}, error) {
		return "first", nil
	}))
	r.Register(NewHandlerFunc("name", func(ctx context.Context, payload interface{}) (interface{}, error) {
		return "second", nil
	}))

	v, err := r.Dispatch(context.Background(), "name", nil)
	require.NoError(t, err)
	assert.Equal(t, "second", v)
	assert.Len(t, r.Names(), 1)
}
