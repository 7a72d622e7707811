package params

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	root := New(map[string]any{"lr": 0.1, "epochs": 3})
	child := root.WithOverrides(map[string]any{"lr": 0.5})

	t.Run("child shadows parent", func(t *testing.T) {
		v, ok := child.Lookup("lr")
		require.True(t, ok)
		assert.Equal(t, 0.5, v)
	})

	t.Run("falls through to parent", func(t *testing.T) {
		v, ok := child.Lookup("epochs")
		require.True(t, ok)
		assert.Equal(t, 3, v)
	})

	t.Run("receiver is untouched by overrides", func(t *testing.T) {
		v, _ := root.Lookup("lr")
		assert.Equal(t, 0.1, v)
		assert.Same(t, root, child.Parent())
	})

	t.Run("unknown name", func(t *testing.T) {
		_, ok := child.Lookup("missing")
		assert.False(t, ok)
		assert.False(t, child.Has("missing"))
	})
}

func TestNew_CopiesInput(t *testing.T) {
	in := map[string]any{"x": 1}
	c := New(in)
	in["x"] = 2

	v, _ := c.Lookup("x")
	assert.Equal(t, 1, v)
}

func TestResolve(t *testing.T) {
	c := New(map[string]any{"x": 5})

	t.Run("bound and defaulted parameters", func(t *testing.T) {
		got, err := c.Resolve([]Param{Required("x"), Optional("y", "fallback")})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"x": 5, "y": "fallback"}, got)
	})

	t.Run("context value wins over default", func(t *testing.T) {
		got, err := c.Resolve([]Param{Optional("x", 99)})
		require.NoError(t, err)
		assert.Equal(t, 5, got["x"])
	})

	t.Run("missing parameters are all reported", func(t *testing.T) {
		_, err := c.Resolve([]Param{Required("a"), Required("x"), Required("b")})
		require.Error(t, err)

		var missing *MissingParameterError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, "a", missing.Name)
		assert.Contains(t, err.Error(), "'a'")
		assert.Contains(t, err.Error(), "'b'")
		assert.NotContains(t, err.Error(), "'x'")
	})

	t.Run("empty request", func(t *testing.T) {
		got, err := Empty().Resolve(nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestFlatten(t *testing.T) {
	root := New(map[string]any{"a": 1, "b": 2})
	child := root.WithOverrides(map[string]any{"b": 20, "c": 30})

	assert.Equal(t, map[string]any{"a": 1, "b": 20, "c": 30}, child.Flatten())
	assert.Equal(t, []string{"a", "b", "c"}, child.Keys())
	assert.Equal(t, 2, child.Depth())
	assert.Equal(t, 0, (*Context)(nil).Depth())
}

func TestMissingParameterError(t *testing.T) {
	err := &MissingParameterError{Name: "lr", Step: "train"}
	assert.Equal(t, "step 'train': missing required parameter 'lr'", err.Error())
}
