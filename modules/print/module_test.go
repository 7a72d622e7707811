package print

import (
	"bytes"
	"context"
	"testing"

	"github.com/specialistvlad/stepgrid/internal/registry"
	"github.com/specialistvlad/stepgrid/internal/step"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrint(t *testing.T) {
	t.Run("sorted arguments", func(t *testing.T) {
		var buf bytes.Buffer
		m := &Module{Out: &buf}
		out, err := m.Print(context.Background(), step.Args{"b": 2, "a": "x"})
		require.NoError(t, err)
		assert.Equal(t, "      a = x\n      b = 2\n", buf.String())
		assert.Equal(t, map[string]any{"a": "x", "b": 2}, out)
	})

	t.Run("single value passes through", func(t *testing.T) {
		var buf bytes.Buffer
		out, err := (&Module{Out: &buf}).Print(context.Background(), step.Args{"value": 25})
		require.NoError(t, err)
		assert.Equal(t, 25, out)
	})

	t.Run("no arguments", func(t *testing.T) {
		var buf bytes.Buffer
		out, err := (&Module{Out: &buf}).Print(context.Background(), nil)
		require.NoError(t, err)
		assert.Nil(t, out)
		assert.Equal(t, "      (null)\n", buf.String())
	})

	t.Run("registers as print", func(t *testing.T) {
		r := registry.New(&Module{})
		_, ok := r.Handler("print")
		assert.True(t, ok)
	})
}
