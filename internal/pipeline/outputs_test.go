package pipeline

import (
	"context"
	"testing"

	"github.com/specialistvlad/stepgrid/internal/step"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitOutputs(t *testing.T) {
	noop := func(context.Context, step.Args) (any, error) { return nil, nil }
	mk := func(outputs ...string) *step.Step {
		return step.MustNew("s", noop, step.WithOutputs(outputs...))
	}

	t.Run("no outputs keeps the raw value", func(t *testing.T) {
		outs, canonical, err := splitOutputs(mk(), 42)
		require.NoError(t, err)
		assert.Empty(t, outs)
		assert.Equal(t, 42, canonical)
	})

	t.Run("single output takes the whole value", func(t *testing.T) {
		value := map[string]any{"rows": 3}
		outs, canonical, err := splitOutputs(mk("report"), value)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"report": value}, outs)
		assert.Equal(t, value, canonical)
	})

	t.Run("single output may be named explicitly", func(t *testing.T) {
		outs, canonical, err := splitOutputs(mk("x"), step.Outputs{"x": 7})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"x": 7}, outs)
		assert.Equal(t, 7, canonical)
	})

	t.Run("single output named wrong", func(t *testing.T) {
		_, _, err := splitOutputs(mk("x"), step.Outputs{"y": 7})
		var outErr *OutputError
		require.ErrorAs(t, err, &outErr)
		assert.Equal(t, []string{"x"}, outErr.Missing)
		assert.Equal(t, []string{"y"}, outErr.Unexpected)
	})

	t.Run("several outputs", func(t *testing.T) {
		outs, canonical, err := splitOutputs(mk("a", "b"), step.Outputs{"a": 1, "b": 2})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": 1, "b": 2}, outs)

		// The canonical value splits back into the same outputs, which
		// is what a cache round trip relies on.
		again, _, err := splitOutputs(mk("a", "b"), canonical)
		require.NoError(t, err)
		assert.Equal(t, outs, again)
	})

	t.Run("several outputs need a map", func(t *testing.T) {
		_, _, err := splitOutputs(mk("a", "b"), []int{1, 2})
		var outErr *OutputError
		require.ErrorAs(t, err, &outErr)
		assert.Contains(t, err.Error(), "step.Outputs")
	})

	t.Run("undeclared extra output", func(t *testing.T) {
		_, _, err := splitOutputs(mk("a", "b"), map[string]any{"a": 1, "b": 2, "c": 3})
		var outErr *OutputError
		require.ErrorAs(t, err, &outErr)
		assert.Empty(t, outErr.Missing)
		assert.Equal(t, []string{"c"}, outErr.Unexpected)
		assert.EqualError(t, err, "step 's' returned invalid outputs: undeclared outputs: c")
	})
}
