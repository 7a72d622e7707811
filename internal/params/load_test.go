package params

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	t.Run("hcl attributes", func(t *testing.T) {
		path := writeFile(t, "params.hcl", `
epochs = 3
lr     = 0.25
name   = "baseline"
layers = [64, 32]
`)
		got, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 3, got["epochs"])
		assert.Equal(t, 0.25, got["lr"])
		assert.Equal(t, "baseline", got["name"])
		assert.Equal(t, []any{64, 32}, got["layers"])
	})

	t.Run("yaml mapping", func(t *testing.T) {
		path := writeFile(t, "params.yaml", "epochs: 3\nname: baseline\n")
		got, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 3, got["epochs"])
		assert.Equal(t, "baseline", got["name"])
	})

	t.Run("invalid hcl", func(t *testing.T) {
		path := writeFile(t, "broken.hcl", "epochs = ")
		_, err := LoadFile(path)
		assert.ErrorContains(t, err, "failed to parse parameter file")
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := LoadFile("params.toml")
		assert.ErrorContains(t, err, "unsupported parameter file extension")
	})
}

func TestFromCty(t *testing.T) {
	got, err := FromCty(cty.ObjectVal(map[string]cty.Value{
		"n":    cty.NumberIntVal(7),
		"f":    cty.NumberFloatVal(1.5),
		"ok":   cty.True,
		"tags": cty.SetVal([]cty.Value{cty.StringVal("a")}),
		"none": cty.NullVal(cty.String),
	}))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"n":    7,
		"f":    1.5,
		"ok":   true,
		"tags": []any{"a"},
		"none": nil,
	}, got)
}

func TestToCty(t *testing.T) {
	t.Run("round trips through FromCty", func(t *testing.T) {
		in := map[string]any{
			"n":     7,
			"u":     uint16(3),
			"f":     1.5,
			"ok":    true,
			"list":  []string{"a", "b"},
			"mixed": []any{"x", 2},
			"none":  nil,
			"obj":   map[string]int{"k": 1},
		}
		val, err := ToCty(in)
		require.NoError(t, err)
		back, err := FromCty(val)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"n":     7,
			"u":     3,
			"f":     1.5,
			"ok":    true,
			"list":  []any{"a", "b"},
			"mixed": []any{"x", 2},
			"none":  nil,
			"obj":   map[string]any{"k": 1},
		}, back)
	})

	t.Run("cty values pass through", func(t *testing.T) {
		val, err := ToCty(cty.StringVal("s"))
		require.NoError(t, err)
		assert.True(t, val.RawEquals(cty.StringVal("s")))
	})

	t.Run("unsupported values fail", func(t *testing.T) {
		_, err := ToCty(map[int]string{1: "a"})
		assert.ErrorContains(t, err, "unsupported map key type")
		_, err = ToCty(make(chan int))
		assert.ErrorContains(t, err, "unsupported Go type")
	})
}
