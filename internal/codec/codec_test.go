package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMsgpack_LooseDecoding(t *testing.T) {
	c := Msgpack{}
	data, err := c.Marshal(map[string]any{"n": 25, "s": "x", "f": 0.5})
	require.NoError(t, err)

	var out any
	require.NoError(t, c.Unmarshal(data, &out))
	assert.Equal(t, map[string]any{"n": int64(25), "s": "x", "f": 0.5}, out)
}

func TestWriteCanonical_IgnoresMapOrder(t *testing.T) {
	a := map[string]any{}
	b := map[string]any{}
	for _, k := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		a[k] = k
	}
	for _, k := range []string{"h", "g", "f", "e", "d", "c", "b", "a"} {
		b[k] = k
	}

	var bufA, bufB bytes.Buffer
	require.NoError(t, WriteCanonical(&bufA, a))
	require.NoError(t, WriteCanonical(&bufB, b))
	assert.Equal(t, bufA.Bytes(), bufB.Bytes())
}

func TestNormalize(t *testing.T) {
	t.Run("numbers and slices take their decoded shape", func(t *testing.T) {
		got, err := Normalize(map[string]any{"n": 5, "u": uint8(7), "f": 2.0, "h": 0.5, "s": []int{1, 2}})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"n": int64(5), "u": int64(7), "f": int64(2), "h": 0.5, "s": []any{int64(1), int64(2)},
		}, got)
	})

	t.Run("non-string keys become a sorted pair list", func(t *testing.T) {
		a, err := Normalize(map[int]string{2: "b", 1: "a", 3: "c"})
		require.NoError(t, err)
		assert.Equal(t, []any{int64(1), "a", int64(2), "b", int64(3), "c"}, a)
	})

	t.Run("scalars pass through", func(t *testing.T) {
		got, err := Normalize("x")
		require.NoError(t, err)
		assert.Equal(t, "x", got)
	})
}

func TestByName(t *testing.T) {
	c, err := ByName("")
	require.NoError(t, err)
	assert.Equal(t, "msgpack", c.Name())

	c, err = ByName("json")
	require.NoError(t, err)
	assert.Equal(t, "application/json", c.ContentType())

	_, err = ByName("xml")
	assert.ErrorContains(t, err, "unknown codec 'xml'")
}
