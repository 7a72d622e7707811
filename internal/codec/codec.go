// Package codec defines the pluggable serialization used wherever step values
// leave process memory: persistent cache stores and artifact stores.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"slices"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec serializes and deserializes values.
type Codec interface {
	Name() string
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Msgpack is the default codec. Decoding into an interface uses loose
// numeric types: integers come back as int64/uint64 and floats as float64.
type Msgpack struct{}

func (Msgpack) Name() string        { return "msgpack" }
func (Msgpack) ContentType() string { return "application/msgpack" }

func (Msgpack) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (Msgpack) Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	return dec.Decode(v)
}

// JSON encodes values as JSON, handy for artifacts read by other tools.
type JSON struct{}

func (JSON) Name() string                       { return "json" }
func (JSON) ContentType() string                { return "application/json" }
func (JSON) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// ByName returns the codec registered under name.
func ByName(name string) (Codec, error) {
	switch name {
	case "", "msgpack":
		return Msgpack{}, nil
	case "json":
		return JSON{}, nil
	default:
		return nil, fmt.Errorf("unknown codec '%s'", name)
	}
}

// WriteCanonical writes a deterministic encoding of v to w: equal values
// always produce equal bytes regardless of map iteration order.
func WriteCanonical(w io.Writer, v any) error {
	enc := msgpack.NewEncoder(w)
	enc.SetSortMapKeys(true)
	return enc.Encode(v)
}

// Normalize returns the shape v takes after a trip through any codec: maps
// with string keys become map[string]any, slices become []any and numbers
// collapse to int64 when whole, float64 otherwise. Maps with other keys
// become a flat key/value list sorted by key. Logically equal values
// normalize equally whether fresh or decoded from a store.
func Normalize(v any) (any, error) {
	data, err := Msgpack{}.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	dec.SetMapDecoder(func(d *msgpack.Decoder) (any, error) { return d.DecodeUntypedMap() })
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return canonicalNumbers(out), nil
}

func canonicalNumbers(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, item := range x {
			x[k] = canonicalNumbers(item)
		}
		return x
	case map[any]any:
		return canonicalMap(x)
	case []any:
		for i, item := range x {
			x[i] = canonicalNumbers(item)
		}
		return x
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x)
		}
		return x
	case float32:
		return canonicalFloat(float64(x))
	case float64:
		return canonicalFloat(x)
	default:
		return v
	}
}

func canonicalFloat(f float64) any {
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return int64(f)
	}
	return f
}

func canonicalMap(m map[any]any) any {
	strKeys := make(map[string]any, len(m))
	for k, item := range m {
		sk, ok := k.(string)
		if !ok {
			break
		}
		strKeys[sk] = canonicalNumbers(item)
	}
	if len(strKeys) == len(m) {
		return strKeys
	}

	type pair struct {
		sortKey string
		k, v    any
	}
	pairs := make([]pair, 0, len(m))
	for k, item := range m {
		ck := canonicalNumbers(k)
		pairs = append(pairs, pair{sortKey: fmt.Sprintf("%T:%v", ck, ck), k: ck, v: canonicalNumbers(item)})
	}
	slices.SortFunc(pairs, func(a, b pair) int { return strings.Compare(a.sortKey, b.sortKey) })
	flat := make([]any, 0, 2*len(pairs))
	for _, p := range pairs {
		flat = append(flat, p.k, p.v)
	}
	return flat
}
