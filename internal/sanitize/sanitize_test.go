package sanitize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueDropsNonFiniteFloats(t *testing.T) {
	in := map[string]any{"ok": true, "n": 3, "bad": math.NaN()}
	out := Value(in)
	require.Equal(t, map[string]any{"ok": true, "n": int64(3)}, out)
}

func TestValueDropsNonStringMapKeys(t *testing.T) {
	in := map[any]any{1: "a", "k": []any{math.Inf(1), 2}}
	out := Value(in)
	require.Equal(t, map[string]any{"k": []any{int64(2)}}, out)
}

func TestValueDropsUnsupportedEntriesNotWholeCollection(t *testing.T) {
	in := []any{1, math.NaN(), "x", math.Inf(-1)}
	out := Value(in)
	require.Equal(t, []any{int64(1), "x"}, out)
}

func TestValueIsIdempotent(t *testing.T) {
	in := map[string]any{"a": []any{1, "b", true, nil}}
	once := Value(in)
	twice := Value(once)
	require.Equal(t, once, twice)
}

func TestValueNilIsNil(t *testing.T) {
	require.Nil(t, Value(nil))
}

func TestValueStructUsesJSONTags(t *testing.T) {
	type payload struct {
		Name   string `json:"name"`
		Hidden string `json:"-"`
		Plain  int
	}
	out := Value(payload{Name: "x", Hidden: "y", Plain: 4})
	require.Equal(t, map[string]any{"name": "x", "Plain": int64(4)}, out)
}
