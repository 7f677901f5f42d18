package configschema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateProducesValidSchema(t *testing.T) {
	data, err := Generate()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	require.Equal(t, "object", doc["type"])
	require.Equal(t, DefaultSchemaPath, doc["$id"])

	properties, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, properties, "network")
	require.Contains(t, properties, "filesystem")
	require.Contains(t, properties, "process")
	require.Contains(t, properties, "$schema")
}

func TestGenerateIsDeterministic(t *testing.T) {
	first, err := Generate()
	require.NoError(t, err)
	second, err := Generate()
	require.NoError(t, err)
	require.Equal(t, string(first), string(second))
}
