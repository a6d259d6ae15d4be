package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestBuilderBasicShape(t *testing.T) {
	raw := NewObject().
		String("location", Description("City name"), Required()).
		Integer("days", Minimum(1), Maximum(14)).
		Build()

	m := decode(t, raw)
	assert.Equal(t, "object", m["type"])

	props := m["properties"].(map[string]any)
	loc := props["location"].(map[string]any)
	assert.Equal(t, "string", loc["type"])
	assert.Equal(t, "City name", loc["description"])

	days := props["days"].(map[string]any)
	assert.Equal(t, "integer", days["type"])
	assert.EqualValues(t, 1, days["minimum"])
	assert.EqualValues(t, 14, days["maximum"])

	require.Equal(t, []any{"location"}, m["required"])
}

func TestBuilderRequiredOrder(t *testing.T) {
	raw := NewObject().
		String("b", Required()).
		String("a", Required()).
		String("c").
		Build()

	m := decode(t, raw)
	// Required keeps declaration order, not alphabetical.
	assert.Equal(t, []any{"b", "a"}, m["required"])
}

func TestBuilderEnumAndArray(t *testing.T) {
	raw := NewObject().
		String("unit", Enum("celsius", "fahrenheit")).
		Array("tags", "string", Description("Labels")).
		Build()

	m := decode(t, raw)
	props := m["properties"].(map[string]any)

	unit := props["unit"].(map[string]any)
	assert.Equal(t, []any{"celsius", "fahrenheit"}, unit["enum"])

	tags := props["tags"].(map[string]any)
	assert.Equal(t, "array", tags["type"])
	items := tags["items"].(map[string]any)
	assert.Equal(t, "string", items["type"])

	// No required declared at all: key must be absent.
	_, hasRequired := m["required"]
	assert.False(t, hasRequired)
}

func TestBuilderNestedObject(t *testing.T) {
	filter := NewObject().
		String("field", Required()).
		String("op", Enum("eq", "lt", "gt"))

	raw := NewObject().
		Object("filter", filter, Description("Row filter"), Required()).
		Build()

	m := decode(t, raw)
	props := m["properties"].(map[string]any)
	f := props["filter"].(map[string]any)
	assert.Equal(t, "object", f["type"])
	assert.Equal(t, "Row filter", f["description"])
	assert.Equal(t, []any{"field"}, f["required"])

	inner := f["properties"].(map[string]any)
	assert.Contains(t, inner, "field")
	assert.Contains(t, inner, "op")
}

func TestBuilderValidJSONSchema(t *testing.T) {
	// The output must be accepted by the same compiler the tool registry
	// uses for validation.
	raw := NewObject().
		String("query", Required(), MinLength(1), MaxLength(200)).
		Boolean("verbose", Default(false)).
		Number("threshold", Minimum(0), Maximum(1)).
		Build()

	var v any
	require.NoError(t, json.Unmarshal(raw, &v))
}
