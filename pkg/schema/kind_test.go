package schema_test

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/teller/pkg/schema"
	"github.com/stretchr/testify/assert"
)

func TestTryCast_Integer(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   any
		status schema.CastStatus
	}{
		{"int", 5, int64(5), schema.CastCoerced},
		{"whole float", 5.0, int64(5), schema.CastCoerced},
		{"json number", json.Number("42"), int64(42), schema.CastCoerced},
		{"numeric string", "500", int64(500), schema.CastCoerced},
		{"grouped digits", "1 000", int64(1000), schema.CastCoerced},
		{"fractional float", 5.5, 5.5, schema.CastFallback},
		{"word", "five", "five", schema.CastFallback},
		{"bool", true, true, schema.CastFallback},
		{"exponent beyond int64", "1e20", "1e20", schema.CastFallback},
		{"json number beyond int64", json.Number("1e19"), json.Number("1e19"), schema.CastFallback},
		{"float beyond int64", float64(1e19), float64(1e19), schema.CastFallback},
		{"one past max int64", "9223372036854775808", "9223372036854775808", schema.CastFallback},
		{"negative beyond int64", -1e19, -1e19, schema.CastFallback},
		{"max int64", "9223372036854775807", int64(9223372036854775807), schema.CastCoerced},
		{"exponent in range", "1e3", int64(1000), schema.CastCoerced},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := schema.KindInteger.TryCast(tt.in)
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.want, res.Value)
			if tt.status == schema.CastFallback {
				assert.Error(t, res.Err)
			}
		})
	}
}

func TestTryCast_Number(t *testing.T) {
	res := schema.KindNumber.TryCast("1000")
	assert.Equal(t, schema.CastCoerced, res.Status)
	assert.Equal(t, 1000.0, res.Value)

	res = schema.KindNumber.TryCast(7)
	assert.Equal(t, 7.0, res.Value)

	res = schema.KindNumber.TryCast("миң сом")
	assert.Equal(t, schema.CastFallback, res.Status)
	assert.Equal(t, "миң сом", res.Value, "raw value passes through unchanged")
}

func TestTryCast_String(t *testing.T) {
	assert.Equal(t, "Aigul", schema.KindString.TryCast("Aigul").Value)
	assert.Equal(t, "500", schema.KindString.TryCast(500).Value)
	assert.Equal(t, "12.5", schema.KindString.TryCast(12.5).Value)

	res := schema.KindString.TryCast([]int{1})
	assert.Equal(t, schema.CastFallback, res.Status)
}

func TestTryCast_Boolean(t *testing.T) {
	assert.Equal(t, true, schema.KindBoolean.TryCast("yes").Value)
	assert.Equal(t, false, schema.KindBoolean.TryCast(0).Value)
	assert.Equal(t, schema.CastFallback, schema.KindBoolean.TryCast("maybe").Status)
}

func TestTryCast_StringArray(t *testing.T) {
	res := schema.KindStringArray.TryCast("Visa Gold Debit, Elkart")
	assert.Equal(t, schema.CastCoerced, res.Status)
	assert.Equal(t, []string{"Visa Gold Debit", "Elkart"}, res.Value)

	res = schema.KindStringArray.TryCast(`["Card Plus", "Virtual Card"]`)
	assert.Equal(t, []string{"Card Plus", "Virtual Card"}, res.Value)

	res = schema.KindStringArray.TryCast([]any{"a", 1})
	assert.Equal(t, []string{"a", "1"}, res.Value)

	res = schema.KindStringArray.TryCast(`[broken`)
	assert.Equal(t, schema.CastFallback, res.Status)
}

func TestTryCast_Object(t *testing.T) {
	res := schema.KindObject.TryCast(`{"type": "debit"}`)
	assert.Equal(t, schema.CastCoerced, res.Status)
	assert.Equal(t, map[string]any{"type": "debit"}, res.Value)

	res = schema.KindObject.TryCast("debit")
	assert.Equal(t, schema.CastFallback, res.Status)
	assert.Equal(t, "debit", res.Value)
}

func TestTryCast_Nil(t *testing.T) {
	for _, k := range []schema.Kind{schema.KindString, schema.KindInteger, schema.KindObject} {
		res := k.TryCast(nil)
		assert.Equal(t, schema.CastFailed, res.Status, k)
		assert.Nil(t, res.Value)
	}
}

func TestParseKind(t *testing.T) {
	k, err := schema.ParseKind("array")
	assert.NoError(t, err)
	assert.Equal(t, schema.KindStringArray, k)

	_, err = schema.ParseKind("date")
	assert.Error(t, err)
}
