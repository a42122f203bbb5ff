package coerce_test

import (
	"testing"
	"time"

	"github.com/aretw0/teller/pkg/coerce"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultCoercer(t *testing.T) *coerce.Coercer {
	t.Helper()
	reg, err := schema.Default()
	require.NoError(t, err)
	return coerce.New(reg)
}

func TestCoerce_Transfer(t *testing.T) {
	c := defaultCoercer(t)

	out, err := c.Coerce("transfer_money", map[string]any{
		"to_name": "Aizada",
		"amount":  "1000",
		"comment": "dropped",
		"user_id": 99,
	}, nil, "7")
	require.NoError(t, err)
	require.Equal(t, coerce.Ready, out.Status)

	assert.Equal(t, "transfer_money", out.Call.Name)
	assert.Equal(t, "7", out.Call.Identity)
	assert.Equal(t, map[string]any{
		"to_name": "Aizada",
		"amount":  1000.0,
		"user_id": int64(7),
	}, out.Call.Arguments)
	assert.Equal(t, []string{"comment"}, out.Dropped)
	assert.NotContains(t, out.Arguments, "user_id")
}

func TestCoerce_UnknownOperation(t *testing.T) {
	_, err := defaultCoercer(t).Coerce("steal_money", nil, nil, "7")
	assert.ErrorIs(t, err, domain.ErrUnknownOperation)
}

func TestCoerce_MissingRequired(t *testing.T) {
	c := defaultCoercer(t)

	out, err := c.Coerce("transfer_money", map[string]any{"to_name": "  "}, nil, "7")
	require.NoError(t, err)
	assert.Equal(t, coerce.NeedsInput, out.Status)
	assert.Equal(t, []string{"to_name", "amount"}, out.Missing)
	assert.Equal(t, "to_name", out.MissingParam())
	assert.Empty(t, out.Call.Name)

	out, err = c.Coerce("transfer_money", map[string]any{"to_name": "Aizada"}, nil, "7")
	require.NoError(t, err)
	assert.Equal(t, []string{"amount"}, out.Missing)
	assert.Equal(t, map[string]any{"to_name": "Aizada"}, out.Arguments)
}

func TestCoerce_LenientFallback(t *testing.T) {
	out, err := defaultCoercer(t).Coerce("transfer_money", map[string]any{
		"to_name": "Aizada",
		"amount":  "миң",
	}, nil, "7")
	require.NoError(t, err)
	require.Equal(t, coerce.Ready, out.Status)
	assert.Equal(t, "миң", out.Call.Arguments["amount"])
	assert.Equal(t, []string{"amount"}, out.Fallbacks)
}

func TestCoerce_OutOfEnumPassesThrough(t *testing.T) {
	out, err := defaultCoercer(t).Coerce("get_card_details", map[string]any{
		"card_name": "Amex Centurion",
		"language":  "ru",
	}, nil, "7")
	require.NoError(t, err)
	require.Equal(t, coerce.Ready, out.Status)
	assert.Equal(t, "Amex Centurion", out.Call.Arguments["card_name"])
	assert.Equal(t, []string{"card_name"}, out.OutOfEnum)
}

func TestCoerce_MergesPending(t *testing.T) {
	c := defaultCoercer(t)
	pending := domain.NewPendingSlotState("7", "transfer_money", map[string]any{"to_name": "Aizada"}, time.Now())

	out, err := c.Coerce("transfer_money", map[string]any{"amount": 1000, "to_name": ""}, pending, "7")
	require.NoError(t, err)
	require.Equal(t, coerce.Ready, out.Status)
	assert.Equal(t, "Aizada", out.Call.Arguments["to_name"], "empty value must not erase pending")
	assert.Equal(t, 1000.0, out.Call.Arguments["amount"])

	// New values win over pending ones.
	out, err = c.Coerce("transfer_money", map[string]any{"amount": 5, "to_name": "Bakyt"}, pending, "7")
	require.NoError(t, err)
	assert.Equal(t, "Bakyt", out.Call.Arguments["to_name"])
}

func TestCoerce_IgnoresPendingOfOtherOperation(t *testing.T) {
	pending := domain.NewPendingSlotState("7", "get_incoming_sum_for_period",
		map[string]any{"start_date": "2024-01-01"}, time.Now())

	out, err := defaultCoercer(t).Coerce("get_outgoing_sum_for_period",
		map[string]any{"end_date": "2024-02-01"}, pending, "7")
	require.NoError(t, err)
	assert.Equal(t, []string{"start_date"}, out.Missing)
}

func TestCoerce_SlotFillingIsCommutative(t *testing.T) {
	c := defaultCoercer(t)
	a := map[string]any{"to_name": "Aizada"}
	b := map[string]any{"amount": "1000"}

	run := func(first, second map[string]any) domain.ValidatedCall {
		out, err := c.Coerce("transfer_money", first, nil, "7")
		require.NoError(t, err)
		require.Equal(t, coerce.NeedsInput, out.Status)
		pending := domain.NewPendingSlotState("7", "transfer_money", out.Arguments, time.Now())

		out, err = c.Coerce("transfer_money", second, pending, "7")
		require.NoError(t, err)
		require.Equal(t, coerce.Ready, out.Status)
		return out.Call
	}
	assert.Equal(t, run(a, b), run(b, a))
}

func TestCoerce_EveryOperation(t *testing.T) {
	reg, err := schema.Default()
	require.NoError(t, err)
	c := coerce.New(reg)

	sample := map[schema.Kind]any{
		schema.KindString:      "Elkart",
		schema.KindInteger:     5,
		schema.KindNumber:      10.5,
		schema.KindBoolean:     true,
		schema.KindStringArray: []string{"Elkart", "Card Plus"},
		schema.KindObject:      map[string]any{"type": "debit"},
	}

	for _, op := range reg.List() {
		t.Run(op.Name, func(t *testing.T) {
			full := map[string]any{"unknown_key": "x"}
			for _, p := range op.Params {
				full[p.Name] = sample[p.Kind]
			}
			out, err := c.Coerce(op.Name, full, nil, "7")
			require.NoError(t, err)
			require.Equal(t, coerce.Ready, out.Status)

			want := append(op.ParamNames(), coerce.DefaultIdentityKey)
			assert.ElementsMatch(t, want, keys(out.Call.Arguments))

			for _, missing := range op.Required() {
				partial := domain.CloneArgs(full)
				delete(partial, missing)
				out, err := c.Coerce(op.Name, partial, nil, "7")
				require.NoError(t, err)
				assert.Equal(t, coerce.NeedsInput, out.Status)
				assert.Equal(t, []string{missing}, out.Missing)
			}
		})
	}
}

func TestCoerce_CustomIdentityKey(t *testing.T) {
	reg, err := schema.NewRegistry(schema.NewOperation("ping", ""))
	require.NoError(t, err)
	c := coerce.New(reg, coerce.WithIdentityKey("customer"))

	out, err := c.Coerce("ping", nil, nil, "abc")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"customer": "abc"}, out.Call.Arguments)
	assert.Equal(t, "customer", c.IdentityKey())
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
