package pricing

import "github.com/shopspring/decimal"

// DefaultModel is the current recommended model.
const DefaultModel = "gpt-4o-2024-08-06"

var builtin = mustTable([]ModelSpec{
	spec("gpt-4-32k", "0.03", "0.06"),
	spec("gpt-4-1106-preview", "0.01", "0.03"),
	spec("gpt-4-turbo", "0.01", "0.03"),
	spec("gpt-4o-mini", "0.000150", "0.000075"),
	spec(DefaultModel, "0.00250", "0.01"),
	spec("gpt-4o", "0.005", "0.015"),
	spec("gpt-4", "0.06", "0.12"),
	spec("gpt-3.5-turbo-1106", "0.001", "0.002"),
	spec("gpt-3.5-turbo-16k", "0.003", "0.004"),
	spec("gpt-3.5-turbo", "0.0015", "0.002"),
}, DefaultModel)

// Builtin returns the built-in price table with PolicyZero.
// The table is shared; it is never mutated.
func Builtin() *Table {
	return builtin
}

func spec(id, in, out string) ModelSpec {
	return ModelSpec{
		ID:          id,
		InputPer1K:  decimal.RequireFromString(in),
		OutputPer1K: decimal.RequireFromString(out),
	}
}

func mustTable(specs []ModelSpec, defaultID string) *Table {
	t, err := NewTable(specs, defaultID)
	if err != nil {
		panic(err)
	}
	return t
}
