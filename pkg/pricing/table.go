// Package pricing holds the static price schedule for supported models and
// converts token usage into cost.
package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ekaya-inc/gepetto/pkg/apperrors"
)

// CostPlaces is the number of decimal places every computed amount is rounded to.
const CostPlaces = 4

var thousand = decimal.NewFromInt(1000)

// Direction selects which side of a call is being priced.
type Direction string

const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// ParseDirection converts a user-supplied string into a Direction.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case DirectionInput:
		return DirectionInput, nil
	case DirectionOutput:
		return DirectionOutput, nil
	default:
		return "", fmt.Errorf("invalid direction %q (want input or output)", s)
	}
}

// ModelSpec is one row of the price table.
type ModelSpec struct {
	ID          string
	InputPer1K  decimal.Decimal // USD per 1000 prompt tokens
	OutputPer1K decimal.Decimal // USD per 1000 completion tokens
}

// PerThousand returns the price per 1000 tokens for the given direction.
func (s ModelSpec) PerThousand(dir Direction) decimal.Decimal {
	if dir == DirectionInput {
		return s.InputPer1K
	}
	return s.OutputPer1K
}

// Table is an immutable, ordered price schedule with a designated default model.
// Lookups are a linear scan over the rows, O(n) in the number of models.
type Table struct {
	specs     []ModelSpec
	defaultID string
	policy    UnknownModelPolicy
}

// Option configures a Table at construction time.
type Option func(*Table)

// WithUnknownModelPolicy sets how the table prices model ids it does not contain.
func WithUnknownModelPolicy(p UnknownModelPolicy) Option {
	return func(t *Table) {
		t.policy = p
	}
}

// NewTable validates the rows and returns a Table.
// Ids must be non-empty and unique, prices non-negative, and defaultID must name a row.
func NewTable(specs []ModelSpec, defaultID string, opts ...Option) (*Table, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("price table must contain at least one model")
	}

	seen := make(map[string]struct{}, len(specs))
	for _, s := range specs {
		if s.ID == "" {
			return nil, fmt.Errorf("price table entry has empty model id")
		}
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("duplicate model id %q in price table", s.ID)
		}
		if s.InputPer1K.IsNegative() || s.OutputPer1K.IsNegative() {
			return nil, fmt.Errorf("model %q has a negative price", s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	if _, ok := seen[defaultID]; !ok {
		return nil, fmt.Errorf("default model %q is not in the price table", defaultID)
	}

	t := &Table{
		specs:     append([]ModelSpec(nil), specs...),
		defaultID: defaultID,
		policy:    PolicyZero,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// WithPolicy returns a copy of the table using the given unknown-model policy.
func (t *Table) WithPolicy(p UnknownModelPolicy) *Table {
	return &Table{
		specs:     t.specs,
		defaultID: t.defaultID,
		policy:    p,
	}
}

// Policy returns the table's unknown-model policy.
func (t *Table) Policy() UnknownModelPolicy {
	return t.policy
}

// DefaultModel returns the id of the designated default model.
func (t *Table) DefaultModel() string {
	return t.defaultID
}

// Models returns a copy of the rows in table order.
func (t *Table) Models() []ModelSpec {
	return append([]ModelSpec(nil), t.specs...)
}

// Lookup returns the first row whose id equals modelID.
func (t *Table) Lookup(modelID string) (ModelSpec, bool) {
	for _, s := range t.specs {
		if s.ID == modelID {
			return s, true
		}
	}
	return ModelSpec{}, false
}

// Resolve maps an empty model id to the default and applies the unknown-model policy.
// Under PolicyZero an unknown id is returned as-is.
func (t *Table) Resolve(modelID string) (string, error) {
	if modelID == "" {
		return t.defaultID, nil
	}
	if _, ok := t.Lookup(modelID); !ok && t.policy == PolicyStrict {
		return "", fmt.Errorf("%w: %s", apperrors.ErrUnknownModel, modelID)
	}
	return modelID, nil
}

// Price returns round(price_per_1k / 1000 * tokens, 4) for the model and direction.
// Unknown models price at zero unless the table uses PolicyStrict.
func (t *Table) Price(modelID string, tokens int, dir Direction) (decimal.Decimal, error) {
	if tokens < 0 {
		return decimal.Zero, fmt.Errorf("%w: %d", apperrors.ErrInvalidTokenCount, tokens)
	}
	if dir != DirectionInput && dir != DirectionOutput {
		return decimal.Zero, fmt.Errorf("invalid direction %q", dir)
	}

	resolved, err := t.Resolve(modelID)
	if err != nil {
		return decimal.Zero, err
	}

	spec, ok := t.Lookup(resolved)
	if !ok {
		return decimal.Zero, nil
	}

	return spec.PerThousand(dir).
		Mul(decimal.NewFromInt(int64(tokens))).
		Div(thousand).
		Round(CostPlaces), nil
}

// ChatCost prices prompt tokens at the input rate and completion tokens at the
// output rate, rounding each side before summing.
func (t *Table) ChatCost(modelID string, promptTokens, completionTokens int) (decimal.Decimal, error) {
	in, err := t.Price(modelID, promptTokens, DirectionInput)
	if err != nil {
		return decimal.Zero, err
	}
	out, err := t.Price(modelID, completionTokens, DirectionOutput)
	if err != nil {
		return decimal.Zero, err
	}
	return in.Add(out), nil
}

// FunctionCallCost prices the combined token count once at the output rate.
func (t *Table) FunctionCallCost(modelID string, totalTokens int) (decimal.Decimal, error) {
	return t.Price(modelID, totalTokens, DirectionOutput)
}
