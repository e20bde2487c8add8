package pricing

import (
	"fmt"
	"strings"
)

// UnknownModelPolicy decides what happens when a model id is missing from the table.
type UnknownModelPolicy int

const (
	// PolicyZero prices unknown models at zero without error.
	PolicyZero UnknownModelPolicy = iota
	// PolicyStrict rejects unknown models with apperrors.ErrUnknownModel.
	PolicyStrict
)

// String returns the configuration name of the policy.
func (p UnknownModelPolicy) String() string {
	switch p {
	case PolicyZero:
		return "zero"
	case PolicyStrict:
		return "strict"
	default:
		return "unknown"
	}
}

// ParsePolicy converts a configuration value into a policy. Empty means PolicyZero.
func ParsePolicy(s string) (UnknownModelPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "zero":
		return PolicyZero, nil
	case "strict", "error":
		return PolicyStrict, nil
	default:
		return PolicyZero, fmt.Errorf("invalid unknown model policy %q (want zero or strict)", s)
	}
}
