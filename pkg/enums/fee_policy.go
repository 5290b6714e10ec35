package enums

import "fmt"

// FeePolicyKind selects how the platform fee is derived from an order total.
type FeePolicyKind string

const (
	FeePolicyPercentage FeePolicyKind = "percentage"
	FeePolicyFixed      FeePolicyKind = "fixed"
)

var validFeePolicyKinds = []FeePolicyKind{
	FeePolicyPercentage,
	FeePolicyFixed,
}

// IsValid reports whether the value is a known FeePolicyKind.
func (k FeePolicyKind) IsValid() bool {
	for _, candidate := range validFeePolicyKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseFeePolicyKind converts raw input into a FeePolicyKind.
func ParseFeePolicyKind(value string) (FeePolicyKind, error) {
	for _, candidate := range validFeePolicyKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fee policy kind %q", value)
}

// FeeBearer controls who absorbs a provider's own transaction fee on top of
// the platform/vendor split. Paystack-specific; other providers ignore it.
type FeeBearer string

const (
	FeeBearerAccount         FeeBearer = "account"
	FeeBearerSubaccount      FeeBearer = "subaccount"
	FeeBearerAll             FeeBearer = "all"
	FeeBearerAllProportional FeeBearer = "all_proportional"
)

var validFeeBearers = []FeeBearer{
	FeeBearerAccount,
	FeeBearerSubaccount,
	FeeBearerAll,
	FeeBearerAllProportional,
}

// IsValid reports whether the value is a known FeeBearer.
func (b FeeBearer) IsValid() bool {
	for _, candidate := range validFeeBearers {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseFeeBearer converts raw input into a FeeBearer.
func ParseFeeBearer(value string) (FeeBearer, error) {
	for _, candidate := range validFeeBearers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fee bearer %q", value)
}
