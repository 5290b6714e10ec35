// Package fees computes the platform/vendor split of an order total.
package fees

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendorpay-backend/pkg/config"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
)

var (
	zero    = decimal.Zero
	hundred = decimal.NewFromInt(100)
)

// Policy selects how the platform fee is derived. Rate applies to the
// percentage kind, FixedMinor to the fixed kind.
type Policy struct {
	Kind       enums.FeePolicyKind
	Rate       decimal.Decimal
	FixedMinor int64
}

// Split is the outcome of applying a Policy. PlatformFeeMinor plus
// VendorEarningsMinor always equals the input total.
type Split struct {
	PlatformFeeMinor    int64
	VendorEarningsMinor int64
}

// PolicyFromConfig parses the configured fee policy. Malformed configuration
// is a hard error; a marketplace split is never silently defaulted.
func PolicyFromConfig(cfg config.FeesConfig) (Policy, error) {
	kind, err := enums.ParseFeePolicyKind(cfg.PolicyKind)
	if err != nil {
		return Policy{}, pkgerrors.Wrap(pkgerrors.CodeConfiguration, err, "fee policy kind")
	}

	policy := Policy{Kind: kind, FixedMinor: cfg.FixedMinor}
	if kind == enums.FeePolicyPercentage {
		rate, err := decimal.NewFromString(cfg.PercentageRate)
		if err != nil {
			return Policy{}, pkgerrors.Wrap(pkgerrors.CodeConfiguration, err, "fee percentage rate")
		}
		policy.Rate = rate
	}
	if err := policy.Validate(); err != nil {
		return Policy{}, err
	}
	return policy, nil
}

// Validate checks policy bounds: rate in [0,100], fixed fee non-negative.
func (p Policy) Validate() error {
	switch p.Kind {
	case enums.FeePolicyPercentage:
		if p.Rate.LessThan(zero) || p.Rate.GreaterThan(hundred) {
			return pkgerrors.New(pkgerrors.CodeConfiguration,
				fmt.Sprintf("fee rate %s out of range [0,100]", p.Rate))
		}
	case enums.FeePolicyFixed:
		if p.FixedMinor < 0 {
			return pkgerrors.New(pkgerrors.CodeConfiguration, "fixed fee cannot be negative")
		}
	default:
		return pkgerrors.New(pkgerrors.CodeConfiguration,
			fmt.Sprintf("unsupported fee policy kind %q", p.Kind))
	}
	return nil
}

// Compute derives the platform fee and vendor earnings from a total in minor
// units. Percentage fees round half-up on the minor unit; fixed fees clamp at
// the total so earnings never go negative.
func Compute(totalMinor int64, policy Policy) (Split, error) {
	if totalMinor < 0 {
		return Split{}, pkgerrors.New(pkgerrors.CodeValidation, "order total cannot be negative")
	}
	if err := policy.Validate(); err != nil {
		return Split{}, err
	}

	var fee int64
	switch policy.Kind {
	case enums.FeePolicyPercentage:
		fee = decimal.NewFromInt(totalMinor).
			Mul(policy.Rate).
			Div(hundred).
			Round(0).
			IntPart()
	case enums.FeePolicyFixed:
		fee = policy.FixedMinor
		if fee > totalMinor {
			fee = totalMinor
		}
	}

	return Split{
		PlatformFeeMinor:    fee,
		VendorEarningsMinor: totalMinor - fee,
	}, nil
}
