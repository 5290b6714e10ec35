package fees

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendorpay-backend/pkg/config"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
)

// BearerFromConfig parses the configured Paystack fee bearer.
func BearerFromConfig(cfg config.FeesConfig) (enums.FeeBearer, error) {
	bearer, err := enums.ParseFeeBearer(cfg.PaystackBearer)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeConfiguration, err, "paystack fee bearer")
	}
	return bearer, nil
}

// ApplyBearer deducts the provider's own transaction charge from the split
// according to the bearer rule. This is a post-split adjustment used by
// providers with a fee-bearer dimension (Paystack); the generic calculator
// never sees it.
//
// Rules:
//   - account: the platform absorbs the whole charge.
//   - subaccount: the vendor absorbs the whole charge.
//   - all: the charge is halved, odd remainder to the platform.
//   - all_proportional: the charge is divided pro rata to each side's share
//     of the total, rounding the vendor portion half-up, remainder to the
//     platform.
//
// A share driven below zero spills the shortfall onto the other side so the
// combined deduction always equals the charge.
func ApplyBearer(split Split, providerChargeMinor int64, bearer enums.FeeBearer) (Split, error) {
	if providerChargeMinor < 0 {
		return Split{}, pkgerrors.New(pkgerrors.CodeValidation, "provider charge cannot be negative")
	}
	total := split.PlatformFeeMinor + split.VendorEarningsMinor
	if providerChargeMinor > total {
		return Split{}, pkgerrors.New(pkgerrors.CodeValidation, "provider charge exceeds order total")
	}
	if providerChargeMinor == 0 {
		return split, nil
	}

	var platformShare int64
	switch bearer {
	case enums.FeeBearerAccount:
		platformShare = providerChargeMinor
	case enums.FeeBearerSubaccount:
		platformShare = 0
	case enums.FeeBearerAll:
		platformShare = providerChargeMinor - providerChargeMinor/2
	case enums.FeeBearerAllProportional:
		vendorShare := decimal.NewFromInt(providerChargeMinor).
			Mul(decimal.NewFromInt(split.VendorEarningsMinor)).
			Div(decimal.NewFromInt(total)).
			Round(0).
			IntPart()
		platformShare = providerChargeMinor - vendorShare
	default:
		return Split{}, pkgerrors.New(pkgerrors.CodeConfiguration,
			fmt.Sprintf("unsupported fee bearer %q", bearer))
	}

	adjusted := Split{
		PlatformFeeMinor:    split.PlatformFeeMinor - platformShare,
		VendorEarningsMinor: split.VendorEarningsMinor - (providerChargeMinor - platformShare),
	}
	if adjusted.PlatformFeeMinor < 0 {
		adjusted.VendorEarningsMinor += adjusted.PlatformFeeMinor
		adjusted.PlatformFeeMinor = 0
	}
	if adjusted.VendorEarningsMinor < 0 {
		adjusted.PlatformFeeMinor += adjusted.VendorEarningsMinor
		adjusted.VendorEarningsMinor = 0
	}
	return adjusted, nil
}
