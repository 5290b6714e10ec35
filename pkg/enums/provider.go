package enums

import "fmt"

// Provider identifies the payment gateway a webhook or payout belongs to.
type Provider string

const (
	ProviderPayPal      Provider = "paypal"
	ProviderSquare      Provider = "square"
	ProviderMercadoPago Provider = "mercadopago"
	ProviderPaystack    Provider = "paystack"
	ProviderOffline     Provider = "offline"
)

var validProviders = []Provider{
	ProviderPayPal,
	ProviderSquare,
	ProviderMercadoPago,
	ProviderPaystack,
	ProviderOffline,
}

// String implements fmt.Stringer.
func (p Provider) String() string {
	return string(p)
}

// IsValid reports whether the value is a known Provider.
func (p Provider) IsValid() bool {
	for _, candidate := range validProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProvider converts raw input into a Provider.
func ParseProvider(value string) (Provider, error) {
	for _, candidate := range validProviders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid provider %q", value)
}

// Providers returns every known provider.
func Providers() []Provider {
	out := make([]Provider, len(validProviders))
	copy(out, validProviders)
	return out
}
