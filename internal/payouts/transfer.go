package payouts

import (
	"context"

	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
)

// TransferRequest is the provider-agnostic payout order. Destination is the
// vendor account's provider-specific target; Reference is the order id and
// doubles as the provider-side dedupe key wherever the API supports one.
type TransferRequest struct {
	Destination string
	AmountMinor int64
	Currency    enums.Currency
	Reference   string
}

// TransferResult carries the provider's reference for a sent transfer.
type TransferResult struct {
	BatchID string
}

// TransferClient sends vendor earnings through one provider's payout API.
type TransferClient interface {
	SendTransfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
}

// Registry maps providers to their transfer clients. Providers without an
// entry cannot dispatch; their orders fail with a configuration error.
type Registry map[enums.Provider]TransferClient
