package payouts

import (
	"context"

	"github.com/angelmondragon/vendorpay-backend/pkg/mercadopago"
	"github.com/angelmondragon/vendorpay-backend/pkg/paypal"
	"github.com/angelmondragon/vendorpay-backend/pkg/paystack"
)

// PayPalTransfer sends a single-item payout batch. PayPal deduplicates on
// the sender batch id, which the client derives from the reference.
type PayPalTransfer struct {
	Client *paypal.Client
}

func (t *PayPalTransfer) SendTransfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	result, err := t.Client.SendPayout(ctx, paypal.PayoutParams{
		Receiver:    req.Destination,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Reference:   req.Reference,
		Note:        "vendor earnings",
	})
	if err != nil {
		return nil, err
	}
	return &TransferResult{BatchID: result.BatchID}, nil
}

// PaystackTransfer moves balance to an existing transfer recipient.
type PaystackTransfer struct {
	Client *paystack.Client
}

func (t *PaystackTransfer) SendTransfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	result, err := t.Client.Transfer(ctx, paystack.TransferParams{
		RecipientCode: req.Destination,
		AmountMinor:   req.AmountMinor,
		Currency:      req.Currency,
		Reference:     req.Reference,
		Reason:        "vendor earnings",
	})
	if err != nil {
		return nil, err
	}
	return &TransferResult{BatchID: result.TransferCode}, nil
}

// MercadoPagoTransfer sends a money transfer to the vendor's user id.
type MercadoPagoTransfer struct {
	Client *mercadopago.Client
}

func (t *MercadoPagoTransfer) SendTransfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	result, err := t.Client.Transfer(ctx, mercadopago.TransferParams{
		ReceiverID:  req.Destination,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Reference:   req.Reference,
	})
	if err != nil {
		return nil, err
	}
	return &TransferResult{BatchID: result.TransferID}, nil
}

// SquareTransfer records a direct-settlement payout. Square marketplace
// payments settle into the vendor's own Square account at charge time, so
// there is no transfer API call; the attempt log still gets a batch id for
// the bookkeeping trail.
type SquareTransfer struct{}

func (t SquareTransfer) SendTransfer(_ context.Context, req TransferRequest) (*TransferResult, error) {
	return &TransferResult{BatchID: "square-direct:" + req.Reference}, nil
}

// OfflineTransfer records a payout settled outside any provider (cash, bank
// wire handled manually). Ledger-only.
type OfflineTransfer struct{}

func (t OfflineTransfer) SendTransfer(_ context.Context, req TransferRequest) (*TransferResult, error) {
	return &TransferResult{BatchID: "offline:" + req.Reference}, nil
}
