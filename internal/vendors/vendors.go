// Package vendors is a read-only view of payout destinations. Rows are
// written by the external connect flow; the reconciliation core only looks
// them up at dispatch time.
package vendors

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorpay-backend/pkg/db/models"
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorpay-backend/pkg/errors"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Find returns the vendor's account for the provider. A missing or
// disconnected row yields PAYOUT_ERROR with a vendor-not-connected message;
// the dispatcher records it on the order for operator attention.
func (r *Repository) Find(ctx context.Context, vendorID uuid.UUID, provider enums.Provider) (*models.VendorAccount, error) {
	var account models.VendorAccount
	err := r.db.WithContext(ctx).
		Where("vendor_id = ? AND provider = ?", vendorID, provider).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodePayout, "vendor not connected for "+provider.String())
	}
	if err != nil {
		return nil, err
	}
	if !account.Connected {
		return nil, pkgerrors.New(pkgerrors.CodePayout, "vendor not connected for "+provider.String())
	}
	return &account, nil
}
