package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/frahmantamala/creatorpay/internal"
	"github.com/frahmantamala/creatorpay/internal/connect"
	accountdm "github.com/frahmantamala/creatorpay/internal/core/datamodel/account"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

var _ connect.RepositoryAPI = (*AccountRepository)(nil)

func (r *AccountRepository) GetByInfluencerID(ctx context.Context, influencerID string) (*connect.Account, error) {
	var model accountdm.ConnectedAccount
	if err := r.db.WithContext(ctx).Where("influencer_id = ?", influencerID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrAccountNotFound
		}
		return nil, err
	}
	return connect.FromDataModel(&model), nil
}

func (r *AccountRepository) Create(ctx context.Context, influencerID, externalAccountID string) (*connect.Account, error) {
	model := &accountdm.ConnectedAccount{
		InfluencerID:      influencerID,
		ExternalAccountID: externalAccountID,
		Status:            accountdm.StatusPending,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return r.GetByInfluencerID(ctx, influencerID)
		}
		return nil, err
	}
	return connect.FromDataModel(model), nil
}

func (r *AccountRepository) ApplyCapabilities(ctx context.Context, externalAccountID string, caps connect.Capabilities) (*connect.Account, *connect.Account, error) {
	var before, after accountdm.ConnectedAccount

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("external_account_id = ?", externalAccountID).First(&before).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return internal.ErrAccountNotFound
			}
			return err
		}

		err := tx.Model(&accountdm.ConnectedAccount{}).
			Where("id = ?", before.ID).
			Updates(map[string]interface{}{
				"status":            caps.Status(),
				"details_submitted": caps.DetailsSubmitted,
				"charges_enabled":   caps.ChargesEnabled,
				"payouts_enabled":   caps.PayoutsEnabled,
			}).Error
		if err != nil {
			return err
		}

		return tx.Where("id = ?", before.ID).First(&after).Error
	})
	if err != nil {
		return nil, nil, err
	}

	return connect.FromDataModel(&before), connect.FromDataModel(&after), nil
}
