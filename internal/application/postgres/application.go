package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/creatorpay/internal"
	"github.com/frahmantamala/creatorpay/internal/application"
	appdm "github.com/frahmantamala/creatorpay/internal/core/datamodel/application"
	txdm "github.com/frahmantamala/creatorpay/internal/core/datamodel/transaction"
)

type ApplicationRepository struct {
	db *gorm.DB
}

func NewApplicationRepository(db *gorm.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

var _ application.RepositoryAPI = (*ApplicationRepository)(nil)

func (r *ApplicationRepository) Create(ctx context.Context, app *application.Application) error {
	model, err := application.ToDataModel(app)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return internal.NewConflictError("an active application already exists for this campaign", internal.ErrCodeDuplicateApplication)
		}
		return err
	}
	app.ID = model.ID
	app.CreatedAt = model.CreatedAt
	app.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*application.Application, error) {
	var model appdm.Application
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrApplicationNotFound
		}
		return nil, err
	}
	return application.FromDataModel(&model), nil
}

func (r *ApplicationRepository) FindActiveByPair(ctx context.Context, campaignID, influencerID string) (*application.Application, error) {
	var models []*appdm.Application
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND influencer_id = ? AND status <> ?", campaignID, influencerID, appdm.StatusWithdrawn).
		Limit(1).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	return application.FromDataModel(models[0]), nil
}

func (r *ApplicationRepository) List(ctx context.Context, filter application.ListFilter) ([]*application.Application, error) {
	query := r.db.WithContext(ctx).Model(&appdm.Application{})

	if filter.BrandID != "" {
		query = query.
			Joins("JOIN campaigns ON campaigns.id = campaign_applications.campaign_id").
			Where("campaigns.brand_id = ?", filter.BrandID)
	}
	if filter.InfluencerID != "" {
		query = query.Where("campaign_applications.influencer_id = ?", filter.InfluencerID)
	}
	if filter.CampaignID != "" {
		query = query.Where("campaign_applications.campaign_id = ?", filter.CampaignID)
	}
	if filter.Status != "" {
		query = query.Where("campaign_applications.status = ?", filter.Status)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	var models []*appdm.Application
	err := query.
		Select("campaign_applications.*").
		Order("campaign_applications.created_at DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return application.FromDataModelSlice(models), nil
}

func (r *ApplicationRepository) TransitionStatus(ctx context.Context, id string, from, to appdm.Status, respondedAt *time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	if respondedAt != nil {
		updates["responded_at"] = *respondedAt
	}

	q := r.db.WithContext(ctx).
		Model(&appdm.Application{}).
		Where("id = ? AND status = ?", id, from)
	if to == appdm.StatusWithdrawn {
		q = q.Where("NOT EXISTS (SELECT 1 FROM transactions WHERE transactions.application_id = campaign_applications.id AND transactions.status = ?)",
			txdm.StatusPending)
	}
	result := q.Updates(updates)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return false, internal.NewConflictError("an active application already exists for this campaign", internal.ErrCodeDuplicateApplication)
		}
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *ApplicationRepository) HasPendingPayment(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&txdm.Transaction{}).
		Where("application_id = ? AND status = ?", id, txdm.StatusPending).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
