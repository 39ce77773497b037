package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/frahmantamala/creatorpay/internal"
	"github.com/frahmantamala/creatorpay/internal/campaign"
	campaigndm "github.com/frahmantamala/creatorpay/internal/core/datamodel/campaign"
)

type CampaignRepository struct {
	db *gorm.DB
}

func NewCampaignRepository(db *gorm.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

var _ campaign.RepositoryAPI = (*CampaignRepository)(nil)

func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*campaigndm.Campaign, error) {
	var c campaigndm.Campaign
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrCampaignNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) ListByBrand(ctx context.Context, brandID string) ([]*campaigndm.Campaign, error) {
	var campaigns []*campaigndm.Campaign
	err := r.db.WithContext(ctx).
		Where("brand_id = ?", brandID).
		Order("created_at DESC").
		Find(&campaigns).Error
	return campaigns, err
}

// Create is used by the seeder; campaigns are otherwise written by the campaign service.
func (r *CampaignRepository) Create(ctx context.Context, c *campaigndm.Campaign) error {
	return r.db.WithContext(ctx).Create(c).Error
}
