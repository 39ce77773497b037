// Package campaign is the read boundary onto campaigns. Campaign management lives in another service;
// settlement only needs ownership, status and the application deadline.
package campaign

import (
	"context"

	campaigndm "github.com/frahmantamala/creatorpay/internal/core/datamodel/campaign"
)

type RepositoryAPI interface {
	GetByID(ctx context.Context, id string) (*campaigndm.Campaign, error)
	ListByBrand(ctx context.Context, brandID string) ([]*campaigndm.Campaign, error)
	Create(ctx context.Context, c *campaigndm.Campaign) error
}
