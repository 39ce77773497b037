package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/creatorpay/internal"
	notifdm "github.com/frahmantamala/creatorpay/internal/core/datamodel/notification"
	"github.com/frahmantamala/creatorpay/internal/notification"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

var _ notification.RepositoryAPI = (*NotificationRepository)(nil)

func (r *NotificationRepository) Create(ctx context.Context, n *notifdm.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *NotificationRepository) List(ctx context.Context, filter notification.ListFilter) ([]*notifdm.Notification, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", filter.UserID)
	if filter.UnreadOnly {
		q = q.Where("read_at IS NULL")
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var rows []*notifdm.Notification
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string, at time.Time) (*notifdm.Notification, error) {
	var n notifdm.Notification
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&n).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return internal.ErrNotificationNotFound
			}
			return err
		}
		if n.ReadAt != nil {
			return nil
		}

		if err := tx.Model(&notifdm.Notification{}).
			Where("id = ? AND read_at IS NULL", n.ID).
			Update("read_at", at).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", n.ID).First(&n).Error
	})
	if err != nil {
		return nil, err
	}
	return &n, nil
}
