package notification

import (
	"context"
	"time"

	"github.com/frahmantamala/creatorpay/internal"
)

type Service struct {
	repo RepositoryAPI
	now  func() time.Time
}

func NewService(repo RepositoryAPI) *Service {
	return &Service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// List returns the actor's own notifications, newest first.
func (s *Service) List(ctx context.Context, actor internal.Actor, unreadOnly bool, limit, offset int) ([]*Notification, error) {
	rows, err := s.repo.List(ctx, ListFilter{
		UserID:     actor.ID,
		UnreadOnly: unreadOnly,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return nil, err
	}

	out := make([]*Notification, len(rows))
	for i, row := range rows {
		out[i] = FromDataModel(row)
	}
	return out, nil
}

// MarkRead reports another user's notification as not found.
func (s *Service) MarkRead(ctx context.Context, actor internal.Actor, id string) (*Notification, error) {
	row, err := s.repo.MarkRead(ctx, id, actor.ID, s.now())
	if err != nil {
		return nil, err
	}
	return FromDataModel(row), nil
}
