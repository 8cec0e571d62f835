package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service exposes usage aggregates to the HTTP layer.
type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

// Summary aggregates total usage for userID over period, ending now.
func (s *Service) Summary(ctx context.Context, userID uuid.UUID, period Period) (Summary, error) {
	now := time.Now()
	sum, err := s.store.Summary(ctx, userID, period.since(now))
	if err != nil {
		return Summary{}, err
	}
	sum.Period = period
	return sum, nil
}

// Timeline buckets usage for userID over period, ending now.
func (s *Service) Timeline(ctx context.Context, userID uuid.UUID, period Period) ([]TimelinePoint, error) {
	now := time.Now()
	return s.store.Timeline(ctx, userID, period.since(now), period.truncUnit())
}
