package audit

import (
	"context"
	"fmt"
	"sort"
)

// Repository provides read access to the audit trail.
type Repository interface {
	ListByOrder(ctx context.Context, orderID int64) ([]Entry, error)
}

// Service exposes the audit query surface. Reads never block writers and
// may see a slightly stale snapshot.
type Service struct {
	repo Repository
}

// NewService builds an audit query service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// History returns the order's entries ordered by timestamp ascending.
func (s *Service) History(ctx context.Context, orderID int64) ([]Entry, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	entries, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].At.Equal(entries[j].At) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].At.Before(entries[j].At)
	})
	return entries, nil
}
