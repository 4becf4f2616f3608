package app

import (
	"context"
	"time"

	"github.com/Hyllekvist/dripdrops/internal/clock"
	"github.com/Hyllekvist/dripdrops/internal/domain"
)

// StatusLedger is the read-only slice of the item ledger.
type StatusLedger interface {
	GetItem(ctx context.Context, itemID string) (domain.Item, error)
}

// SnapshotCache caches short-lived ledger snapshots for the polled status
// endpoint. A miss is never an error; the ledger stays authoritative.
type SnapshotCache interface {
	GetItem(ctx context.Context, itemID string) (domain.Item, bool)
	SetItem(ctx context.Context, itemID string, item domain.Item)
}

type StatusInfo struct {
	Status        domain.ItemStatus
	ReservedUntil *time.Time
}

type StatusService struct {
	ledger StatusLedger
	clock  clock.Clock
	cache  SnapshotCache
}

func NewStatusService(ledger StatusLedger, clk clock.Clock, opts ...StatusServiceOption) *StatusService {
	svc := &StatusService{
		ledger: ledger,
		clock:  clk,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type StatusServiceOption func(*StatusService)

// WithSnapshotCache enables read-through caching of item snapshots. The cache
// stores the raw (sold, reserved_until) pair, not the derived status, so the
// tri-state is always re-derived against the current instant.
func WithSnapshotCache(c SnapshotCache) StatusServiceOption {
	return func(s *StatusService) {
		s.cache = c
	}
}

// Status derives the public tri-state for an item. It never writes to the
// ledger and is safe to poll at any rate.
func (s *StatusService) Status(ctx context.Context, itemID string) (StatusInfo, error) {
	if itemID == "" {
		return StatusInfo{}, domain.ErrInvalidID
	}

	item, cached := s.cachedItem(ctx, itemID)
	if !cached {
		var err error
		item, err = s.ledger.GetItem(ctx, itemID)
		if err != nil {
			return StatusInfo{}, err
		}
		if s.cache != nil {
			s.cache.SetItem(ctx, itemID, item)
		}
	}

	return StatusInfo{
		Status:        domain.StatusOf(item.Sold, item.ReservedUntil, s.clock.Now()),
		ReservedUntil: item.ReservedUntil,
	}, nil
}

func (s *StatusService) cachedItem(ctx context.Context, itemID string) (domain.Item, bool) {
	if s.cache == nil {
		return domain.Item{}, false
	}
	return s.cache.GetItem(ctx, itemID)
}
