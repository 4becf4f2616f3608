package app

import (
	"context"
	"time"

	"github.com/Hyllekvist/dripdrops/internal/clock"
	"github.com/Hyllekvist/dripdrops/internal/domain"
	"github.com/Hyllekvist/dripdrops/internal/obs"
)

// SaleLedger is the slice of the item ledger the finalize path needs.
type SaleLedger interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	// MarkSold flips sold only while an unexpired hold exists; when token is
	// non-empty it must also match the hold that granted it. Returns whether
	// the transition applied.
	MarkSold(ctx context.Context, itemID, token string, now time.Time) (bool, error)
	GetItem(ctx context.Context, itemID string) (domain.Item, error)
	// FinalizeReservation moves the granted audit row for the hold to the
	// finalized outcome.
	FinalizeReservation(ctx context.Context, itemID, token string) error
}

type SaleService struct {
	ledger  SaleLedger
	clock   clock.Clock
	events  EventPublisher
	metrics *obs.Metrics
}

func NewSaleService(ledger SaleLedger, clk clock.Clock, opts ...SaleServiceOption) *SaleService {
	svc := &SaleService{
		ledger: ledger,
		clock:  clk,
		events: NopPublisher{},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type SaleServiceOption func(*SaleService)

func WithSaleEvents(p EventPublisher) SaleServiceOption {
	return func(s *SaleService) {
		if p != nil {
			s.events = p
		}
	}
}

func WithSaleMetrics(m *obs.Metrics) SaleServiceOption {
	return func(s *SaleService) {
		s.metrics = m
	}
}

type FinalizeSaleInput struct {
	ItemID string
	// HoldToken, when set, pins the finalize to the hold the caller won.
	// Empty still requires some unexpired hold to exist on the item.
	HoldToken string
}

// FinalizeSale converts an active hold into a permanent sale after the
// caller's payment signal. It is guarded: a finalize attempted after the
// window lapsed, or against a hold the caller no longer owns, fails with
// ErrHoldExpired instead of selling out from under the current holder.
// Finalizing an already-sold item reports ErrAlreadySold so retries can
// treat it as done.
func (s *SaleService) FinalizeSale(ctx context.Context, in FinalizeSaleInput) error {
	if in.ItemID == "" {
		return domain.ErrInvalidID
	}

	now := s.clock.Now()
	start := time.Now()

	err := s.ledger.WithTx(ctx, func(txCtx context.Context) error {
		matched, err := s.ledger.MarkSold(txCtx, in.ItemID, in.HoldToken, now)
		if err != nil {
			return err
		}
		if !matched {
			item, err := s.ledger.GetItem(txCtx, in.ItemID)
			if err != nil {
				return err
			}
			if item.Sold {
				return domain.ErrAlreadySold
			}
			return domain.ErrHoldExpired
		}

		return s.ledger.FinalizeReservation(txCtx, in.ItemID, in.HoldToken)
	})

	s.metrics.ObserveFinalize(start, err)
	if err != nil {
		return err
	}

	s.events.ItemSold(ctx, in.ItemID)
	return nil
}
