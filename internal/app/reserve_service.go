package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Hyllekvist/dripdrops/internal/clock"
	"github.com/Hyllekvist/dripdrops/internal/domain"
	"github.com/Hyllekvist/dripdrops/internal/obs"
)

// ReserveLedger is the slice of the item ledger the reservation path needs.
// ReserveItem must apply the conditional transition atomically: either the
// condition held at commit time and exactly this caller's hold was written,
// or nothing changed.
type ReserveLedger interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	// ReserveItem moves reserved_until/reserved_token forward only if the
	// item is unsold and carries no active hold at now. Returns whether the
	// transition applied.
	ReserveItem(ctx context.Context, itemID, token string, until, now time.Time) (bool, error)
	GetItem(ctx context.Context, itemID string) (domain.Item, error)
	CreateReservation(ctx context.Context, res domain.Reservation) error
}

// EventPublisher broadcasts lifecycle transitions to downstream collaborators
// (waitlist, analytics). Implementations must not block the request path on
// broker trouble.
type EventPublisher interface {
	ItemReserved(ctx context.Context, itemID string, expiresAt time.Time)
	ItemSold(ctx context.Context, itemID string)
}

// NopPublisher discards all events.
type NopPublisher struct{}

func (NopPublisher) ItemReserved(context.Context, string, time.Time) {}
func (NopPublisher) ItemSold(context.Context, string)                {}

const defaultHoldTTL = 120 * time.Second

type ReserveService struct {
	ledger  ReserveLedger
	clock   clock.Clock
	holdTTL time.Duration
	events  EventPublisher
	metrics *obs.Metrics
}

func NewReserveService(ledger ReserveLedger, clk clock.Clock, opts ...ReserveServiceOption) *ReserveService {
	svc := &ReserveService{
		ledger:  ledger,
		clock:   clk,
		holdTTL: defaultHoldTTL,
		events:  NopPublisher{},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type ReserveServiceOption func(*ReserveService)

// WithHoldTTL overrides the default hold window for new reservations.
func WithHoldTTL(d time.Duration) ReserveServiceOption {
	return func(s *ReserveService) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

func WithReserveEvents(p EventPublisher) ReserveServiceOption {
	return func(s *ReserveService) {
		if p != nil {
			s.events = p
		}
	}
}

func WithReserveMetrics(m *obs.Metrics) ReserveServiceOption {
	return func(s *ReserveService) {
		s.metrics = m
	}
}

// Reserve grants a time-boxed exclusive hold on the item, or fails with
// ErrItemConflict when another buyer's window has not expired or the item is
// sold. Expired holds need no release: the condition itself treats a past
// reserved_until as free.
func (s *ReserveService) Reserve(ctx context.Context, itemID string) (domain.Hold, error) {
	if itemID == "" {
		return domain.Hold{}, domain.ErrInvalidID
	}

	now := s.clock.Now()
	start := time.Now()
	token := uuid.NewString()
	expiresAt := now.Add(s.holdTTL)

	err := s.ledger.WithTx(ctx, func(txCtx context.Context) error {
		matched, err := s.ledger.ReserveItem(txCtx, itemID, token, expiresAt, now)
		if err != nil {
			return err
		}
		if !matched {
			// Zero rows matched is not a write error: the item is either
			// missing, sold, or held by someone else.
			if _, err := s.ledger.GetItem(txCtx, itemID); err != nil {
				return err
			}
			return domain.ErrItemConflict
		}

		return s.ledger.CreateReservation(txCtx, domain.Reservation{
			ID:        uuid.NewString(),
			ItemID:    itemID,
			Token:     token,
			ExpiresAt: expiresAt,
			Outcome:   domain.ReservationGranted,
			CreatedAt: now,
		})
	})

	s.metrics.ObserveReserve(start, err)
	if err != nil {
		return domain.Hold{}, err
	}

	s.events.ItemReserved(ctx, itemID, expiresAt)
	return domain.Hold{ItemID: itemID, Token: token, ExpiresAt: expiresAt}, nil
}
