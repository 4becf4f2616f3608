package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Hyllekvist/dripdrops/internal/clock"
	"github.com/Hyllekvist/dripdrops/internal/domain"
)

func TestReserveService_Reserve(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ttl := 120 * time.Second

	makeSvc := func(items []domain.Item) (*ReserveService, *fakeLedger) {
		ledger := newFakeLedger(items)
		svc := NewReserveService(ledger, clock.NewFixed(now), WithHoldTTL(ttl))
		return svc, ledger
	}

	t.Run("grants hold on a free item", func(t *testing.T) {
		svc, ledger := makeSvc([]domain.Item{{ID: "item-1"}})

		hold, err := svc.Reserve(context.Background(), "item-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if hold.Token == "" {
			t.Fatalf("expected a hold token")
		}
		if hold.ExpiresAt != now.Add(ttl) {
			t.Fatalf("expected expires_at %v, got %v", now.Add(ttl), hold.ExpiresAt)
		}

		item := ledger.items["item-1"]
		if item.ReservedUntil == nil || !item.ReservedUntil.Equal(now.Add(ttl)) {
			t.Fatalf("ledger reserved_until not set to %v: %+v", now.Add(ttl), item.ReservedUntil)
		}
		if item.ReservedToken != hold.Token {
			t.Fatalf("ledger token %q does not match returned hold %q", item.ReservedToken, hold.Token)
		}
		if len(ledger.reservations) != 1 {
			t.Fatalf("expected 1 audit row, got %d", len(ledger.reservations))
		}
		if ledger.reservations[0].Outcome != domain.ReservationGranted {
			t.Fatalf("expected granted audit row, got %s", ledger.reservations[0].Outcome)
		}
	})

	t.Run("conflict while another hold is active", func(t *testing.T) {
		held := now.Add(90 * time.Second)
		svc, ledger := makeSvc([]domain.Item{
			{ID: "item-1", ReservedUntil: &held, ReservedToken: "other-token"},
		})

		_, err := svc.Reserve(context.Background(), "item-1")
		if !errors.Is(err, domain.ErrItemConflict) {
			t.Fatalf("expected ErrItemConflict, got %v", err)
		}
		if len(ledger.reservations) != 0 {
			t.Fatalf("losing attempt must not append audit rows, got %d", len(ledger.reservations))
		}
		if got := ledger.items["item-1"].ReservedToken; got != "other-token" {
			t.Fatalf("losing attempt must not move the hold, token now %q", got)
		}
	})

	t.Run("conflict on a sold item, forever", func(t *testing.T) {
		svc, _ := makeSvc([]domain.Item{{ID: "item-1", Sold: true}})

		for i := 0; i < 3; i++ {
			_, err := svc.Reserve(context.Background(), "item-1")
			if !errors.Is(err, domain.ErrItemConflict) {
				t.Fatalf("attempt %d: expected ErrItemConflict, got %v", i, err)
			}
		}
	})

	t.Run("expired hold self-heals without release", func(t *testing.T) {
		lapsed := now.Add(-time.Second)
		svc, _ := makeSvc([]domain.Item{
			{ID: "item-1", ReservedUntil: &lapsed, ReservedToken: "stale-token"},
		})

		hold, err := svc.Reserve(context.Background(), "item-1")
		if err != nil {
			t.Fatalf("expected reserve over lapsed hold to succeed, got %v", err)
		}
		if hold.Token == "stale-token" {
			t.Fatalf("expected a fresh token")
		}
	})

	t.Run("unknown item", func(t *testing.T) {
		svc, _ := makeSvc(nil)

		_, err := svc.Reserve(context.Background(), "missing")
		if !errors.Is(err, domain.ErrItemNotFound) {
			t.Fatalf("expected ErrItemNotFound, got %v", err)
		}
	})

	t.Run("empty item id", func(t *testing.T) {
		svc, _ := makeSvc(nil)

		_, err := svc.Reserve(context.Background(), "")
		if !errors.Is(err, domain.ErrInvalidID) {
			t.Fatalf("expected ErrInvalidID, got %v", err)
		}
	})

	t.Run("ledger write error is not conflict", func(t *testing.T) {
		svc, ledger := makeSvc([]domain.Item{{ID: "item-1"}})
		ledger.reserveErr = errors.New("connection reset")

		_, err := svc.Reserve(context.Background(), "item-1")
		if err == nil || errors.Is(err, domain.ErrItemConflict) {
			t.Fatalf("infra failure must surface as an error, got %v", err)
		}
	})

	t.Run("publishes reserved event on success only", func(t *testing.T) {
		pub := &recordingPublisher{}
		ledger := newFakeLedger([]domain.Item{{ID: "item-1"}})
		svc := NewReserveService(ledger, clock.NewFixed(now), WithHoldTTL(ttl), WithReserveEvents(pub))

		if _, err := svc.Reserve(context.Background(), "item-1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := svc.Reserve(context.Background(), "item-1"); !errors.Is(err, domain.ErrItemConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
		if pub.reserved != 1 {
			t.Fatalf("expected 1 reserved event, got %d", pub.reserved)
		}
	})
}

// fakeLedger is an unsynchronized in-test ledger; race coverage lives in the
// memory backend's tests.
type fakeLedger struct {
	items        map[string]domain.Item
	reservations []domain.Reservation
	reserveErr   error
	markSoldErr  error
}

func newFakeLedger(items []domain.Item) *fakeLedger {
	m := make(map[string]domain.Item, len(items))
	for _, item := range items {
		m[item.ID] = item
	}
	return &fakeLedger{items: m}
}

func (f *fakeLedger) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeLedger) GetItem(_ context.Context, itemID string) (domain.Item, error) {
	item, ok := f.items[itemID]
	if !ok {
		return domain.Item{}, domain.ErrItemNotFound
	}
	return item, nil
}

func (f *fakeLedger) ReserveItem(_ context.Context, itemID, token string, until, now time.Time) (bool, error) {
	if f.reserveErr != nil {
		return false, f.reserveErr
	}
	item, ok := f.items[itemID]
	if !ok {
		return false, nil
	}
	if item.Sold || item.HasActiveHold(now) {
		return false, nil
	}
	u := until
	item.ReservedUntil = &u
	item.ReservedToken = token
	f.items[itemID] = item
	return true, nil
}

func (f *fakeLedger) MarkSold(_ context.Context, itemID, token string, now time.Time) (bool, error) {
	if f.markSoldErr != nil {
		return false, f.markSoldErr
	}
	item, ok := f.items[itemID]
	if !ok {
		return false, nil
	}
	if item.Sold || !item.HasActiveHold(now) {
		return false, nil
	}
	if token != "" && item.ReservedToken != token {
		return false, nil
	}
	item.Sold = true
	f.items[itemID] = item
	return true, nil
}

func (f *fakeLedger) CreateReservation(_ context.Context, res domain.Reservation) error {
	f.reservations = append(f.reservations, res)
	return nil
}

func (f *fakeLedger) FinalizeReservation(_ context.Context, itemID, token string) error {
	for i := len(f.reservations) - 1; i >= 0; i-- {
		res := f.reservations[i]
		if res.ItemID != itemID || res.Outcome != domain.ReservationGranted {
			continue
		}
		if token != "" && res.Token != token {
			continue
		}
		f.reservations[i].Outcome = domain.ReservationFinalized
		return nil
	}
	return nil
}

type recordingPublisher struct {
	reserved int
	sold     int
}

func (p *recordingPublisher) ItemReserved(context.Context, string, time.Time) { p.reserved++ }
func (p *recordingPublisher) ItemSold(context.Context, string)                { p.sold++ }
