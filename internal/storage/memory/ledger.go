// Package memory implements the item ledger without an external store. Each
// item row sits behind its own mutex so the check-then-set in ReserveItem and
// MarkSold is exactly as atomic as the Postgres conditional UPDATE it mirrors.
// Intended for single-node deployments and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Hyllekvist/dripdrops/internal/domain"
)

type itemEntry struct {
	mu   sync.Mutex
	item domain.Item
}

type Ledger struct {
	mu           sync.RWMutex
	items        map[string]*itemEntry
	reservations map[string][]domain.Reservation // keyed by item id
}

func NewLedger() *Ledger {
	return &Ledger{
		items:        make(map[string]*itemEntry),
		reservations: make(map[string][]domain.Reservation),
	}
}

// WithTx satisfies the ledger contract. The memory backend has no multi-step
// transactions to protect: every conditional transition is atomic under its
// item's mutex, and the audit append after a granted hold is not invariant
// bearing.
func (l *Ledger) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (l *Ledger) GetItem(_ context.Context, itemID string) (domain.Item, error) {
	entry, err := l.entry(itemID)
	if err != nil {
		return domain.Item{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.item, nil
}

func (l *Ledger) ReserveItem(_ context.Context, itemID, token string, until, now time.Time) (bool, error) {
	entry, err := l.entry(itemID)
	if err != nil {
		return false, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.item.Sold || entry.item.HasActiveHold(now) {
		return false, nil
	}
	u := until
	entry.item.ReservedUntil = &u
	entry.item.ReservedToken = token
	return true, nil
}

func (l *Ledger) MarkSold(_ context.Context, itemID, token string, now time.Time) (bool, error) {
	entry, err := l.entry(itemID)
	if err != nil {
		return false, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.item.Sold || !entry.item.HasActiveHold(now) {
		return false, nil
	}
	if token != "" && entry.item.ReservedToken != token {
		return false, nil
	}
	entry.item.Sold = true
	return true, nil
}

func (l *Ledger) CreateReservation(_ context.Context, res domain.Reservation) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reservations[res.ItemID] = append(l.reservations[res.ItemID], res)
	return nil
}

func (l *Ledger) FinalizeReservation(_ context.Context, itemID, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	list := l.reservations[itemID]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Outcome != domain.ReservationGranted {
			continue
		}
		if token != "" && list[i].Token != token {
			continue
		}
		list[i].Outcome = domain.ReservationFinalized
		return nil
	}
	return nil
}

func (l *Ledger) CreateItem(_ context.Context, item domain.Item) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items[item.ID] = &itemEntry{item: item}
	return nil
}

func (l *Ledger) ListItems(ctx context.Context) ([]domain.Item, error) {
	return l.listItems(func(domain.Item) bool { return true })
}

func (l *Ledger) ListItemsByDrop(_ context.Context, dropID string) ([]domain.Item, error) {
	return l.listItems(func(item domain.Item) bool { return item.DropID == dropID })
}

func (l *Ledger) ListReservationsByItem(_ context.Context, itemID string) ([]domain.Reservation, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	list := l.reservations[itemID]
	out := make([]domain.Reservation, len(list))
	copy(out, list)
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (l *Ledger) entry(itemID string) (*itemEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entry, ok := l.items[itemID]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	return entry, nil
}

func (l *Ledger) listItems(keep func(domain.Item) bool) ([]domain.Item, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []domain.Item
	for _, entry := range l.items {
		entry.mu.Lock()
		item := entry.item
		entry.mu.Unlock()
		if keep(item) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
