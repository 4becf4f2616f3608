package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/Hyllekvist/dripdrops/internal/domain"
)

func TestLedger_ReserveItem(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ttl := 120 * time.Second

	t.Run("grants a hold on a free item", func(t *testing.T) {
		ledger := newLedgerWithItem(t, "item-1")

		matched, err := ledger.ReserveItem(context.Background(), "item-1", "tok-a", now.Add(ttl), now)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !matched {
			t.Fatalf("expected the reserve to match")
		}

		item, err := ledger.GetItem(context.Background(), "item-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if item.ReservedUntil == nil || !item.ReservedUntil.Equal(now.Add(ttl)) {
			t.Fatalf("expected reserved_until %v, got %v", now.Add(ttl), item.ReservedUntil)
		}
		if item.ReservedToken != "tok-a" {
			t.Fatalf("expected token recorded, got %q", item.ReservedToken)
		}
	})

	t.Run("refuses while another hold is active", func(t *testing.T) {
		ledger := newLedgerWithItem(t, "item-1")
		mustReserve(t, ledger, "item-1", "tok-a", now.Add(ttl), now)

		matched, err := ledger.ReserveItem(context.Background(), "item-1", "tok-b", now.Add(ttl), now.Add(time.Second))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if matched {
			t.Fatalf("second reserve must not match under an active hold")
		}

		item, _ := ledger.GetItem(context.Background(), "item-1")
		if item.ReservedToken != "tok-a" {
			t.Fatalf("losing reserve must not overwrite the hold, got %q", item.ReservedToken)
		}
	})

	t.Run("reclaims a lapsed hold in the same write", func(t *testing.T) {
		ledger := newLedgerWithItem(t, "item-1")
		mustReserve(t, ledger, "item-1", "tok-a", now.Add(ttl), now)

		later := now.Add(ttl) // boundary: expiry instant counts as lapsed
		matched, err := ledger.ReserveItem(context.Background(), "item-1", "tok-b", later.Add(ttl), later)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !matched {
			t.Fatalf("expected the lapsed hold to be reclaimable")
		}

		item, _ := ledger.GetItem(context.Background(), "item-1")
		if item.ReservedToken != "tok-b" {
			t.Fatalf("expected the new holder, got %q", item.ReservedToken)
		}
	})

	t.Run("never matches a sold item", func(t *testing.T) {
		ledger := newLedgerWithItem(t, "item-1")
		mustReserve(t, ledger, "item-1", "tok-a", now.Add(ttl), now)
		if matched, err := ledger.MarkSold(context.Background(), "item-1", "tok-a", now); err != nil || !matched {
			t.Fatalf("setup: MarkSold matched=%v err=%v", matched, err)
		}

		matched, err := ledger.ReserveItem(context.Background(), "item-1", "tok-b", now.Add(24*time.Hour), now.Add(time.Hour))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if matched {
			t.Fatalf("sold items must never be reservable again")
		}
	})

	t.Run("unknown item", func(t *testing.T) {
		ledger := NewLedger()

		_, err := ledger.ReserveItem(context.Background(), "ghost", "tok", now.Add(ttl), now)
		if !errors.Is(err, domain.ErrItemNotFound) {
			t.Fatalf("expected ErrItemNotFound, got %v", err)
		}
	})
}

func TestLedger_MarkSold(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ttl := 120 * time.Second

	t.Run("finalizes inside the window with the holder token", func(t *testing.T) {
		ledger := newLedgerWithItem(t, "item-1")
		mustReserve(t, ledger, "item-1", "tok-a", now.Add(ttl), now)

		matched, err := ledger.MarkSold(context.Background(), "item-1", "tok-a", now.Add(30*time.Second))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !matched {
			t.Fatalf("expected the finalize to match")
		}
		item, _ := ledger.GetItem(context.Background(), "item-1")
		if !item.Sold {
			t.Fatalf("expected the item sold")
		}
	})

	t.Run("rejects a token that is not the holder's", func(t *testing.T) {
		ledger := newLedgerWithItem(t, "item-1")
		mustReserve(t, ledger, "item-1", "tok-a", now.Add(ttl), now)

		matched, err := ledger.MarkSold(context.Background(), "item-1", "tok-b", now.Add(30*time.Second))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if matched {
			t.Fatalf("a stale token must not finalize")
		}
		item, _ := ledger.GetItem(context.Background(), "item-1")
		if item.Sold {
			t.Fatalf("item must stay unsold after a rejected finalize")
		}
	})

	t.Run("rejects once the window lapsed", func(t *testing.T) {
		ledger := newLedgerWithItem(t, "item-1")
		mustReserve(t, ledger, "item-1", "tok-a", now.Add(ttl), now)

		matched, err := ledger.MarkSold(context.Background(), "item-1", "tok-a", now.Add(ttl))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if matched {
			t.Fatalf("finalize at or past the deadline must not match")
		}
	})

	t.Run("tokenless finalize rides any active hold", func(t *testing.T) {
		ledger := newLedgerWithItem(t, "item-1")
		mustReserve(t, ledger, "item-1", "tok-a", now.Add(ttl), now)

		matched, err := ledger.MarkSold(context.Background(), "item-1", "", now.Add(30*time.Second))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !matched {
			t.Fatalf("expected the tokenless finalize to match the active hold")
		}
	})

	t.Run("rejects without any hold", func(t *testing.T) {
		ledger := newLedgerWithItem(t, "item-1")

		matched, err := ledger.MarkSold(context.Background(), "item-1", "", now)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if matched {
			t.Fatalf("finalize with no hold must not match")
		}
	})

	t.Run("second finalize does not match", func(t *testing.T) {
		ledger := newLedgerWithItem(t, "item-1")
		mustReserve(t, ledger, "item-1", "tok-a", now.Add(ttl), now)
		if matched, err := ledger.MarkSold(context.Background(), "item-1", "tok-a", now); err != nil || !matched {
			t.Fatalf("setup: MarkSold matched=%v err=%v", matched, err)
		}

		matched, err := ledger.MarkSold(context.Background(), "item-1", "tok-a", now.Add(time.Second))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if matched {
			t.Fatalf("sold is final, the retry must report zero rows")
		}
	})
}

// Many goroutines race to reserve the same free item; the conditional write
// must admit exactly one winner and leave its hold intact.
func TestLedger_ConcurrentReserves(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	until := now.Add(120 * time.Second)

	const goroutines = 64
	ledger := newLedgerWithItem(t, "grail")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins []string
	)
	start := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		token := fmt.Sprintf("tok-%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			matched, err := ledger.ReserveItem(context.Background(), "grail", token, until, now)
			if err != nil {
				t.Errorf("reserve %s: %v", token, err)
				return
			}
			if matched {
				mu.Lock()
				wins = append(wins, token)
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	if len(wins) != 1 {
		t.Fatalf("expected exactly one winner, got %d: %v", len(wins), wins)
	}
	item, err := ledger.GetItem(context.Background(), "grail")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if item.ReservedToken != wins[0] {
		t.Fatalf("ledger records token %q but winner was %q", item.ReservedToken, wins[0])
	}
	if item.ReservedUntil == nil || !item.ReservedUntil.Equal(until) {
		t.Fatalf("expected reserved_until %v, got %v", until, item.ReservedUntil)
	}
}

// Concurrent finalize attempts with distinct tokens: at most the holder's
// token lands, and sold stays monotonic.
func TestLedger_ConcurrentFinalizes(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger := newLedgerWithItem(t, "grail")
	mustReserve(t, ledger, "grail", "holder", now.Add(120*time.Second), now)

	const goroutines = 32
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	start := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		token := "holder"
		if i%2 == 1 {
			token = fmt.Sprintf("intruder-%d", i)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			matched, err := ledger.MarkSold(context.Background(), "grail", token, now.Add(time.Second))
			if err != nil {
				t.Errorf("finalize %s: %v", token, err)
				return
			}
			if matched {
				if token != "holder" {
					t.Errorf("intruder token %s finalized the sale", token)
				}
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one matching finalize, got %d", wins)
	}
	item, _ := ledger.GetItem(context.Background(), "grail")
	if !item.Sold {
		t.Fatalf("expected the item sold")
	}
}

// Random interleavings of reserve, finalize and clock advance must never
// produce two simultaneous holders or un-sell a sold item.
func TestProperty_LedgerTransitions(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		ttl := 120 * time.Second

		ledger := NewLedger()
		if err := ledger.CreateItem(context.Background(), domain.Item{ID: "x", Title: "piece", PriceCents: 1000}); err != nil {
			t.Fatalf("create: %v", err)
		}

		now := base
		holder := "" // token of the active hold, "" when none
		sold := false

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0: // reserve
				token := fmt.Sprintf("tok-%d", i)
				matched, err := ledger.ReserveItem(context.Background(), "x", token, now.Add(ttl), now)
				if err != nil {
					t.Fatalf("reserve: %v", err)
				}
				wantMatch := !sold && holder == ""
				if matched != wantMatch {
					t.Fatalf("step %d: reserve matched=%v, model says %v (sold=%v holder=%q)", i, matched, wantMatch, sold, holder)
				}
				if matched {
					holder = token
				}
			case 1: // finalize with the model's holder token
				matched, err := ledger.MarkSold(context.Background(), "x", holder, now)
				if err != nil {
					t.Fatalf("finalize: %v", err)
				}
				wantMatch := !sold && holder != ""
				if matched != wantMatch {
					t.Fatalf("step %d: finalize matched=%v, model says %v", i, matched, wantMatch)
				}
				if matched {
					sold = true
				}
			case 2: // let time pass, possibly past the hold
				now = now.Add(time.Duration(rapid.IntRange(1, 200).Draw(t, "secs")) * time.Second)
			}
			// lapse the model's hold the same way the ledger does
			if holder != "" && !sold {
				item, err := ledger.GetItem(context.Background(), "x")
				if err != nil {
					t.Fatalf("get: %v", err)
				}
				if !item.HasActiveHold(now) {
					holder = ""
				}
			}
			if sold {
				item, _ := ledger.GetItem(context.Background(), "x")
				if !item.Sold {
					t.Fatalf("step %d: sold regressed", i)
				}
			}
		}
	})
}

func newLedgerWithItem(t *testing.T, id string) *Ledger {
	t.Helper()
	ledger := NewLedger()
	err := ledger.CreateItem(context.Background(), domain.Item{
		ID:         id,
		Title:      "Archive piece",
		PriceCents: 120000,
		CreatedAt:  time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	return ledger
}

func mustReserve(t *testing.T, ledger *Ledger, itemID, token string, until, now time.Time) {
	t.Helper()
	matched, err := ledger.ReserveItem(context.Background(), itemID, token, until, now)
	if err != nil || !matched {
		t.Fatalf("reserve %s: matched=%v err=%v", itemID, matched, err)
	}
}
