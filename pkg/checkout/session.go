package checkout

import (
	"context"
	"time"
)

// SessionState is the advisory state a checkout page acts on. The three
// non-ok states are terminal: the UI redirects and the buyer must reserve
// again explicitly, which produces a fresh server-side race.
type SessionState string

const (
	StateOK      SessionState = "ok"
	StateExpired SessionState = "expired"
	StateMissing SessionState = "missing"
	StateSold    SessionState = "sold"
)

func (s SessionState) Terminal() bool {
	return s != StateOK
}

// Classify derives the entry state for a checkout page load from the item's
// public status and the session's own hold, if any.
func Classify(st Status, hold *Hold, now time.Time) SessionState {
	if st.State == ItemSold {
		return StateSold
	}
	if hold == nil {
		return StateMissing
	}
	if !hold.ExpiresAt.After(now) {
		return StateExpired
	}
	return StateOK
}

// SessionOptions tune the countdown and poll cadence; the defaults serve the
// normal UI. Shrink them in tests.
type SessionOptions struct {
	// PollInterval is how often the item's status is re-read while ok.
	PollInterval time.Duration
	// Tick is how often the local countdown is checked against the hold.
	Tick time.Duration
	// OnChange, when set, observes every state transition.
	OnChange func(SessionState)
}

const (
	defaultPollInterval = 4 * time.Second
	defaultTick         = time.Second
)

// Session tracks one buyer's hold through checkout. It holds no authority:
// it only mirrors the ledger so the UI can redirect promptly when the hold
// lapses or the item is lost.
type Session struct {
	client *Client
	hold   Hold
	state  SessionState
	opts   SessionOptions
}

// NewSession starts from a hold the caller already won via Client.Reserve.
func NewSession(client *Client, hold Hold, opts SessionOptions) *Session {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Tick <= 0 {
		opts.Tick = defaultTick
	}
	return &Session{
		client: client,
		hold:   hold,
		state:  StateOK,
		opts:   opts,
	}
}

func (s *Session) State() SessionState {
	return s.state
}

// Remaining reports the time left on the hold at now, floored at zero.
func (s *Session) Remaining(now time.Time) time.Duration {
	d := s.hold.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Watch runs the countdown and the status poll until the session leaves ok or
// ctx ends. It returns the state the session finished in; on cancellation
// that is whatever state was current, alongside ctx.Err().
//
// The countdown alone moves the session to expired with no server push; the
// poll catches a sale landing while the hold is active, and treats an item
// that reads available again as a lapsed hold.
func (s *Session) Watch(ctx context.Context) (SessionState, error) {
	if !s.hold.ExpiresAt.After(time.Now()) {
		s.transition(StateExpired)
		return s.state, nil
	}

	tick := time.NewTicker(s.opts.Tick)
	defer tick.Stop()
	poll := time.NewTicker(s.opts.PollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return s.state, ctx.Err()

		case now := <-tick.C:
			if !s.hold.ExpiresAt.After(now) {
				s.transition(StateExpired)
				return s.state, nil
			}

		case <-poll.C:
			st, err := s.client.Status(ctx, s.hold.ItemID)
			if err != nil {
				// Transient poll failures never end the session; the
				// countdown still bounds it.
				continue
			}
			switch st.State {
			case ItemSold:
				s.transition(StateSold)
				return s.state, nil
			case ItemAvailable:
				s.transition(StateExpired)
				return s.state, nil
			}
		}
	}
}

func (s *Session) transition(next SessionState) {
	if s.state == next {
		return
	}
	s.state = next
	if s.opts.OnChange != nil {
		s.opts.OnChange(next)
	}
}
