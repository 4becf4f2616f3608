// Package checkout is the client-side companion to the reservation API: a
// thin HTTP client for the reserve/status/finalize operations and a Session
// state machine that tracks a won hold through its countdown. Everything here
// is advisory; the server's conditional transition stays the only authority
// on whether a checkout may proceed.
package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, hc *http.Client) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: baseURL,
		http:    hc,
	}
}

// Hold is a won, time-boxed claim on an item.
type Hold struct {
	ItemID    string
	Token     string
	ExpiresAt time.Time
}

// ItemState is the server-derived tri-state of an item.
type ItemState string

const (
	ItemAvailable ItemState = "available"
	ItemReserved  ItemState = "reserved"
	ItemSold      ItemState = "sold"
)

type Status struct {
	State         ItemState
	ReservedUntil *time.Time
}

type reserveReq struct {
	ItemID string `json:"item_id"`
}

type reserveResp struct {
	OK        bool      `json:"ok"`
	ExpiresAt time.Time `json:"expires_at"`
	HoldToken string    `json:"hold_token"`
	Error     string    `json:"error,omitempty"`
}

type statusResp struct {
	Status        string     `json:"status"`
	ReservedUntil *time.Time `json:"reserved_until"`
}

type finalizeReq struct {
	ItemID    string `json:"item_id"`
	HoldToken string `json:"hold_token,omitempty"`
}

// Reserve attempts to win a hold on the item. Losing the race returns
// ErrConflict; the buyer may simply try again later.
func (c *Client) Reserve(ctx context.Context, itemID string) (Hold, error) {
	if itemID == "" {
		return Hold{}, fmt.Errorf("itemID required")
	}

	var out reserveResp
	code, raw, err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/reserve", reserveReq{ItemID: itemID}, &out)
	if err != nil {
		return Hold{}, err
	}

	switch code {
	case http.StatusOK:
		return Hold{ItemID: itemID, Token: out.HoldToken, ExpiresAt: out.ExpiresAt}, nil
	case http.StatusConflict:
		return Hold{}, ErrConflict
	case http.StatusNotFound:
		return Hold{}, ErrNotFound
	default:
		return Hold{}, &UnexpectedStatusError{Method: http.MethodPost, Path: "/reserve", Code: code, Body: raw}
	}
}

// Status reads the item's public tri-state. Safe to poll.
func (c *Client) Status(ctx context.Context, itemID string) (Status, error) {
	if itemID == "" {
		return Status{}, fmt.Errorf("itemID required")
	}

	path := c.baseURL + "/status/" + itemID
	var out statusResp
	code, raw, err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	if err != nil {
		return Status{}, err
	}

	switch code {
	case http.StatusOK:
		return Status{State: ItemState(out.Status), ReservedUntil: out.ReservedUntil}, nil
	case http.StatusNotFound:
		return Status{}, ErrNotFound
	default:
		return Status{}, &UnexpectedStatusError{Method: http.MethodGet, Path: "/status", Code: code, Body: raw}
	}
}

// FinalizeSale converts the hold into a permanent sale after payment.
func (c *Client) FinalizeSale(ctx context.Context, hold Hold) error {
	if hold.ItemID == "" {
		return fmt.Errorf("hold.ItemID required")
	}

	var out struct {
		OK    bool   `json:"ok"`
		Error string `json:"error,omitempty"`
	}
	code, raw, err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/finalize-sale", finalizeReq{
		ItemID:    hold.ItemID,
		HoldToken: hold.Token,
	}, &out)
	if err != nil {
		return err
	}

	switch code {
	case http.StatusOK:
		return nil
	case http.StatusConflict:
		if out.Error == "already_sold" {
			return ErrAlreadySold
		}
		return ErrHoldExpired
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return &UnexpectedStatusError{Method: http.MethodPost, Path: "/finalize-sale", Code: code, Body: raw}
	}
}

func (c *Client) doJSON(ctx context.Context, method, url string, in, out any) (int, string, error) {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return 0, "", err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, "", err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, "", err
	}
	if out != nil && len(raw) > 0 {
		// Tolerate non-JSON bodies on unexpected statuses; the caller gets
		// the raw text via UnexpectedStatusError.
		_ = json.Unmarshal(raw, out)
	}
	return resp.StatusCode, string(raw), nil
}
