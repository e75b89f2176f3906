// Package participation lets a passenger join or leave a ride through the
// carpooling backend, optionally holding the seat price with the payment
// gateway until the ride settles.
package participation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/example/ride-search/internal/payments"
)

// Request identifies one passenger/ride pair.
type Request struct {
	RideID int64  `json:"rideId"`
	UserID string `json:"userId"`
}

// Client talks to the backend participation API.
type Client struct {
	endpoint string
	http     *http.Client
	holder   payments.SeatHolder
	logger   *slog.Logger

	mu    sync.Mutex
	holds map[string]string // rideID/userID -> hold id
}

func NewClient(endpoint string, holder payments.SeatHolder, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 5 * time.Second},
		holder:   holder,
		logger:   logger,
		holds:    make(map[string]string),
	}
}

// Join adds the user as a passenger. When a seat holder is configured the
// seat price is held first; a failed backend call releases the hold.
func (c *Client) Join(ctx context.Context, req Request, priceCents int64) error {
	var holdID string
	if c.holder != nil && priceCents > 0 {
		id, err := c.holder.HoldSeat(ctx, priceCents, "eur", req.UserID)
		if err != nil {
			return fmt.Errorf("participation: holding seat price: %w", err)
		}
		holdID = id
	}
	if err := c.post(ctx, http.MethodPost, req); err != nil {
		if holdID != "" {
			if rerr := c.holder.ReleaseSeat(ctx, holdID); rerr != nil {
				c.logger.Error("releasing seat hold after failed join", "ride_id", req.RideID, "error", rerr)
			}
		}
		return err
	}
	if holdID != "" {
		c.mu.Lock()
		c.holds[holdKey(req)] = holdID
		c.mu.Unlock()
	}
	return nil
}

// Leave removes the user from the ride and releases any seat hold.
func (c *Client) Leave(ctx context.Context, req Request) error {
	if err := c.post(ctx, http.MethodDelete, req); err != nil {
		return err
	}
	c.mu.Lock()
	holdID, ok := c.holds[holdKey(req)]
	delete(c.holds, holdKey(req))
	c.mu.Unlock()
	if ok && c.holder != nil {
		if err := c.holder.ReleaseSeat(ctx, holdID); err != nil {
			c.logger.Error("releasing seat hold", "ride_id", req.RideID, "error", err)
		}
	}
	return nil
}

// Settle captures the seat hold once the ride has taken place. Without
// a tracked hold there is nothing to capture and Settle is a no-op.
func (c *Client) Settle(ctx context.Context, req Request) error {
	c.mu.Lock()
	holdID, ok := c.holds[holdKey(req)]
	delete(c.holds, holdKey(req))
	c.mu.Unlock()
	if !ok || c.holder == nil {
		return nil
	}
	if err := c.holder.CaptureSeat(ctx, holdID); err != nil {
		return fmt.Errorf("participation: capturing seat price: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, method string, body Request) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("participation: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("participation: backend returned http %d", resp.StatusCode)
	}
	return nil
}

func holdKey(req Request) string {
	return fmt.Sprintf("%d/%s", req.RideID, req.UserID)
}
