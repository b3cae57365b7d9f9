package ws

import (
	"classchat/internal/metrics"
	"classchat/internal/models"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultMinBackoff = 500 * time.Millisecond
	DefaultMaxBackoff = 30 * time.Second
)

// DialFunc opens one connection.
type DialFunc func(ctx context.Context) (*Connection, error)

// Backoff is a capped exponential delay: Min, 2*Min, 4*Min, ... up to Max.
type Backoff struct {
	Min time.Duration
	Max time.Duration
}

func (b Backoff) Delay(attempt int) time.Duration {
	minDelay, maxDelay := b.Min, b.Max
	if minDelay <= 0 {
		minDelay = DefaultMinBackoff
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		return maxDelay
	}
	delay := minDelay * time.Duration(1<<uint(attempt))
	if delay > maxDelay || delay <= 0 {
		delay = maxDelay
	}
	return delay
}

type ClientConfig struct {
	Dial      DialFunc
	Handler   Handler
	Reconnect bool
	Backoff   Backoff
	Logger    *slog.Logger
	Metrics   *metrics.Metrics

	// OnReconnecting is called before each wait between attempts.
	OnReconnecting func(attempt int, delay time.Duration)
}

// Client owns the connection lifecycle for one session. Without Reconnect a
// dropped socket ends Run.
type Client struct {
	cfg ClientConfig

	mu      sync.Mutex
	current *Connection
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Dial == nil {
		return nil, errors.New("dial function is required")
	}
	if cfg.Handler == nil {
		return nil, errors.New("handler is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{cfg: cfg}, nil
}

// NewGatewayClient dials cfg.URL with the identity on every attempt.
func NewGatewayClient(dial DialConfig, id models.Identity, cfg ClientConfig) (*Client, error) {
	cfg.Dial = func(ctx context.Context) (*Connection, error) {
		return Dial(ctx, dial, id)
	}
	return NewClient(cfg)
}

// Send forwards to the live connection.
func (c *Client) Send(a models.Action) error {
	c.mu.Lock()
	conn := c.current
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.Send(a)
}

// Run connects and serves until ctx is cancelled or, without reconnect, the
// first connection ends.
func (c *Client) Run(ctx context.Context) error {
	logger := c.cfg.Logger
	attempt := 0

	for {
		conn, err := c.cfg.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if !c.cfg.Reconnect {
				return fmt.Errorf("connect: %w", err)
			}
			logger.Warn("Dial failed", "error", err, "attempt", attempt)
		} else {
			attempt = 0
			c.setCurrent(conn)
			c.cfg.Metrics.SetConnected(true)
			err = conn.Handle(ctx, c.cfg.Handler)
			c.setCurrent(nil)
			c.cfg.Metrics.SetConnected(false)

			if ctx.Err() != nil {
				return nil
			}
			if err == nil {
				err = ErrConnectionLost
			}
			if !c.cfg.Reconnect {
				logger.Warn("Connection closed", "error", err)
				return err
			}
			logger.Warn("Connection lost, reconnecting", "error", err)
		}

		delay := c.cfg.Backoff.Delay(attempt)
		attempt++
		c.cfg.Metrics.Reconnect()
		if c.cfg.OnReconnecting != nil {
			c.cfg.OnReconnecting(attempt, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (c *Client) setCurrent(conn *Connection) {
	c.mu.Lock()
	c.current = conn
	c.mu.Unlock()
}
