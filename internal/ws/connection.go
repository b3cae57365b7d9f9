package ws

import (
	"classchat/internal/models"
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrClosed         = errors.New("connection closed")
	ErrSendQueueFull  = errors.New("send queue full")
	ErrNotConnected   = errors.New("not connected")
	ErrConnectionLost = errors.New("connection lost")
)

const sendQueueSize = 64

type wsConnection interface {
	Close() error
	WriteJSON(v interface{}) error
	ReadMessage() (messageType int, p []byte, err error)
	Ping() error
}

// Handler receives connection events. All calls for one connection come
// from a single goroutine, frames in arrival order.
type Handler interface {
	OnOpen(c *Connection)
	OnFrame(raw []byte)
	OnClose(err error)
}

type Connection struct {
	ws           wsConnection
	pingInterval time.Duration
	outbound     chan models.Action
	fromServer   chan []byte
	errorCh      chan error
	done         chan struct{}
	closeOnce    sync.Once
}

func NewConnection(ws wsConnection) *Connection {
	return &Connection{
		ws:         ws,
		outbound:   make(chan models.Action, sendQueueSize),
		fromServer: make(chan []byte),
		errorCh:    make(chan error, 2),
		done:       make(chan struct{}),
	}
}

// Send queues an action for transmission. It never blocks; there is no
// acknowledgement from the gateway.
func (c *Connection) Send(a models.Action) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.outbound <- a:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrSendQueueFull
	}
}

// Done is closed once the connection stops.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Handle drives the connection until the socket fails or ctx is cancelled.
// A nil return means the caller asked to stop.
func (c *Connection) Handle(ctx context.Context, h Handler) error {
	h.OnOpen(c)
	err := c.handle(ctx, h)
	h.OnClose(err)
	return err
}

func (c *Connection) handle(ctx context.Context, h Handler) error {
	loopCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		c.closeOnce.Do(func() { close(c.done) })
		close(c.errorCh)
	}()

	var wg sync.WaitGroup
	wg.Go(func() {
		c.errorCh <- c.pumpMessages(loopCtx)
		cancel()
	})

	wg.Go(func() {
		c.errorCh <- c.mainLoop(loopCtx, h)
		cancel()
	})

	var err error
	select {
	case err = <-c.errorCh:
	case <-ctx.Done():
	}
	c.ws.Close()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func (c *Connection) pumpMessages(ctx context.Context) error {
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Join(ErrConnectionLost, err)
		}
		select {
		case c.fromServer <- raw:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Connection) mainLoop(ctx context.Context, h Handler) error {
	var ping <-chan time.Time
	if c.pingInterval > 0 {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case raw := <-c.fromServer:
			h.OnFrame(raw)
		case a := <-c.outbound:
			if err := c.ws.WriteJSON(a); err != nil {
				return errors.Join(ErrConnectionLost, err)
			}
		case <-ping:
			if err := c.ws.Ping(); err != nil {
				return errors.Join(ErrConnectionLost, err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}
