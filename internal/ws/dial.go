package ws

import (
	"classchat/internal/models"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// IdentityForm selects how the identity is carried in the connect URI.
type IdentityForm string

const (
	// IdentityJSON sends ?user={"id":..,"name":..,"avatar":..}.
	IdentityJSON IdentityForm = "json"
	// IdentityPlain sends ?userId=<id>.
	IdentityPlain IdentityForm = "plain"
)

const (
	DefaultWriteWait    = 5 * time.Second
	DefaultPongWait     = 60 * time.Second
	DefaultPingInterval = 30 * time.Second
	DefaultReadLimit    = 64 << 10
)

type DialConfig struct {
	URL          string
	Form         IdentityForm
	WriteWait    time.Duration
	PongWait     time.Duration
	PingInterval time.Duration
	ReadLimit    int64
	Header       http.Header
}

func (c DialConfig) withDefaults() DialConfig {
	if c.Form == "" {
		c.Form = IdentityJSON
	}
	if c.WriteWait <= 0 {
		c.WriteWait = DefaultWriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = DefaultPongWait
	}
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = DefaultReadLimit
	}
	return c
}

// ConnectURL adds the identity query to the gateway base URL.
func ConnectURL(base string, form IdentityForm, id models.Identity) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse gateway url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("gateway url must be ws:// or wss://, got %q", base)
	}

	q := u.Query()
	switch form {
	case IdentityPlain:
		q.Set("userId", id.ID)
	case IdentityJSON, "":
		payload, err := json.Marshal(id)
		if err != nil {
			return "", fmt.Errorf("encode identity: %w", err)
		}
		q.Set("user", string(payload))
	default:
		return "", fmt.Errorf("unknown identity form %q", form)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Dial opens the gateway socket for the given identity.
func Dial(ctx context.Context, cfg DialConfig, id models.Identity) (*Connection, error) {
	cfg = cfg.withDefaults()

	target, err := ConnectURL(cfg.URL, cfg.Form, id)
	if err != nil {
		return nil, err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, cfg.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial gateway: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial gateway: %w", err)
	}

	conn.SetReadLimit(cfg.ReadLimit)
	conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	c := NewConnection(&gorillaConn{
		conn:      conn,
		writeWait: cfg.WriteWait,
		pongWait:  cfg.PongWait,
	})
	c.pingInterval = cfg.PingInterval
	return c, nil
}

// gorillaConn applies deadlines around a *websocket.Conn.
type gorillaConn struct {
	conn      *websocket.Conn
	writeWait time.Duration
	pongWait  time.Duration
}

func (g *gorillaConn) Close() error {
	return g.conn.Close()
}

func (g *gorillaConn) WriteJSON(v interface{}) error {
	g.conn.SetWriteDeadline(time.Now().Add(g.writeWait))
	return g.conn.WriteJSON(v)
}

func (g *gorillaConn) ReadMessage() (int, []byte, error) {
	mt, p, err := g.conn.ReadMessage()
	if err == nil {
		g.conn.SetReadDeadline(time.Now().Add(g.pongWait))
	}
	return mt, p, err
}

func (g *gorillaConn) Ping() error {
	return g.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(g.writeWait))
}

// IsNormalClose reports whether err is a clean close from the gateway.
func IsNormalClose(err error) bool {
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway
}
