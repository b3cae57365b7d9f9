package ws

import (
	"classchat/internal/models"
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type mockWS struct {
	readCh      chan []byte
	writeCh     chan any
	closeCh     chan struct{}
	mu          sync.Mutex
	closed      bool
	errToReturn error
	writeErr    error
}

func newMockWS() *mockWS {
	return &mockWS{
		readCh:  make(chan []byte, 10),
		writeCh: make(chan any, 10),
		closeCh: make(chan struct{}),
	}
}

func (m *mockWS) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.closeCh)
	return nil
}

func (m *mockWS) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockWS) WriteJSON(v any) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writeCh <- v
	return nil
}

func (m *mockWS) ReadMessage() (int, []byte, error) {
	if m.errToReturn != nil {
		return 0, nil, m.errToReturn
	}
	select {
	case msg, ok := <-m.readCh:
		if !ok {
			return 0, nil, errors.New("closed")
		}
		return 1, msg, nil
	case <-m.closeCh:
		return 0, nil, errors.New("connection closed")
	}
}

func (m *mockWS) Ping() error { return nil }

type recorder struct {
	opened chan *Connection
	frames chan string
	closed chan error
}

func newRecorder() *recorder {
	return &recorder{
		opened: make(chan *Connection, 4),
		frames: make(chan string, 10),
		closed: make(chan error, 4),
	}
}

func (r *recorder) OnOpen(c *Connection) { r.opened <- c }
func (r *recorder) OnFrame(raw []byte)   { r.frames <- string(raw) }
func (r *recorder) OnClose(err error)    { r.closed <- err }

func TestConnection_Lifecycle(t *testing.T) {
	ws := newMockWS()
	rec := newRecorder()

	conn := NewConnection(ws)
	if conn == nil {
		t.Fatal("NewConnection returned nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error)
	go func() {
		done <- conn.Handle(ctx, rec)
	}()

	select {
	case got := <-rec.opened:
		if got != conn {
			t.Error("OnOpen received a different connection")
		}
	case <-time.After(time.Second):
		t.Fatal("OnOpen not called")
	}

	// 1. Frames from the gateway reach the handler in order
	ws.readCh <- []byte(`{"type":"userJoined"}`)
	ws.readCh <- []byte(`{"type":"userLeft"}`)

	for _, want := range []string{`{"type":"userJoined"}`, `{"type":"userLeft"}`} {
		select {
		case got := <-rec.frames:
			if got != want {
				t.Errorf("Expected frame %s, got %s", want, got)
			}
		case <-time.After(time.Second):
			t.Fatal("Handler did not receive frame")
		}
	}

	// 2. Outbound actions are written to the socket
	action := models.Action{Action: models.ActionSendGroupMessage, UserID: "alice", GroupID: "g", Text: "hi"}
	if err := conn.Send(action); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	select {
	case written := <-ws.writeCh:
		got, ok := written.(models.Action)
		if !ok {
			t.Fatalf("WS received wrong type: %T", written)
		}
		if got.Text != "hi" {
			t.Errorf("WS received wrong content: %v", got)
		}
	case <-time.After(time.Second):
		t.Error("WS did not receive action")
	}

	// 3. Stop
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Handle returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Handle did not return after cancel")
	}

	if err := <-rec.closed; err != nil {
		t.Errorf("OnClose received %v, want nil", err)
	}
	if !ws.isClosed() {
		t.Error("WS Close not called")
	}
	if err := conn.Send(action); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after close returned %v, want ErrClosed", err)
	}
}

func TestConnection_WSError(t *testing.T) {
	ws := newMockWS()
	rec := newRecorder()
	conn := NewConnection(ws)

	ws.errToReturn = errors.New("read error")

	done := make(chan error)
	go func() {
		done <- conn.Handle(context.Background(), rec)
	}()

	select {
	case err := <-done:
		if !errors.Is(err, ErrConnectionLost) {
			t.Errorf("Expected ErrConnectionLost, got %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Handle did not return on error")
	}

	if err := <-rec.closed; err == nil {
		t.Error("OnClose should receive the read error")
	}
	if !ws.isClosed() {
		t.Error("WS Close not called")
	}
}

func TestConnection_WriteError(t *testing.T) {
	ws := newMockWS()
	ws.writeErr = errors.New("broken pipe")
	conn := NewConnection(ws)

	if err := conn.Send(models.Action{Action: models.ActionJoinGroup}); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	err := conn.Handle(context.Background(), newRecorder())
	if !errors.Is(err, ErrConnectionLost) {
		t.Errorf("Expected ErrConnectionLost, got %v", err)
	}
}

func TestConnection_SendQueueFull(t *testing.T) {
	conn := NewConnection(newMockWS())

	for i := 0; i < sendQueueSize; i++ {
		if err := conn.Send(models.Action{Action: models.ActionStartTyping}); err != nil {
			t.Fatalf("Send %d returned error: %v", i, err)
		}
	}
	if err := conn.Send(models.Action{Action: models.ActionStartTyping}); !errors.Is(err, ErrSendQueueFull) {
		t.Errorf("Expected ErrSendQueueFull, got %v", err)
	}
}
