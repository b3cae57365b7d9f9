package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"classchat/internal/chat"
	"classchat/internal/compose"
	"classchat/internal/events"
	"classchat/internal/metrics"
	"classchat/internal/models"
	"classchat/internal/presence"
	"classchat/internal/typing"
	"classchat/internal/view"
	"classchat/internal/ws"

	"golang.org/x/sync/errgroup"
)

var (
	ErrUnknownMessage = errors.New("no message with that timestamp")
	ErrClosed         = errors.New("session closed")
)

// Sender delivers one outbound action.
type Sender interface {
	Send(a models.Action) error
}

// Runner owns the connection lifecycle, typically a *ws.Client.
type Runner interface {
	Run(ctx context.Context) error
}

// HistoryStore receives canonical messages as they settle.
type HistoryStore interface {
	UpsertMessage(groupID string, message models.Message) error
}

type Config struct {
	Identity       models.Identity
	GroupID        string
	RequireAvatar  bool
	TypingDebounce time.Duration
	TypingTTL      time.Duration
	MaxMessages    int

	// Reconnect only affects the connection state shown after a drop.
	Reconnect bool

	History  HistoryStore
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	OnChange func(view.View)

	Now       func() time.Time
	AfterFunc typing.AfterFunc
}

// Session holds the whole client state for one joined group. It implements
// ws.Handler; inbound frames and local intents are serialized by one mutex.
type Session struct {
	cfg    Config
	logger *slog.Logger

	// notifyMu orders OnChange calls. It is taken before mu, never after.
	notifyMu sync.Mutex

	mu       sync.Mutex
	composer *compose.Composer
	roster   *presence.Roster
	store    *chat.Store
	remote   *typing.Remote
	local    *typing.Local
	reads    *compose.ReadTracker
	draft    compose.Draft
	conn     Sender
	state    view.ConnState
	opened   bool
	closed   bool
}

var _ ws.Handler = (*Session)(nil)

func New(cfg Config) (*Session, error) {
	composer, err := compose.New(cfg.Identity, cfg.GroupID, cfg.RequireAvatar)
	if err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Session{
		cfg:      cfg,
		logger:   cfg.Logger.With("group", cfg.GroupID, "user", cfg.Identity.ID),
		composer: composer,
		roster:   presence.New(),
		remote:   typing.NewRemote(cfg.Identity.ID, cfg.TypingTTL),
		reads:    compose.NewReadTracker(cfg.Identity.ID),
		state:    view.Connecting,
	}

	s.store = chat.New(chat.Config{
		GroupID:        cfg.GroupID,
		MaxRecords:     cfg.MaxMessages,
		RecordCallback: s.persist,
	})

	s.local = typing.NewLocal(cfg.TypingDebounce,
		func() { s.sendTyping(true) },
		func() { s.sendTyping(false) },
	)
	if cfg.AfterFunc != nil {
		s.local.UseAfterFunc(cfg.AfterFunc)
	}

	return s, nil
}

// Run drives conn and the typing expiry sweep until ctx is cancelled or
// conn gives up.
func (s *Session) Run(ctx context.Context, conn Runner) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return conn.Run(ctx)
	})
	if s.cfg.TypingTTL > 0 {
		g.Go(func() error {
			s.sweepTypists(ctx)
			return nil
		})
	}
	return g.Wait()
}

func (s *Session) sweepTypists(ctx context.Context) {
	interval := s.cfg.TypingTTL / 2
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ExpireTypists()
		}
	}
}

// ExpireTypists drops remote typists whose start signal went stale.
func (s *Session) ExpireTypists() {
	s.mu.Lock()
	changed := s.remote.Expire(s.cfg.Now())
	s.mu.Unlock()
	if changed {
		s.changed()
	}
}

// Close cancels the local typing timer. The session accepts no further
// intents afterwards.
func (s *Session) Close() {
	s.local.Close()
	s.mu.Lock()
	s.closed = true
	s.conn = nil
	s.state = view.Disconnected
	s.mu.Unlock()
	s.changed()
}

func (s *Session) OnOpen(c *ws.Connection) {
	s.Open(c)
}

// Open attaches a live sender and joins the group on it. Every open after
// the first marks the roster stale until a fresh snapshot arrives.
func (s *Session) Open(conn Sender) {
	s.mu.Lock()
	s.conn = conn
	s.state = view.Connected
	if s.opened {
		s.roster.MarkStale()
		s.logger.Info("Rejoined group")
	} else {
		s.logger.Info("Joined group")
	}
	s.opened = true
	s.send(s.composer.Join())
	s.send(s.composer.RequestPresence())
	s.mu.Unlock()
	s.changed()
}

func (s *Session) OnClose(err error) {
	s.local.Close()
	s.mu.Lock()
	s.conn = nil
	switch {
	case s.closed:
		s.state = view.Disconnected
	case err != nil && s.cfg.Reconnect:
		s.state = view.Reconnecting
	default:
		s.state = view.Disconnected
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("Connection closed", "error", err)
	}
	s.changed()
}

func (s *Session) OnFrame(raw []byte) {
	ev, err := events.Normalize(raw)
	if err != nil {
		s.cfg.Metrics.FrameDropped()
		s.logger.Debug("Dropped frame", "error", err)
		return
	}
	s.cfg.Metrics.EventReceived(string(ev.Type()))

	s.mu.Lock()
	s.apply(ev)
	s.mu.Unlock()
	s.changed()
}

// apply folds one event into state. Caller holds s.mu.
func (s *Session) apply(ev events.Event) {
	self := s.cfg.Identity.ID

	switch e := ev.(type) {
	case events.PresenceState:
		s.roster.ApplySnapshot(e.Users)
	case events.UserJoined:
		s.roster.Join(e.User)
	case events.UserLeft:
		s.roster.Leave(e.UserID)
		s.remote.Stop(e.UserID)
	case events.GroupMessage:
		msg := models.Message{
			SenderID:  e.FromUserID,
			Text:      e.Text,
			Timestamp: e.Timestamp,
			ReplyTo:   e.ReplyTo,
		}
		s.store.Receive(msg, self)
		if s.reads.ShouldMark(msg) {
			s.send(s.composer.MarkRead(msg.Timestamp))
		}
	case events.StartTyping:
		s.remote.Start(e.UserID, s.cfg.Now())
	case events.StopTyping:
		s.remote.Stop(e.UserID)
	case events.MessageReactionUpdate:
		if !e.HasReactions {
			return
		}
		if !s.store.ApplyReactions(e.MessageTimestamp, e.Reactions) {
			s.logger.Debug("Reaction for unknown message", "timestamp", e.MessageTimestamp)
		}
	case events.MessagePinned:
		s.store.Pin(e.Pinned)
	case events.MessageUnpinned:
		s.store.Unpin()
	case events.ReadReceiptUpdate:
		if !e.HasSeenBy {
			return
		}
		if !s.store.ApplySeenBy(e.MessageTimestamp, e.SeenBy) {
			s.logger.Debug("Receipt for unknown message", "timestamp", e.MessageTimestamp)
		}
	}
}

// send queues an action on the live connection. Caller holds s.mu.
func (s *Session) send(a models.Action) error {
	if s.conn == nil {
		s.cfg.Metrics.SendFailed()
		return ws.ErrNotConnected
	}
	if err := s.conn.Send(a); err != nil {
		s.cfg.Metrics.SendFailed()
		s.logger.Warn("Failed to send action", "action", a.Action, "error", err)
		return fmt.Errorf("send %s: %w", a.Action, err)
	}
	s.cfg.Metrics.ActionSent(string(a.Action))
	return nil
}

func (s *Session) sendTyping(start bool) {
	s.mu.Lock()
	if s.conn != nil {
		if start {
			s.send(s.composer.StartTyping())
		} else {
			s.send(s.composer.StopTyping())
		}
	}
	s.mu.Unlock()
}

func (s *Session) persist(groupID string, record models.Message) {
	if s.cfg.History == nil {
		return
	}
	if err := s.cfg.History.UpsertMessage(groupID, record); err != nil {
		s.logger.Warn("Failed to cache message", "timestamp", record.Timestamp, "error", err)
	}
}

// Send posts text to the group, as a reply when a reply target is set. The
// message shows up immediately as pending until the gateway echoes it.
func (s *Session) Send(text string) error {
	s.mu.Lock()
	action, err := s.composer.Send(text, &s.draft)
	if err == nil {
		err = s.requireOpen()
	}
	if err == nil {
		err = s.send(action)
	}
	if err == nil {
		s.store.AddPending(s.cfg.Identity.ID, action.Text, action.ReplyTo)
		s.draft.Cancel()
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.local.Sent()
	s.changed()
	return nil
}

// Keystroke feeds the local typing debouncer.
func (s *Session) Keystroke() {
	s.mu.Lock()
	open := s.conn != nil && !s.closed
	s.mu.Unlock()
	if open {
		s.local.Keystroke()
	}
}

func (s *Session) React(ts models.Timestamp, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	action, err := s.composer.React(ts, symbol)
	if err != nil {
		return err
	}
	if err := s.requireOpen(); err != nil {
		return err
	}
	return s.send(action)
}

func (s *Session) Pin(ts models.Timestamp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.store.Find(ts)
	if !ok {
		return ErrUnknownMessage
	}
	action, err := s.composer.Pin(msg)
	if err != nil {
		return err
	}
	if err := s.requireOpen(); err != nil {
		return err
	}
	return s.send(action)
}

func (s *Session) Unpin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}
	return s.send(s.composer.Unpin())
}

// SetReply makes the next Send a reply to ts.
func (s *Session) SetReply(ts models.Timestamp) error {
	s.mu.Lock()
	err := s.draft.Set(ts)
	if err == nil {
		if _, ok := s.store.Find(ts); !ok {
			s.draft.Cancel()
			err = ErrUnknownMessage
		}
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.changed()
	return nil
}

func (s *Session) CancelReply() {
	s.mu.Lock()
	s.draft.Cancel()
	s.mu.Unlock()
	s.changed()
}

func (s *Session) requireOpen() error {
	if s.closed {
		return ErrClosed
	}
	if s.conn == nil {
		return ws.ErrNotConnected
	}
	return nil
}

// View projects the current state.
func (s *Session) View() view.View {
	return view.Project(s.snapshot())
}

func (s *Session) snapshot() view.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := view.State{
		Self:        s.cfg.Identity,
		Roster:      s.roster.Entries(),
		RosterStale: s.roster.Stale(),
		Messages:    s.store.Messages(),
		Typists:     s.remote.Active(),
		Connection:  s.state,
	}
	if p, ok := s.store.Pinned(); ok {
		st.Pinned = &p
	}
	if ts, ok := s.draft.Target(); ok {
		st.Draft = ts
	}
	return st
}

// changed hands the current view to OnChange. Callers may race, so the
// snapshot and the callback run under notifyMu: every delivered view is at
// least as new as the one before it. Callers must not hold mu.
func (s *Session) changed() {
	if s.cfg.OnChange == nil {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.cfg.OnChange(s.View())
}
