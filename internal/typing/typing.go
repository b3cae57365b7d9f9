package typing

import (
	"fmt"
	"sync"
	"time"
)

const DefaultDebounce = 1000 * time.Millisecond

// Remote is the ordered set of peers currently typing.
type Remote struct {
	localID string
	ttl     time.Duration
	order   []string
	expires map[string]time.Time
}

// NewRemote creates a typist set that never contains localID. A positive ttl
// drops entries that were not refreshed by a start event in time; zero keeps
// them until an explicit stop.
func NewRemote(localID string, ttl time.Duration) *Remote {
	return &Remote{
		localID: localID,
		ttl:     ttl,
		expires: make(map[string]time.Time),
	}
}

func (r *Remote) Start(userID string, now time.Time) {
	if userID == "" || userID == r.localID {
		return
	}
	if _, ok := r.expires[userID]; !ok {
		r.order = append(r.order, userID)
	}
	r.expires[userID] = now.Add(r.ttl)
}

func (r *Remote) Stop(userID string) {
	if _, ok := r.expires[userID]; !ok {
		return
	}
	delete(r.expires, userID)
	r.order = remove(r.order, userID)
}

// Expire removes entries whose ttl elapsed and reports whether anything
// changed.
func (r *Remote) Expire(now time.Time) bool {
	if r.ttl <= 0 {
		return false
	}
	changed := false
	for _, id := range append([]string(nil), r.order...) {
		if !now.Before(r.expires[id]) {
			r.Stop(id)
			changed = true
		}
	}
	return changed
}

// Active returns current typists in arrival order.
func (r *Remote) Active() []string {
	return append([]string(nil), r.order...)
}

func remove(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// Indicator renders the typing line for the given display names.
func Indicator(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("%s is typing...", names[0])
	case 2:
		return fmt.Sprintf("%s and %s are typing...", names[0], names[1])
	default:
		return "Several people are typing..."
	}
}

// Timer is the part of *time.Timer the debouncer needs.
type Timer interface {
	Stop() bool
}

type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Local turns keystrokes into start/stop typing signals: start on the first
// keystroke after idle, stop after Delay of inactivity or immediately on send.
type Local struct {
	Delay time.Duration

	start     func()
	stop      func()
	afterFunc AfterFunc

	mu    sync.Mutex
	timer Timer
	gen   uint64
}

func NewLocal(delay time.Duration, start, stop func()) *Local {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Local{
		Delay:     delay,
		start:     start,
		stop:      stop,
		afterFunc: realAfterFunc,
	}
}

// UseAfterFunc swaps the timer source.
func (l *Local) UseAfterFunc(f AfterFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.afterFunc = f
}

func (l *Local) Keystroke() {
	l.mu.Lock()
	idle := l.timer == nil
	if !idle {
		l.timer.Stop()
	}
	l.gen++
	gen := l.gen
	l.timer = l.afterFunc(l.Delay, func() { l.fire(gen) })
	l.mu.Unlock()

	if idle {
		l.start()
	}
}

func (l *Local) fire(gen uint64) {
	l.mu.Lock()
	// A keystroke or send raced with this timer and superseded it.
	if gen != l.gen || l.timer == nil {
		l.mu.Unlock()
		return
	}
	l.timer = nil
	l.mu.Unlock()

	l.stop()
}

// Sent cancels any pending timer and signals stop right away.
func (l *Local) Sent() {
	l.mu.Lock()
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.gen++
	l.mu.Unlock()

	l.stop()
}

// Close cancels the pending timer without signalling.
func (l *Local) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.gen++
}

// Pending reports whether a stop signal is scheduled.
func (l *Local) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.timer != nil
}
