package presence

import (
	"classchat/internal/models"
)

// Roster is the presence map of every user seen in the session.
// Entries are never removed; leaving only flips the status.
type Roster struct {
	entries map[string]*models.PresenceEntry
	order   []string // first-seen order
	stale   bool
}

func New() *Roster {
	return &Roster{
		entries: make(map[string]*models.PresenceEntry),
	}
}

// ApplySnapshot marks every listed user online. Users missing from the
// snapshot are left untouched.
func (r *Roster) ApplySnapshot(users []models.User) {
	for _, u := range users {
		if u.ID == "" {
			continue
		}
		if e, ok := r.entries[u.ID]; ok {
			e.Status = models.StatusOnline
			continue
		}
		r.insert(u)
	}
	r.stale = false
}

// Join inserts an unknown user. A known user keeps its name and avatar but
// comes back online.
func (r *Roster) Join(u models.User) {
	if u.ID == "" {
		return
	}
	if e, ok := r.entries[u.ID]; ok {
		e.Status = models.StatusOnline
		return
	}
	r.insert(u)
}

// Leave marks a known user offline. Unknown users are ignored.
func (r *Roster) Leave(userID string) {
	if e, ok := r.entries[userID]; ok {
		e.Status = models.StatusOffline
	}
}

func (r *Roster) insert(u models.User) {
	r.entries[u.ID] = &models.PresenceEntry{User: u, Status: models.StatusOnline}
	r.order = append(r.order, u.ID)
}

func (r *Roster) Get(userID string) (models.PresenceEntry, bool) {
	e, ok := r.entries[userID]
	if !ok {
		return models.PresenceEntry{}, false
	}
	return *e, true
}

// Entries returns a copy of the roster in first-seen order.
func (r *Roster) Entries() []models.PresenceEntry {
	result := make([]models.PresenceEntry, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, *r.entries[id])
	}
	return result
}

func (r *Roster) Len() int {
	return len(r.order)
}

// MarkStale flags the roster as possibly outdated, e.g. after a reconnect.
// The next snapshot clears the flag.
func (r *Roster) MarkStale() {
	r.stale = true
}

func (r *Roster) Stale() bool {
	return r.stale
}
