package compose

import (
	"errors"
	"strings"

	"classchat/internal/models"

	"github.com/c-pro/geche"
)

var (
	ErrNoIdentity   = errors.New("choose a name before joining")
	ErrNoAvatar     = errors.New("choose an avatar before joining")
	ErrNoGroup      = errors.New("group is required")
	ErrEmptyMessage = errors.New("message cannot be empty")
	ErrNoTimestamp  = errors.New("message has not been confirmed yet")
	ErrNoReaction   = errors.New("reaction cannot be empty")
)

// Composer builds outbound envelopes for the local identity in one group.
type Composer struct {
	Identity models.Identity
	GroupID  string
}

// New validates the identity chosen at join time.
func New(identity models.Identity, groupID string, requireAvatar bool) (*Composer, error) {
	if strings.TrimSpace(identity.ID) == "" {
		return nil, ErrNoIdentity
	}
	if requireAvatar && identity.AvatarRef == "" {
		return nil, ErrNoAvatar
	}
	if groupID == "" {
		return nil, ErrNoGroup
	}
	return &Composer{Identity: identity, GroupID: groupID}, nil
}

func (c *Composer) scoped(action models.ActionType) models.Action {
	return models.Action{Action: action, UserID: c.Identity.ID, GroupID: c.GroupID}
}

func (c *Composer) Join() models.Action {
	return c.scoped(models.ActionJoinGroup)
}

func (c *Composer) RequestPresence() models.Action {
	return models.Action{Action: models.ActionRequestPresence}
}

// Send builds a plain send, or a reply when the draft holds a target.
func (c *Composer) Send(text string, draft *Draft) (models.Action, error) {
	if strings.TrimSpace(text) == "" {
		return models.Action{}, ErrEmptyMessage
	}
	a := c.scoped(models.ActionSendGroupMessage)
	a.Text = text
	if draft != nil {
		if ts, ok := draft.Target(); ok {
			a.Action = models.ActionReplyGroupMessage
			a.ReplyTo = ts
		}
	}
	return a, nil
}

func (c *Composer) StartTyping() models.Action {
	return c.scoped(models.ActionStartTyping)
}

func (c *Composer) StopTyping() models.Action {
	return c.scoped(models.ActionStopTyping)
}

// React sets a reaction. Repeating the same symbol resends the same action;
// de-duplication is left to the gateway.
func (c *Composer) React(ts models.Timestamp, reaction string) (models.Action, error) {
	if ts == "" {
		return models.Action{}, ErrNoTimestamp
	}
	if reaction == "" {
		return models.Action{}, ErrNoReaction
	}
	a := c.scoped(models.ActionReactToMessage)
	a.MessageTimestamp = ts
	a.Reaction = reaction
	return a, nil
}

func (c *Composer) Pin(msg models.Message) (models.Action, error) {
	if msg.Timestamp == "" {
		return models.Action{}, ErrNoTimestamp
	}
	snapshot := msg
	snapshot.Pending = false
	snapshot.ClientID = ""
	return models.Action{
		Action:   models.ActionPinMessage,
		GroupID:  c.GroupID,
		Snapshot: &snapshot,
	}, nil
}

func (c *Composer) Unpin() models.Action {
	return models.Action{Action: models.ActionUnpinMessage, GroupID: c.GroupID}
}

func (c *Composer) MarkRead(ts models.Timestamp) models.Action {
	a := c.scoped(models.ActionMarkAsRead)
	a.MessageTimestamp = ts
	return a
}

// Draft holds at most one pending reply target.
type Draft struct {
	target models.Timestamp
}

func (d *Draft) Set(ts models.Timestamp) error {
	if ts == "" {
		return ErrNoTimestamp
	}
	d.target = ts
	return nil
}

func (d *Draft) Target() (models.Timestamp, bool) {
	return d.target, d.target != ""
}

func (d *Draft) Cancel() {
	d.target = ""
}

// ReadTracker remembers which messages were already marked read by the local
// user so each one is acknowledged once.
type ReadTracker struct {
	localID string
	marked  *geche.MapCache[models.Timestamp, struct{}]
}

func NewReadTracker(localID string) *ReadTracker {
	return &ReadTracker{
		localID: localID,
		marked:  geche.NewMapCache[models.Timestamp, struct{}](),
	}
}

// ShouldMark reports whether a mark-read must be sent for msg and records
// it. Own messages, unconfirmed copies and already marked ones are skipped.
func (t *ReadTracker) ShouldMark(msg models.Message) bool {
	if msg.Timestamp == "" || msg.Pending || msg.SenderID == t.localID {
		return false
	}
	if _, err := t.marked.Get(msg.Timestamp); err == nil {
		return false
	}
	t.marked.Set(msg.Timestamp, struct{}{})
	return true
}

func (t *ReadTracker) Len() int {
	return t.marked.Len()
}
