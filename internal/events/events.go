package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"classchat/internal/models"
)

// ErrDropped marks a frame that does not map to any known event.
var ErrDropped = errors.New("frame dropped")

// Event is one of the closed set of inbound gateway events.
type Event interface {
	Type() models.EventType
	event()
}

type PresenceState struct {
	Users []models.User
}

type UserJoined struct {
	User models.User
}

type UserLeft struct {
	UserID string
}

// GroupMessage covers plain sends and replies; ReplyTo is empty for sends.
type GroupMessage struct {
	FromUserID string
	Text       string
	Timestamp  models.Timestamp
	ReplyTo    models.Timestamp
}

type StartTyping struct {
	UserID string
}

type StopTyping struct {
	UserID string
}

// MessageReactionUpdate carries the full reaction map of a message.
// HasReactions is false when the frame had no reactions field; an explicit
// empty map still replaces the stored one.
type MessageReactionUpdate struct {
	MessageTimestamp models.Timestamp
	Reactions        models.Reactions
	HasReactions     bool
}

type MessagePinned struct {
	Pinned *models.PinnedMessage
}

type MessageUnpinned struct{}

// ReadReceiptUpdate carries the full seen-by list of a message. HasSeenBy
// is false when the frame had no seenBy field.
type ReadReceiptUpdate struct {
	MessageTimestamp models.Timestamp
	SeenBy           []string
	HasSeenBy        bool
}

func (PresenceState) Type() models.EventType         { return models.EventPresenceState }
func (UserJoined) Type() models.EventType            { return models.EventUserJoined }
func (UserLeft) Type() models.EventType              { return models.EventUserLeft }
func (GroupMessage) Type() models.EventType          { return models.EventGroupMessage }
func (StartTyping) Type() models.EventType           { return models.EventStartTyping }
func (StopTyping) Type() models.EventType            { return models.EventStopTyping }
func (MessageReactionUpdate) Type() models.EventType { return models.EventReactionUpdate }
func (MessagePinned) Type() models.EventType         { return models.EventMessagePinned }
func (MessageUnpinned) Type() models.EventType       { return models.EventMessageUnpinned }
func (ReadReceiptUpdate) Type() models.EventType     { return models.EventReadReceipt }

func (PresenceState) event()         {}
func (UserJoined) event()            {}
func (UserLeft) event()              {}
func (GroupMessage) event()          {}
func (StartTyping) event()           {}
func (StopTyping) event()            {}
func (MessageReactionUpdate) event() {}
func (MessagePinned) event()         {}
func (MessageUnpinned) event()       {}
func (ReadReceiptUpdate) event()     {}

// Normalize parses a raw frame and dispatches on its type tag. Frames that
// are not a JSON object or carry an unknown tag return an error wrapping
// ErrDropped. Payload fields are decoded one by one: a field that is absent
// or has the wrong shape is left as its zero value.
func Normalize(raw []byte) (Event, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %v", ErrDropped, err)
	}

	switch t := models.EventType(f.str("type")); t {
	case models.EventPresenceState:
		return PresenceState{Users: f.users("users")}, nil
	case models.EventUserJoined:
		u, _ := decodeUser(f["user"])
		return UserJoined{User: u}, nil
	case models.EventUserLeft:
		return UserLeft{UserID: f.str("userId")}, nil
	case models.EventGroupMessage:
		return GroupMessage{
			FromUserID: f.str("fromUserId"),
			Text:       f.str("message"),
			Timestamp:  f.timestamp("timestamp"),
			ReplyTo:    f.timestamp("replyTo"),
		}, nil
	case models.EventStartTyping:
		return StartTyping{UserID: f.str("userId")}, nil
	case models.EventStopTyping:
		return StopTyping{UserID: f.str("userId")}, nil
	case models.EventReactionUpdate:
		reactions, ok := f.reactions("reactions")
		return MessageReactionUpdate{
			MessageTimestamp: f.timestamp("messageTimestamp"),
			Reactions:        reactions,
			HasReactions:     ok,
		}, nil
	case models.EventMessagePinned:
		return MessagePinned{Pinned: f.pinned("pinnedMessage")}, nil
	case models.EventMessageUnpinned, "messageUnpinned":
		return MessageUnpinned{}, nil
	case models.EventReadReceipt:
		seenBy, ok := f.strings("seenBy")
		return ReadReceiptUpdate{
			MessageTimestamp: f.timestamp("messageTimestamp"),
			SeenBy:           seenBy,
			HasSeenBy:        ok,
		}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrDropped)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrDropped, t)
	}
}

// frame is an inbound envelope with its fields still undecoded.
type frame map[string]json.RawMessage

// present reports whether key is set to something other than null.
func (f frame) present(key string) bool {
	raw, ok := f[key]
	return ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func (f frame) str(key string) string {
	var s string
	if f.present(key) && json.Unmarshal(f[key], &s) == nil {
		return s
	}
	return ""
}

// timestamp accepts a string or a number; numbers keep their literal form.
func (f frame) timestamp(key string) models.Timestamp {
	if !f.present(key) {
		return ""
	}
	var s string
	if json.Unmarshal(f[key], &s) == nil {
		return models.Timestamp(s)
	}
	var n json.Number
	if json.Unmarshal(f[key], &n) == nil {
		return models.Timestamp(n.String())
	}
	return ""
}

// users skips elements that are not a user object or id.
func (f frame) users(key string) []models.User {
	var items []json.RawMessage
	if !f.present(key) || json.Unmarshal(f[key], &items) != nil {
		return nil
	}
	users := make([]models.User, 0, len(items))
	for _, item := range items {
		if u, ok := decodeUser(item); ok {
			users = append(users, u)
		}
	}
	return users
}

func decodeUser(raw json.RawMessage) (models.User, bool) {
	var u models.User
	if len(raw) == 0 || json.Unmarshal(raw, &u) != nil || u.ID == "" {
		return models.User{}, false
	}
	return u, true
}

// strings skips elements that are not strings. ok is false when the field
// is absent or not a list.
func (f frame) strings(key string) ([]string, bool) {
	var items []json.RawMessage
	if !f.present(key) || json.Unmarshal(f[key], &items) != nil {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if json.Unmarshal(item, &s) == nil {
			out = append(out, s)
		}
	}
	return out, true
}

// reactions skips symbols whose value is not a list of ids.
func (f frame) reactions(key string) (models.Reactions, bool) {
	var items map[string]json.RawMessage
	if !f.present(key) || json.Unmarshal(f[key], &items) != nil {
		return nil, false
	}
	out := make(models.Reactions, len(items))
	for symbol, raw := range items {
		var ids []string
		if json.Unmarshal(raw, &ids) == nil {
			if ids == nil {
				ids = []string{}
			}
			out[symbol] = ids
		}
	}
	return out, true
}

func (f frame) pinned(key string) *models.PinnedMessage {
	var p frame
	if !f.present(key) || json.Unmarshal(f[key], &p) != nil {
		return nil
	}
	reactions, _ := p.reactions("reactions")
	seenBy, _ := p.strings("seenBy")
	return &models.PinnedMessage{
		Message: models.Message{
			SenderID:  p.str("fromUserId"),
			Text:      p.str("message"),
			Timestamp: p.timestamp("timestamp"),
			ReplyTo:   p.timestamp("replyTo"),
			Reactions: reactions,
			SeenBy:    seenBy,
		},
		PinnedBy: p.str("pinnedBy"),
	}
}
