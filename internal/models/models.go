package models

import (
	"bytes"
	"encoding/json"
	"errors"
)

var (
	ErrNotFound = errors.New("not found")
)

// Timestamp is the wire identity of a message. It is opaque to the client
// (ISO-8601 strings in practice) and only ever compared for equality.
type Timestamp string

type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
)

// Identity is the local user, chosen once at join time.
type Identity struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarRef string `json:"avatar"`
}

// DisplayName falls back to the id, which doubles as the name on the wire.
func (i Identity) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return i.ID
}

// User is a roster member as announced by the gateway.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	AvatarRef string `json:"avatar,omitempty"`
}

// UnmarshalJSON accepts both the object form and a bare user id string,
// which earlier gateway revisions send in presence snapshots.
func (u *User) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if len(raw) > 0 && raw[0] == '"' {
		*u = User{}
		return json.Unmarshal(raw, &u.ID)
	}
	type alias User
	return json.Unmarshal(raw, (*alias)(u))
}

// PresenceEntry is the last known state of a user in the group.
type PresenceEntry struct {
	User
	Status PresenceStatus `json:"status"`
}

// Reactions maps a reaction symbol to the ids of users who chose it.
type Reactions map[string][]string

// Message represents a chat message in the group log.
type Message struct {
	Seq       int64     `json:"-"` // Local arrival sequence number
	ClientID  string    `json:"-"` // Set only on optimistic local copies
	Pending   bool      `json:"-"`
	SenderID  string    `json:"fromUserId"`
	Text      string    `json:"message"`
	Timestamp Timestamp `json:"timestamp"`
	ReplyTo   Timestamp `json:"replyTo,omitempty"`
	Reactions Reactions `json:"reactions,omitempty"`
	SeenBy    []string  `json:"seenBy,omitempty"`
}

// PinnedMessage is a snapshot of a message taken at pin time.
type PinnedMessage struct {
	Message
	PinnedBy string `json:"pinnedBy,omitempty"`
}

// Action is an outbound envelope sent to the gateway. The wire "message"
// field carries Text for send/reply and Snapshot for pinMessage.
type Action struct {
	Action           ActionType `json:"action"`
	UserID           string     `json:"userId,omitempty"`
	GroupID          string     `json:"groupId,omitempty"`
	Text             string     `json:"-"`
	Snapshot         *Message   `json:"-"`
	ReplyTo          Timestamp  `json:"replyTo,omitempty"`
	MessageTimestamp Timestamp  `json:"messageTimestamp,omitempty"`
	Reaction         string     `json:"reaction,omitempty"`
}

func (a Action) MarshalJSON() ([]byte, error) {
	type alias Action
	var message any
	switch {
	case a.Snapshot != nil:
		message = a.Snapshot
	case a.Text != "":
		message = a.Text
	}
	return json.Marshal(struct {
		alias
		Message any `json:"message,omitempty"`
	}{alias: alias(a), Message: message})
}

func (a *Action) UnmarshalJSON(data []byte) error {
	type alias Action
	var wire struct {
		alias
		Message json.RawMessage `json:"message,omitempty"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*a = Action(wire.alias)
	raw := bytes.TrimSpace(wire.Message)
	switch {
	case len(raw) == 0, bytes.Equal(raw, []byte("null")):
	case raw[0] == '{':
		a.Snapshot = &Message{}
		return json.Unmarshal(raw, a.Snapshot)
	default:
		return json.Unmarshal(raw, &a.Text)
	}
	return nil
}

type ActionType string

const (
	ActionJoinGroup         ActionType = "joinGroup"
	ActionRequestPresence   ActionType = "requestPresenceState"
	ActionSendGroupMessage  ActionType = "sendGroupMessage"
	ActionReplyGroupMessage ActionType = "replyToGroupMessage"
	ActionStartTyping       ActionType = "startTyping"
	ActionStopTyping        ActionType = "stopTyping"
	ActionReactToMessage    ActionType = "reactToMessage"
	ActionPinMessage        ActionType = "pinMessage"
	ActionUnpinMessage      ActionType = "unpinMessage"
	ActionMarkAsRead        ActionType = "markAsRead"
)

type EventType string

const (
	EventPresenceState   EventType = "presenceState"
	EventUserJoined      EventType = "userJoined"
	EventUserLeft        EventType = "userLeft"
	EventGroupMessage    EventType = "groupMessage"
	EventStartTyping     EventType = "startTyping"
	EventStopTyping      EventType = "stopTyping"
	EventReactionUpdate  EventType = "messageReactionUpdate"
	EventMessagePinned   EventType = "messagePinned"
	EventMessageUnpinned EventType = "messageUnPinned"
	EventReadReceipt     EventType = "readReceiptUpdate"
)
