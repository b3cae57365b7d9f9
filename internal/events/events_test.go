package events

import (
	"errors"
	"testing"

	"classchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Event
	}{
		{
			name: "presence snapshot",
			raw:  `{"type":"presenceState","users":[{"id":"bob","name":"Bob","avatar":"b.png"}]}`,
			want: PresenceState{Users: []models.User{{ID: "bob", Name: "Bob", AvatarRef: "b.png"}}},
		},
		{
			name: "presence snapshot with bare ids",
			raw:  `{"type":"presenceState","users":["bob","carol"]}`,
			want: PresenceState{Users: []models.User{{ID: "bob"}, {ID: "carol"}}},
		},
		{
			name: "user joined",
			raw:  `{"type":"userJoined","user":{"id":"carol"}}`,
			want: UserJoined{User: models.User{ID: "carol"}},
		},
		{
			name: "user joined without payload",
			raw:  `{"type":"userJoined"}`,
			want: UserJoined{},
		},
		{
			name: "user left",
			raw:  `{"type":"userLeft","userId":"bob"}`,
			want: UserLeft{UserID: "bob"},
		},
		{
			name: "group message reply",
			raw:  `{"type":"groupMessage","fromUserId":"bob","message":"hello","timestamp":"T1","replyTo":"T0"}`,
			want: GroupMessage{FromUserID: "bob", Text: "hello", Timestamp: "T1", ReplyTo: "T0"},
		},
		{
			name: "typing",
			raw:  `{"type":"startTyping","userId":"bob"}`,
			want: StartTyping{UserID: "bob"},
		},
		{
			name: "stop typing",
			raw:  `{"type":"stopTyping","userId":"bob"}`,
			want: StopTyping{UserID: "bob"},
		},
		{
			name: "reaction update",
			raw:  `{"type":"messageReactionUpdate","messageTimestamp":"T1","reactions":{"👍":["alice"],"🎉":[]}}`,
			want: MessageReactionUpdate{
				MessageTimestamp: "T1",
				Reactions:        models.Reactions{"👍": {"alice"}, "🎉": {}},
				HasReactions:     true,
			},
		},
		{
			name: "unpinned",
			raw:  `{"type":"messageUnPinned"}`,
			want: MessageUnpinned{},
		},
		{
			name: "unpinned lower case variant",
			raw:  `{"type":"messageUnpinned"}`,
			want: MessageUnpinned{},
		},
		{
			name: "read receipt",
			raw:  `{"type":"readReceiptUpdate","messageTimestamp":"T1","seenBy":["bob","carol"]}`,
			want: ReadReceiptUpdate{MessageTimestamp: "T1", SeenBy: []string{"bob", "carol"}, HasSeenBy: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Type(), got.Type())
		})
	}
}

func TestNormalize_Pinned(t *testing.T) {
	raw := `{"type":"messagePinned","pinnedMessage":{"fromUserId":"bob","message":"read ch.3","timestamp":"T1","pinnedBy":"alice"}}`
	ev, err := Normalize([]byte(raw))
	require.NoError(t, err)

	pinned, ok := ev.(MessagePinned)
	require.True(t, ok, "expected MessagePinned, got %T", ev)
	require.NotNil(t, pinned.Pinned)
	assert.Equal(t, "bob", pinned.Pinned.SenderID)
	assert.Equal(t, models.Timestamp("T1"), pinned.Pinned.Timestamp)
	assert.Equal(t, "alice", pinned.Pinned.PinnedBy)

	ev, err = Normalize([]byte(`{"type":"messagePinned"}`))
	require.NoError(t, err)
	assert.Nil(t, ev.(MessagePinned).Pinned)
}

func TestNormalize_Dropped(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"Not JSON", `hello`},
		{"Empty", ``},
		{"Missing type", `{"userId":"bob"}`},
		{"Unknown type", `{"type":"somethingElse"}`},
		{"Array", `[1,2]`},
		{"Null", `null`},
		{"Non-string type", `{"type":42}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Normalize([]byte(tt.raw))
			if ev != nil {
				t.Errorf("expected no event, got %T", ev)
			}
			if !errors.Is(err, ErrDropped) {
				t.Errorf("expected ErrDropped, got %v", err)
			}
		})
	}
}

func TestNormalize_PartialPayloads(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Event
	}{
		{
			name: "presence without users",
			raw:  `{"type":"presenceState"}`,
			want: PresenceState{},
		},
		{
			name: "presence skips bad entries",
			raw:  `{"type":"presenceState","users":[{"id":"bob"},42,{"name":"no id"},"carol"]}`,
			want: PresenceState{Users: []models.User{{ID: "bob"}, {ID: "carol"}}},
		},
		{
			name: "presence users not a list",
			raw:  `{"type":"presenceState","users":"bob"}`,
			want: PresenceState{},
		},
		{
			name: "user joined with bad user",
			raw:  `{"type":"userJoined","user":7}`,
			want: UserJoined{},
		},
		{
			name: "user left without id",
			raw:  `{"type":"userLeft","userId":false}`,
			want: UserLeft{},
		},
		{
			name: "message with numeric timestamp",
			raw:  `{"type":"groupMessage","fromUserId":"bob","message":"hi","timestamp":1730000000000}`,
			want: GroupMessage{FromUserID: "bob", Text: "hi", Timestamp: "1730000000000"},
		},
		{
			name: "message with object body",
			raw:  `{"type":"groupMessage","fromUserId":"bob","message":{"nested":true},"timestamp":"T1"}`,
			want: GroupMessage{FromUserID: "bob", Timestamp: "T1"},
		},
		{
			name: "typing without user",
			raw:  `{"type":"startTyping"}`,
			want: StartTyping{},
		},
		{
			name: "reactions absent",
			raw:  `{"type":"messageReactionUpdate","messageTimestamp":"T1"}`,
			want: MessageReactionUpdate{MessageTimestamp: "T1"},
		},
		{
			name: "reactions null",
			raw:  `{"type":"messageReactionUpdate","messageTimestamp":"T1","reactions":null}`,
			want: MessageReactionUpdate{MessageTimestamp: "T1"},
		},
		{
			name: "reactions explicitly empty",
			raw:  `{"type":"messageReactionUpdate","messageTimestamp":"T1","reactions":{}}`,
			want: MessageReactionUpdate{MessageTimestamp: "T1", Reactions: models.Reactions{}, HasReactions: true},
		},
		{
			name: "reactions skip bad symbols",
			raw:  `{"type":"messageReactionUpdate","messageTimestamp":"T1","reactions":{"👍":["bob"],"❤️":"bob"}}`,
			want: MessageReactionUpdate{MessageTimestamp: "T1", Reactions: models.Reactions{"👍": {"bob"}}, HasReactions: true},
		},
		{
			name: "pinned with bad payload",
			raw:  `{"type":"messagePinned","pinnedMessage":"T1"}`,
			want: MessagePinned{},
		},
		{
			name: "receipts absent",
			raw:  `{"type":"readReceiptUpdate","messageTimestamp":"T1"}`,
			want: ReadReceiptUpdate{MessageTimestamp: "T1"},
		},
		{
			name: "receipts explicitly empty",
			raw:  `{"type":"readReceiptUpdate","messageTimestamp":"T1","seenBy":[]}`,
			want: ReadReceiptUpdate{MessageTimestamp: "T1", SeenBy: []string{}, HasSeenBy: true},
		},
		{
			name: "receipts skip non-strings",
			raw:  `{"type":"readReceiptUpdate","messageTimestamp":"T1","seenBy":["bob",3]}`,
			want: ReadReceiptUpdate{MessageTimestamp: "T1", SeenBy: []string{"bob"}, HasSeenBy: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
