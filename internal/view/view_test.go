package view

import (
	"testing"

	"classchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alice = models.Identity{ID: "alice", Name: "Alice", AvatarRef: "alice.png"}

func roster() []models.PresenceEntry {
	return []models.PresenceEntry{
		{User: models.User{ID: "bob", Name: "Bob", AvatarRef: "bob.png"}, Status: models.StatusOnline},
		{User: models.User{ID: "carol", AvatarRef: "carol.png"}, Status: models.StatusOffline},
	}
}

func TestProject_SenderResolution(t *testing.T) {
	v := Project(State{
		Self:   alice,
		Roster: roster(),
		Messages: []models.Message{
			{SenderID: "bob", Text: "hello", Timestamp: "T1"},
			{SenderID: "alice", Text: "hi", Timestamp: "T2"},
			{SenderID: "dave", Text: "who am i", Timestamp: "T3"},
			{SenderID: "carol", Text: "hey", Timestamp: "T4"},
		},
	})

	require.Len(t, v.Rows, 4)

	assert.False(t, v.Rows[0].Own)
	assert.Equal(t, Person{ID: "bob", Name: "Bob", AvatarRef: "bob.png", Online: true}, v.Rows[0].Sender)

	assert.True(t, v.Rows[1].Own)
	assert.Equal(t, "Alice", v.Rows[1].Sender.Name)
	assert.Equal(t, "alice.png", v.Rows[1].Sender.AvatarRef)

	assert.Equal(t, "dave", v.Rows[2].Sender.Name)
	assert.Equal(t, PlaceholderImage, v.Rows[2].Sender.AvatarRef)

	assert.Equal(t, "carol", v.Rows[3].Sender.Name, "name falls back to id")
	assert.False(t, v.Rows[3].Sender.Online)
}

func TestProject_UnresolvedReply(t *testing.T) {
	v := Project(State{
		Self: alice,
		Messages: []models.Message{
			{SenderID: "bob", Text: "original", Timestamp: "T1"},
			{SenderID: "carol", Text: "quoting", Timestamp: "T2", ReplyTo: "T1"},
			{SenderID: "bob", Text: "orphan", Timestamp: "T3", ReplyTo: "gone"},
		},
	})

	require.Len(t, v.Rows, 3)

	assert.True(t, v.Rows[1].IsReply)
	require.NotNil(t, v.Rows[1].Reply)
	assert.Equal(t, "original", v.Rows[1].Reply.Text)
	assert.Equal(t, "bob", v.Rows[1].Reply.Sender.ID)

	orphan := v.Rows[2]
	assert.True(t, orphan.IsReply)
	assert.Nil(t, orphan.Reply)
	assert.Equal(t, "orphan", orphan.Text)
	assert.Equal(t, "bob", orphan.Sender.ID)
}

func TestProject_Reactions(t *testing.T) {
	v := Project(State{
		Self: alice,
		Messages: []models.Message{{
			SenderID:  "bob",
			Text:      "vote",
			Timestamp: "T1",
			Reactions: models.Reactions{
				"👍": {"alice"},
				"🎉": {},
				"❤️": {"bob", "carol"},
				"😂": {"carol"},
			},
		}},
	})

	assert.Equal(t, []Badge{
		{Symbol: "❤️", Count: 2},
		{Symbol: "👍", Count: 1, Mine: true},
		{Symbol: "😂", Count: 1},
	}, v.Rows[0].Reactions)
}

func TestProject_SeenBy(t *testing.T) {
	v := Project(State{
		Self:   alice,
		Roster: roster(),
		Messages: []models.Message{
			{SenderID: "alice", Text: "a", Timestamp: "T1", SeenBy: []string{"bob", "carol", "dave", "erin", "frank"}},
			{SenderID: "alice", Text: "b", Timestamp: "T2", SeenBy: []string{"bob"}},
		},
	})

	first := v.Rows[0]
	require.Len(t, first.SeenBy, MaxSeenAvatars)
	assert.Equal(t, "bob.png", first.SeenBy[0].AvatarRef)
	assert.Equal(t, 2, first.SeenByOverflow)

	second := v.Rows[1]
	assert.Len(t, second.SeenBy, 1)
	assert.Zero(t, second.SeenByOverflow)
}

func TestProject_Header(t *testing.T) {
	v := Project(State{
		Self:        alice,
		Roster:      roster(),
		RosterStale: true,
		Connection:  Reconnecting,
		Messages:    []models.Message{{SenderID: "bob", Text: "a long message about homework", Timestamp: "T1"}},
		Typists:     []string{"bob", "carol"},
		Pinned: &models.PinnedMessage{
			Message:  models.Message{SenderID: "bob", Text: "<b>exam</b> friday", Timestamp: "T1"},
			PinnedBy: "alice",
		},
		Draft: "T1",
	})

	assert.Equal(t, Reconnecting, v.Connection)
	assert.True(t, v.RosterStale)
	assert.Len(t, v.Roster, 2)
	assert.Equal(t, "Bob and carol are typing...", v.Typing)

	require.NotNil(t, v.Pinned)
	assert.Equal(t, "exam friday", v.Pinned.Text)
	assert.Equal(t, "Alice", v.Pinned.PinnedBy.Name)

	require.NotNil(t, v.ReplyingTo)
	assert.Equal(t, models.Timestamp("T1"), v.ReplyingTo.Timestamp)
}

func TestProject_Body(t *testing.T) {
	v := Project(State{
		Self:     alice,
		Messages: []models.Message{{SenderID: "bob", Text: "**hi** <script>x()</script>", Timestamp: "T1"}},
	})
	assert.Contains(t, v.Rows[0].HTML, "<strong>hi</strong>")
	assert.NotContains(t, v.Rows[0].HTML, "<script>")
	assert.Equal(t, "**hi** <script>x()</script>", v.Rows[0].Text, "text is shown as written")
}

func TestProject_TextKeepsAngleBrackets(t *testing.T) {
	code := "use vector<int> and <div> here"
	v := Project(State{
		Self: alice,
		Messages: []models.Message{
			{SenderID: "bob", Text: code, Timestamp: "T1"},
			{SenderID: "alice", Text: "  indented <b>", Timestamp: "T2", ReplyTo: "T1"},
		},
		Pinned: &models.PinnedMessage{Message: models.Message{SenderID: "bob", Text: code, Timestamp: "T1"}, PinnedBy: "alice"},
	})
	require.Len(t, v.Rows, 2)
	assert.Equal(t, code, v.Rows[0].Text)
	assert.Equal(t, "  indented <b>", v.Rows[1].Text)
	require.NotNil(t, v.Rows[1].Reply)
	assert.Equal(t, code, v.Rows[1].Reply.Text)
	require.NotNil(t, v.Pinned)
	assert.Equal(t, code, v.Pinned.Text)
	assert.NotContains(t, v.Rows[0].HTML, "<div>")
}

func TestProject_Empty(t *testing.T) {
	v := Project(State{Self: alice})
	assert.Empty(t, v.Rows)
	assert.Empty(t, v.Typing)
	assert.Nil(t, v.Pinned)
	assert.Nil(t, v.ReplyingTo)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
