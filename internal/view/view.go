package view

import (
	"sort"

	"classchat/internal/content"
	"classchat/internal/models"
	"classchat/internal/typing"
)

const (
	MaxSeenAvatars   = 3
	PreviewRunes     = 80
	UnknownUserName  = "Unknown User"
	PlaceholderImage = ""
)

type ConnState string

const (
	Connecting   ConnState = "connecting"
	Connected    ConnState = "connected"
	Reconnecting ConnState = "reconnecting"
	Disconnected ConnState = "disconnected"
)

// State is everything a projection needs. It is a read-only copy taken by
// the session.
type State struct {
	Self        models.Identity
	Roster      []models.PresenceEntry
	RosterStale bool
	Messages    []models.Message
	Typists     []string
	Pinned      *models.PinnedMessage
	Draft       models.Timestamp
	Connection  ConnState
}

type Person struct {
	ID        string
	Name      string
	AvatarRef string
	Online    bool
}

type ReplyPreview struct {
	Timestamp models.Timestamp
	Sender    Person
	Text      string
}

type Badge struct {
	Symbol string
	Count  int
	Mine   bool
}

type Row struct {
	Seq       int64
	Timestamp models.Timestamp
	Own       bool
	Pending   bool
	Sender    Person
	Text      string
	HTML      string

	// IsReply is set even when the target is gone; Reply is nil then.
	IsReply bool
	Reply   *ReplyPreview

	Reactions      []Badge
	SeenBy         []Person
	SeenByOverflow int
}

type Banner struct {
	Sender   Person
	Text     string
	PinnedBy Person
}

type View struct {
	Connection  ConnState
	Roster      []Person
	RosterStale bool
	Rows        []Row
	Typing      string
	Pinned      *Banner
	ReplyingTo  *ReplyPreview
}

// Project derives the renderable view from state. It has no side effects.
func Project(s State) View {
	people := make(map[string]models.PresenceEntry, len(s.Roster))
	for _, e := range s.Roster {
		people[e.ID] = e
	}
	byTS := make(map[models.Timestamp]models.Message, len(s.Messages))
	for _, m := range s.Messages {
		if m.Timestamp == "" {
			continue
		}
		if _, dup := byTS[m.Timestamp]; !dup {
			byTS[m.Timestamp] = m
		}
	}

	resolve := func(id string) Person {
		return person(id, s.Self, people)
	}

	v := View{
		Connection:  s.Connection,
		RosterStale: s.RosterStale,
		Rows:        make([]Row, 0, len(s.Messages)),
	}

	for _, e := range s.Roster {
		v.Roster = append(v.Roster, resolve(e.ID))
	}

	for _, m := range s.Messages {
		v.Rows = append(v.Rows, row(m, s.Self, byTS, resolve))
	}

	names := make([]string, 0, len(s.Typists))
	for _, id := range s.Typists {
		names = append(names, resolve(id).Name)
	}
	v.Typing = typing.Indicator(names)

	if s.Pinned != nil {
		v.Pinned = &Banner{
			Sender:   resolve(s.Pinned.SenderID),
			Text:     s.Pinned.Text,
			PinnedBy: resolve(s.Pinned.PinnedBy),
		}
	}

	if s.Draft != "" {
		v.ReplyingTo = preview(s.Draft, byTS, resolve)
	}

	return v
}

func row(m models.Message, self models.Identity, byTS map[models.Timestamp]models.Message, resolve func(string) Person) Row {
	r := Row{
		Seq:       m.Seq,
		Timestamp: m.Timestamp,
		Own:       m.SenderID == self.ID,
		Pending:   m.Pending,
		Sender:    resolve(m.SenderID),
		Text:      m.Text,
		HTML:      content.RenderHTML(m.Text),
		IsReply:   m.ReplyTo != "",
	}
	if r.IsReply {
		r.Reply = preview(m.ReplyTo, byTS, resolve)
	}
	r.Reactions = badges(m.Reactions, self.ID)

	for i, id := range m.SeenBy {
		if i >= MaxSeenAvatars {
			r.SeenByOverflow = len(m.SeenBy) - MaxSeenAvatars
			break
		}
		r.SeenBy = append(r.SeenBy, resolve(id))
	}
	return r
}

func preview(ts models.Timestamp, byTS map[models.Timestamp]models.Message, resolve func(string) Person) *ReplyPreview {
	target, ok := byTS[ts]
	if !ok {
		return nil
	}
	return &ReplyPreview{
		Timestamp: ts,
		Sender:    resolve(target.SenderID),
		Text:      truncate(target.Text, PreviewRunes),
	}
}

// badges drops empty reaction entries and orders by count, then symbol.
func badges(reactions models.Reactions, selfID string) []Badge {
	var result []Badge
	for symbol, users := range reactions {
		if len(users) == 0 {
			continue
		}
		b := Badge{Symbol: symbol, Count: len(users)}
		for _, u := range users {
			if u == selfID {
				b.Mine = true
				break
			}
		}
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Symbol < result[j].Symbol
	})
	return result
}

// person resolves display info: roster first, then the local identity,
// then a placeholder named after the id.
func person(id string, self models.Identity, people map[string]models.PresenceEntry) Person {
	if e, ok := people[id]; ok {
		p := Person{
			ID:        id,
			Name:      e.Name,
			AvatarRef: e.AvatarRef,
			Online:    e.Status == models.StatusOnline,
		}
		if p.Name == "" {
			p.Name = id
		}
		return p
	}
	if id != "" && id == self.ID {
		return Person{ID: id, Name: self.DisplayName(), AvatarRef: self.AvatarRef, Online: true}
	}
	name := id
	if name == "" {
		name = UnknownUserName
	}
	return Person{ID: id, Name: name, AvatarRef: PlaceholderImage}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
