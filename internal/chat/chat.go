package chat

import (
	"classchat/internal/models"

	"github.com/google/uuid"
)

const DefaultMaxRecords = 500

type Seq int64

type Store struct {
	GroupID    string
	Records    []models.Message
	FirstSeq   Seq
	LastSeq    Seq
	LastIndex  int
	MaxRecords int

	// RecordCallback is called for every record that becomes canonical,
	// either appended from the gateway or an optimistic copy confirmed by
	// its echo, and again when its reactions or receipts change.
	RecordCallback func(groupID string, record models.Message)

	index   map[models.Timestamp]Seq
	pending []Seq
	pinned  *models.PinnedMessage
	newID   func() string
}

type Config struct {
	GroupID        string
	MaxRecords     int
	RecordCallback func(groupID string, record models.Message)
}

func New(config Config) *Store {
	maxRecords := config.MaxRecords
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	return &Store{
		GroupID:        config.GroupID,
		MaxRecords:     maxRecords,
		LastIndex:      -1,
		FirstSeq:       -1,
		LastSeq:        -1,
		RecordCallback: config.RecordCallback,
		index:          make(map[models.Timestamp]Seq),
		newID:          uuid.NewString,
	}
}

// Receive folds a message from the gateway into the log.
// An echo of our own message replaces the oldest optimistic copy with the same
// text and reply target in place; anything else is appended in arrival order.
func (s *Store) Receive(msg models.Message, localID string) Seq {
	if localID != "" && msg.SenderID == localID {
		if seq, ok := s.confirm(msg); ok {
			return seq
		}
	}
	return s.add(msg)
}

// AddPending appends an optimistic local copy. It has no timestamp until the
// gateway echo arrives, so it cannot be reacted to, pinned or replied to.
func (s *Store) AddPending(senderID, text string, replyTo models.Timestamp) models.Message {
	msg := models.Message{
		ClientID: s.newID(),
		Pending:  true,
		SenderID: senderID,
		Text:     text,
		ReplyTo:  replyTo,
	}
	msg.Seq = int64(s.add(msg))
	s.pending = append(s.pending, Seq(msg.Seq))
	return msg
}

func (s *Store) confirm(echo models.Message) (Seq, bool) {
	for i, seq := range s.pending {
		pos, ok := s.position(seq)
		if !ok {
			continue
		}
		rec := &s.Records[pos]
		if rec.Text != echo.Text || rec.ReplyTo != echo.ReplyTo {
			continue
		}

		rec.Pending = false
		rec.Timestamp = echo.Timestamp
		if echo.Reactions != nil {
			rec.Reactions = echo.Reactions
		}
		if echo.SeenBy != nil {
			rec.SeenBy = echo.SeenBy
		}
		s.pending = append(s.pending[:i], s.pending[i+1:]...)
		s.indexRecord(*rec)

		if s.RecordCallback != nil {
			s.RecordCallback(s.GroupID, *rec)
		}
		return seq, true
	}
	return 0, false
}

// add puts a record into the ring buffer:
// - evicting the oldest record once MaxRecords is reached
// - assigning the next arrival sequence number
// - indexing its timestamp
func (s *Store) add(record models.Message) Seq {
	s.LastSeq++
	record.Seq = int64(s.LastSeq)

	switch {
	case len(s.Records) < s.MaxRecords:
		if s.FirstSeq == -1 {
			s.FirstSeq = s.LastSeq
		}
		s.Records = append(s.Records, record)
		s.LastIndex++
	default:
		i := (s.LastIndex + 1) % s.MaxRecords
		s.evict(s.Records[i])
		s.FirstSeq++
		s.Records[i] = record
		s.LastIndex = i
	}

	if !record.Pending {
		s.indexRecord(record)
		if s.RecordCallback != nil {
			s.RecordCallback(s.GroupID, record)
		}
	}
	return s.LastSeq
}

// indexRecord keeps the first arrival for a timestamp; later duplicates
// stay in the log but are not addressable by timestamp.
func (s *Store) indexRecord(record models.Message) {
	if record.Timestamp == "" {
		return
	}
	if _, exists := s.index[record.Timestamp]; exists {
		return
	}
	s.index[record.Timestamp] = Seq(record.Seq)
}

func (s *Store) evict(old models.Message) {
	if seq, ok := s.index[old.Timestamp]; ok && seq == Seq(old.Seq) {
		delete(s.index, old.Timestamp)
	}
	for i, seq := range s.pending {
		if seq == Seq(old.Seq) {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			break
		}
	}
}

// position maps a sequence number to its slot in the ring buffer.
func (s *Store) position(seq Seq) (int, bool) {
	if s.FirstSeq == -1 || seq < s.FirstSeq || seq > s.LastSeq {
		return 0, false
	}
	head := 0
	if len(s.Records) == s.MaxRecords {
		head = (s.LastIndex + 1) % s.MaxRecords
	}
	return (head + int(seq-s.FirstSeq)) % len(s.Records), true
}

func (s *Store) lookup(ts models.Timestamp) (*models.Message, bool) {
	if ts == "" {
		return nil, false
	}
	seq, ok := s.index[ts]
	if !ok {
		return nil, false
	}
	pos, ok := s.position(seq)
	if !ok {
		return nil, false
	}
	return &s.Records[pos], true
}

// Find returns the message with the exact timestamp, if it is still in the
// log window.
func (s *Store) Find(ts models.Timestamp) (models.Message, bool) {
	m, ok := s.lookup(ts)
	if !ok {
		return models.Message{}, false
	}
	return *m, true
}

// ApplyReactions replaces the reaction map of a message wholesale. Unknown
// timestamps are ignored.
func (s *Store) ApplyReactions(ts models.Timestamp, reactions models.Reactions) bool {
	m, ok := s.lookup(ts)
	if !ok {
		return false
	}
	m.Reactions = reactions
	s.notify(*m)
	return true
}

// ApplySeenBy replaces the read receipts of a message wholesale.
func (s *Store) ApplySeenBy(ts models.Timestamp, seenBy []string) bool {
	m, ok := s.lookup(ts)
	if !ok {
		return false
	}
	m.SeenBy = seenBy
	s.notify(*m)
	return true
}

func (s *Store) notify(record models.Message) {
	if s.RecordCallback != nil {
		s.RecordCallback(s.GroupID, record)
	}
}

// Pin replaces the pinned slot. A nil snapshot leaves the slot as is.
func (s *Store) Pin(p *models.PinnedMessage) {
	if p == nil {
		return
	}
	cp := *p
	s.pinned = &cp
}

func (s *Store) Unpin() {
	s.pinned = nil
}

func (s *Store) Pinned() (models.PinnedMessage, bool) {
	if s.pinned == nil {
		return models.PinnedMessage{}, false
	}
	return *s.pinned, true
}

// Messages returns the log window in arrival order.
func (s *Store) Messages() []models.Message {
	if s.FirstSeq == -1 {
		return []models.Message{}
	}
	return s.GetRecords(s.FirstSeq, s.LastSeq+1)
}

// GetRecords returns records in [from, to) clamped to the log window.
func (s *Store) GetRecords(from, to Seq) []models.Message {
	if s.FirstSeq == -1 {
		return []models.Message{}
	}

	if from < s.FirstSeq {
		from = s.FirstSeq
	}
	if to > s.LastSeq+1 {
		to = s.LastSeq + 1
	}
	if from >= to {
		return []models.Message{}
	}

	count := int(to - from)
	result := make([]models.Message, count)

	startIdx, _ := s.position(from)
	if startIdx+count <= len(s.Records) {
		copy(result, s.Records[startIdx:startIdx+count])
	} else {
		n1 := len(s.Records) - startIdx
		copy(result, s.Records[startIdx:])
		copy(result[n1:], s.Records[:count-n1])
	}

	return result
}

func (s *Store) Len() int {
	return len(s.Records)
}

// PendingCount is the number of optimistic copies awaiting their echo.
func (s *Store) PendingCount() int {
	return len(s.pending)
}
