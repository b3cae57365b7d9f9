package storage

import (
	"errors"
	"fmt"
	"time"

	"classchat/internal/models"

	"go.etcd.io/bbolt"
)

var (
	bucketGroups   = []byte("groups")
	bucketMessages = []byte("messages")
)

var ErrNoTimestamp = errors.New("message has no timestamp")

type BboltStorage struct {
	db  *bbolt.DB
	now func() time.Time
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketGroups); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketMessages); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStorage{db: db, now: time.Now}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

// UpsertMessage saves a canonical group message, replacing any earlier copy
// with the same timestamp, and updates the group summary.
func (s *BboltStorage) UpsertMessage(groupID string, message models.Message) error {
	if groupID == "" {
		return errors.New("message missing groupID")
	}
	if message.Timestamp == "" {
		return ErrNoTimestamp
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		// 1. Save message
		mainMsgBucket := tx.Bucket(bucketMessages)
		groupBucket, err := mainMsgBucket.CreateBucketIfNotExists([]byte(groupID))
		if err != nil {
			return fmt.Errorf("failed to create group bucket: %w", err)
		}

		dbMessage := DBMessage{
			Timestamp: string(message.Timestamp),
			GroupID:   groupID,
			SenderID:  message.SenderID,
			Text:      message.Text,
			ReplyTo:   string(message.ReplyTo),
			Reactions: message.Reactions,
			SeenBy:    message.SeenBy,
		}

		data, err := dbMessage.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}

		isNew := groupBucket.Get(dbMessage.Key()) == nil
		if err := groupBucket.Put(dbMessage.Key(), data); err != nil {
			return fmt.Errorf("failed to put message: %w", err)
		}

		// 2. Update group summary
		groups := tx.Bucket(bucketGroups)
		dbGroup := DBGroup{ID: groupID}
		if existing := groups.Get(dbGroup.Key()); existing != nil {
			if err := dbGroup.UnmarshalBinary(existing); err != nil {
				return fmt.Errorf("failed to unmarshal group: %w", err)
			}
		}
		if isNew {
			dbGroup.MessageCount++
		}
		if dbMessage.Timestamp > dbGroup.LastTimestamp {
			dbGroup.LastTimestamp = dbMessage.Timestamp
		}
		dbGroup.UpdatedAt = s.now().Unix()

		groupData, err := dbGroup.MarshalBinary()
		if err != nil {
			return err
		}
		return groups.Put(dbGroup.Key(), groupData)
	})
}

// ListMessages returns up to limit of the latest messages of a group, oldest
// first. A limit of zero or less returns everything.
func (s *BboltStorage) ListMessages(groupID string, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.View(func(tx *bbolt.Tx) error {
		groupBucket := tx.Bucket(bucketMessages).Bucket([]byte(groupID))
		if groupBucket == nil {
			return nil // No messages for this group
		}

		c := groupBucket.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(messages) >= limit {
				break
			}
			var dbMsg DBMessage
			if err := dbMsg.UnmarshalBinary(v); err != nil {
				return err
			}
			messages = append(messages, models.Message{
				SenderID:  dbMsg.SenderID,
				Text:      dbMsg.Text,
				Timestamp: models.Timestamp(dbMsg.Timestamp),
				ReplyTo:   models.Timestamp(dbMsg.ReplyTo),
				Reactions: dbMsg.Reactions,
				SeenBy:    dbMsg.SeenBy,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	for i := range messages {
		messages[i].Seq = int64(i + 1)
	}
	return messages, nil
}

type GroupSummary struct {
	ID            string
	MessageCount  int
	LastTimestamp models.Timestamp
	UpdatedAt     time.Time
}

// ListGroups returns a summary of every cached group.
func (s *BboltStorage) ListGroups() ([]GroupSummary, error) {
	var groups []GroupSummary
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketGroups)
		return b.ForEach(func(k, v []byte) error {
			var dbGroup DBGroup
			if err := dbGroup.UnmarshalBinary(v); err != nil {
				return err
			}
			groups = append(groups, GroupSummary{
				ID:            dbGroup.ID,
				MessageCount:  dbGroup.MessageCount,
				LastTimestamp: models.Timestamp(dbGroup.LastTimestamp),
				UpdatedAt:     time.Unix(dbGroup.UpdatedAt, 0),
			})
			return nil
		})
	})
	return groups, err
}

// GetGroup returns one group summary or models.ErrNotFound.
func (s *BboltStorage) GetGroup(groupID string) (GroupSummary, error) {
	groups, err := s.ListGroups()
	if err != nil {
		return GroupSummary{}, err
	}
	for _, g := range groups {
		if g.ID == groupID {
			return g, nil
		}
	}
	return GroupSummary{}, models.ErrNotFound
}
