package storage

import (
	"encoding"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type DBGroup struct {
	ID            string `msgpack:"id"`
	MessageCount  int    `msgpack:"messageCount"`
	LastTimestamp string `msgpack:"lastTimestamp"`
	UpdatedAt     int64  `msgpack:"updatedAt"`
}

func (g *DBGroup) Key() []byte {
	return []byte(g.ID)
}

func (g *DBGroup) MarshalBinary() (data []byte, err error) {
	type alias DBGroup
	return msgpack.Marshal((*alias)(g))
}

func (g *DBGroup) UnmarshalBinary(data []byte) error {
	type alias DBGroup
	return msgpack.Unmarshal(data, (*alias)(g))
}

type DBMessage struct {
	Timestamp string              `msgpack:"timestamp"`
	GroupID   string              `msgpack:"groupId"`
	SenderID  string              `msgpack:"senderId"`
	Text      string              `msgpack:"text"`
	ReplyTo   string              `msgpack:"replyTo,omitempty"`
	Reactions map[string][]string `msgpack:"reactions,omitempty"`
	SeenBy    []string            `msgpack:"seenBy,omitempty"`
}

// Key is the gateway timestamp. Gateway timestamps are ISO-8601, so byte
// order follows arrival order.
func (m *DBMessage) Key() []byte {
	return []byte(m.Timestamp)
}

func (m *DBMessage) MarshalBinary() (data []byte, err error) {
	type alias DBMessage
	return msgpack.Marshal((*alias)(m))
}

func (m *DBMessage) UnmarshalBinary(data []byte) error {
	type alias DBMessage
	return msgpack.Unmarshal(data, (*alias)(m))
}
