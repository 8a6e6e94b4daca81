package model

import (
	"time"
	"unicode/utf16"

	"github.com/google/uuid"
)

// PayloadKind distinguishes text from binary route messages.
type PayloadKind int

const (
	PayloadText PayloadKind = iota
	PayloadBinary
)

// String returns the wire name of the kind.
func (k PayloadKind) String() string {
	if k == PayloadBinary {
		return "binary"
	}
	return "text"
}

// RouteMessage is one unit of data bound for a media route.
// Fields are unexported so a message cannot change after construction.
type RouteMessage struct {
	id        uuid.UUID
	routeID   string
	kind      PayloadKind
	text      string
	data      []byte
	createdAt time.Time
}

// NewTextMessage creates a text message for routeID.
func NewTextMessage(routeID, text string) RouteMessage {
	return RouteMessage{
		id:        uuid.New(),
		routeID:   routeID,
		kind:      PayloadText,
		text:      text,
		createdAt: time.Now(),
	}
}

// NewBinaryMessage creates a binary message for routeID. The buffer is copied.
func NewBinaryMessage(routeID string, data []byte) RouteMessage {
	buf := make([]byte, len(data))
	copy(buf, data)
	return RouteMessage{
		id:        uuid.New(),
		routeID:   routeID,
		kind:      PayloadBinary,
		data:      buf,
		createdAt: time.Now(),
	}
}

// RestoreTextMessage rebuilds a text message from persisted fields.
func RestoreTextMessage(id uuid.UUID, routeID, text string, createdAt time.Time) RouteMessage {
	if id == uuid.Nil {
		id = uuid.New()
	}
	return RouteMessage{
		id:        id,
		routeID:   routeID,
		kind:      PayloadText,
		text:      text,
		createdAt: createdAt,
	}
}

func (m RouteMessage) ID() uuid.UUID        { return m.id }
func (m RouteMessage) RouteID() string      { return m.routeID }
func (m RouteMessage) Kind() PayloadKind    { return m.kind }
func (m RouteMessage) CreatedAt() time.Time { return m.createdAt }

// IsBinary reports whether the payload is an opaque buffer.
func (m RouteMessage) IsBinary() bool {
	return m.kind == PayloadBinary
}

// Text returns the text payload, or "" for binary messages.
func (m RouteMessage) Text() string {
	return m.text
}

// Data returns a copy of the binary payload, or nil for text messages.
func (m RouteMessage) Data() []byte {
	if m.data == nil {
		return nil
	}
	buf := make([]byte, len(m.data))
	copy(buf, m.data)
	return buf
}

// CharLen returns the length of a text payload in UTF-16 code units.
// Binary messages report 0.
func (m RouteMessage) CharLen() int {
	if m.kind == PayloadBinary {
		return 0
	}
	n := 0
	for _, r := range m.text {
		n += utf16.RuneLen(r)
	}
	return n
}

// ByteLen returns the payload size in bytes.
func (m RouteMessage) ByteLen() int {
	if m.kind == PayloadBinary {
		return len(m.data)
	}
	return len(m.text)
}
