package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Timestamp is a point in time carried on the wire as epoch milliseconds.
// Decoding also accepts RFC 3339 strings, which is what browser clients store locally.
type Timestamp int64

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t.UnixMilli())
}

func (t Timestamp) Time() time.Time {
	return time.UnixMilli(int64(t))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("timestamp %q: %w", s, err)
		}
		*t = NewTimestamp(parsed)
		return nil
	}
	var ms float64
	if err := json.Unmarshal(b, &ms); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	*t = Timestamp(int64(ms))
	return nil
}

// ItemID identifies an item within its list. Older clients generated numeric
// ids, so a JSON number is accepted and kept as its decimal string.
type ItemID string

func (id *ItemID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ItemID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("item id: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*id = ItemID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = ItemID(n.String())
	return nil
}

type Item struct {
	ID          ItemID     `json:"id"`
	Text        string     `json:"text"`
	Checked     bool       `json:"checked"`
	CompletedAt *Timestamp `json:"completedAt,omitempty"`
	Order       *int       `json:"order,omitempty"`
}

type List struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Items     []Item    `json:"items"`
	CreatedAt Timestamp `json:"createdAt"`
	UpdatedAt Timestamp `json:"updatedAt"`
}

// Clone returns a copy that shares no item storage with l.
func (l List) Clone() List {
	out := l
	out.Items = make([]Item, len(l.Items))
	for i, it := range l.Items {
		if it.CompletedAt != nil {
			c := *it.CompletedAt
			it.CompletedAt = &c
		}
		if it.Order != nil {
			o := *it.Order
			it.Order = &o
		}
		out.Items[i] = it
	}
	return out
}

// ItemIndex returns the position of the item with the given id, or -1.
func (l List) ItemIndex(id ItemID) int {
	for i := range l.Items {
		if l.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// ItemPatch is the item_update payload; only the fields that are present are merged.
type ItemPatch struct {
	ID      ItemID  `json:"id"`
	Text    *string `json:"text,omitempty"`
	Checked *bool   `json:"checked,omitempty"`
	Order   *int    `json:"order,omitempty"`
}

type ItemRef struct {
	ID ItemID `json:"id"`
}

type PresenceUser struct {
	ID       string    `json:"id"`
	Avatar   string    `json:"avatar"`
	JoinedAt Timestamp `json:"joinedAt"`
}

type TypingUser struct {
	ID        string    `json:"id"`
	Avatar    string    `json:"avatar"`
	StartedAt Timestamp `json:"startedAt"`
}

type CreateRoomResponse struct {
	RoomID string `json:"roomId"`
	ListID string `json:"listId"`
}
