package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"livelist/internal/list/model"
	"livelist/internal/list/mutate"
)

type Type string

const (
	TypeInit        Type = "init"
	TypePresence    Type = "presence"
	TypeListUpdate  Type = "list_update"
	TypeItemAdd     Type = "item_add"
	TypeItemUpdate  Type = "item_update"
	TypeItemDelete  Type = "item_delete"
	TypeItemToggle  Type = "item_toggle"
	TypeTypingStart Type = "typing_start"
	TypeTypingStop  Type = "typing_stop"
)

var (
	ErrMalformed   = errors.New("malformed message")
	ErrUnknownType = errors.New("unknown message type")
)

// Envelope is the JSON frame exchanged over the socket. Sender is attached
// by the server and absent on frames sent by clients.
type Envelope struct {
	Type   Type                `json:"type"`
	Data   json.RawMessage     `json:"data,omitempty"`
	Sender *model.PresenceUser `json:"sender,omitempty"`
}

// Message is the closed set of payloads. Only types in this package implement it.
type Message interface {
	Type() Type
	payload() any
}

type Init struct{ List *model.List }
type Presence struct{ Users []model.PresenceUser }
type ListUpdate struct{ List model.List }
type ItemAdd struct{ Item model.Item }
type ItemUpdate struct{ Patch model.ItemPatch }
type ItemDelete struct{ ID model.ItemID }
type ItemToggle struct{ ID model.ItemID }
type TypingStart struct{}
type TypingStop struct{}

func (Init) Type() Type        { return TypeInit }
func (Presence) Type() Type    { return TypePresence }
func (ListUpdate) Type() Type  { return TypeListUpdate }
func (ItemAdd) Type() Type     { return TypeItemAdd }
func (ItemUpdate) Type() Type  { return TypeItemUpdate }
func (ItemDelete) Type() Type  { return TypeItemDelete }
func (ItemToggle) Type() Type  { return TypeItemToggle }
func (TypingStart) Type() Type { return TypeTypingStart }
func (TypingStop) Type() Type  { return TypeTypingStop }

func (m Init) payload() any { return m.List }
func (m Presence) payload() any {
	if m.Users == nil {
		return []model.PresenceUser{}
	}
	return m.Users
}
func (m ListUpdate) payload() any  { return m.List }
func (m ItemAdd) payload() any     { return m.Item }
func (m ItemUpdate) payload() any  { return m.Patch }
func (m ItemDelete) payload() any  { return model.ItemRef{ID: m.ID} }
func (m ItemToggle) payload() any  { return model.ItemRef{ID: m.ID} }
func (TypingStart) payload() any   { return struct{}{} }
func (TypingStop) payload() any    { return struct{}{} }

// Frame is a decoded envelope. Data keeps the raw payload bytes so a
// message can be relayed exactly as it was received.
type Frame struct {
	Message Message
	Data    json.RawMessage
	Sender  *model.PresenceUser
}

func (f Frame) Type() Type { return f.Message.Type() }

// Encode serializes msg with an optional sender.
func Encode(msg Message, sender *model.PresenceUser) ([]byte, error) {
	data, err := json.Marshal(msg.payload())
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", msg.Type(), err)
	}
	return json.Marshal(Envelope{Type: msg.Type(), Data: data, Sender: sender})
}

// Relay re-encodes a received frame with the given sender, keeping its payload bytes.
func Relay(f Frame, sender *model.PresenceUser) ([]byte, error) {
	data := f.Data
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	return json.Marshal(Envelope{Type: f.Type(), Data: data, Sender: sender})
}

// Decode parses a frame and its payload into the concrete message type.
func Decode(raw []byte) (Frame, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	msg, err := decodePayload(env.Type, env.Data)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Message: msg, Data: env.Data, Sender: env.Sender}, nil
}

func decodePayload(t Type, data json.RawMessage) (Message, error) {
	switch t {
	case TypeInit:
		var l *model.List
		if err := unmarshalData(data, &l); err != nil {
			return nil, err
		}
		return Init{List: l}, nil
	case TypePresence:
		var users []model.PresenceUser
		if err := unmarshalData(data, &users); err != nil {
			return nil, err
		}
		return Presence{Users: users}, nil
	case TypeListUpdate:
		var l *model.List
		if err := unmarshalData(data, &l); err != nil {
			return nil, err
		}
		if l == nil {
			return nil, fmt.Errorf("%w: list_update without a list", ErrMalformed)
		}
		return ListUpdate{List: *l}, nil
	case TypeItemAdd:
		var it model.Item
		if err := requireData(data, &it); err != nil {
			return nil, err
		}
		return ItemAdd{Item: it}, nil
	case TypeItemUpdate:
		var p model.ItemPatch
		if err := requireData(data, &p); err != nil {
			return nil, err
		}
		return ItemUpdate{Patch: p}, nil
	case TypeItemDelete:
		var ref model.ItemRef
		if err := requireData(data, &ref); err != nil {
			return nil, err
		}
		return ItemDelete{ID: ref.ID}, nil
	case TypeItemToggle:
		var ref model.ItemRef
		if err := requireData(data, &ref); err != nil {
			return nil, err
		}
		return ItemToggle{ID: ref.ID}, nil
	case TypeTypingStart:
		return TypingStart{}, nil
	case TypeTypingStop:
		return TypingStop{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
}

func unmarshalData(data json.RawMessage, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func requireData(data json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fmt.Errorf("%w: missing data", ErrMalformed)
	}
	return unmarshalData(data, v)
}

// IsClientType reports whether clients may send t. init and presence originate
// only from the server.
func IsClientType(t Type) bool {
	switch t {
	case TypeListUpdate, TypeItemAdd, TypeItemUpdate, TypeItemDelete, TypeItemToggle,
		TypeTypingStart, TypeTypingStop:
		return true
	}
	return false
}

// ItemOp maps an item_* message to the shared mutation it performs.
func ItemOp(m Message) (mutate.Op, bool) {
	switch v := m.(type) {
	case ItemAdd:
		return mutate.Op{Kind: mutate.OpAdd, Item: v.Item}, true
	case ItemUpdate:
		return mutate.Op{Kind: mutate.OpUpdate, Patch: v.Patch}, true
	case ItemDelete:
		return mutate.Op{Kind: mutate.OpDelete, ID: v.ID}, true
	case ItemToggle:
		return mutate.Op{Kind: mutate.OpToggle, ID: v.ID}, true
	}
	return mutate.Op{}, false
}
