package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Server frame discriminators
const (
	KindSync = "sync"
	KindAdd  = "add"
	KindDel  = "del"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrMissingID      = errors.New("frame is missing id")
)

// MessageID is the server-assigned key of a queued message.
type MessageID = string

// Frame is the wire shape of a server frame:
// {"action": "sync"|"add"|"del", "id"?: string, "data"?: object}
type Frame struct {
	Action string          `json:"action"`
	ID     *string         `json:"id,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Event is one decoded server frame. The set of variants is closed:
// SyncEvent, AddEvent, DelEvent and UnknownEvent.
type Event interface {
	Kind() string
	isEvent()
}

// SyncEvent replaces the whole replica
type SyncEvent struct {
	Messages map[MessageID]Record
}

// AddEvent inserts or overwrites one message
type AddEvent struct {
	ID     MessageID
	Record Record
}

// DelEvent removes one message
type DelEvent struct {
	ID MessageID
}

// UnknownEvent carries a frame whose action is not recognized (or missing).
// It is kept so newer servers can talk to older viewers.
type UnknownEvent struct {
	Action string
	Raw    []byte
}

func (SyncEvent) Kind() string      { return KindSync }
func (AddEvent) Kind() string       { return KindAdd }
func (DelEvent) Kind() string       { return KindDel }
func (e UnknownEvent) Kind() string { return e.Action }

func (SyncEvent) isEvent()    {}
func (AddEvent) isEvent()     {}
func (DelEvent) isEvent()     {}
func (UnknownEvent) isEvent() {}

// DecodeEvent parses one inbound text frame.
// Errors wrap ErrMalformedFrame; an unrecognized action is not an error.
func DecodeEvent(data []byte) (Event, error) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch frame.action() {
	case KindSync:
		messages := make(map[MessageID]Record)
		if !isNull(frame.Data) {
			if err := json.Unmarshal(frame.Data, &messages); err != nil {
				return nil, fmt.Errorf("%w: sync data: %v", ErrMalformedFrame, err)
			}
		}
		for id, rec := range messages {
			if rec == nil {
				messages[id] = Record{}
			}
		}
		return SyncEvent{Messages: messages}, nil

	case KindAdd:
		if frame.ID == nil {
			return nil, fmt.Errorf("%w: add: %w", ErrMalformedFrame, ErrMissingID)
		}
		rec := Record{}
		if !isNull(frame.Data) {
			if err := json.Unmarshal(frame.Data, &rec); err != nil {
				return nil, fmt.Errorf("%w: add data: %v", ErrMalformedFrame, err)
			}
			if rec == nil {
				rec = Record{}
			}
		}
		return AddEvent{ID: *frame.ID, Record: rec}, nil

	case KindDel:
		if frame.ID == nil {
			return nil, fmt.Errorf("%w: del: %w", ErrMalformedFrame, ErrMissingID)
		}
		return DelEvent{ID: *frame.ID}, nil

	default:
		raw := make([]byte, len(data))
		copy(raw, data)
		return UnknownEvent{Action: frame.action(), Raw: raw}, nil
	}
}

// inboundFrame is Frame with the discriminator left undecoded, so a
// non-string action lands in UnknownEvent instead of failing the frame.
type inboundFrame struct {
	Action json.RawMessage `json:"action"`
	ID     *string         `json:"id"`
	Data   json.RawMessage `json:"data"`
}

// action returns the discriminator. Non-string values come back as their
// JSON text, which never matches a known kind.
func (f inboundFrame) action() string {
	if isNull(f.Action) {
		return ""
	}
	var name string
	if err := json.Unmarshal(f.Action, &name); err != nil {
		return string(bytes.TrimSpace(f.Action))
	}
	return name
}

// EncodeEvent builds the server frame for an event.
func EncodeEvent(ev Event) ([]byte, error) {
	switch e := ev.(type) {
	case SyncEvent:
		messages := e.Messages
		if messages == nil {
			messages = map[MessageID]Record{}
		}
		data, err := json.Marshal(messages)
		if err != nil {
			return nil, err
		}
		return json.Marshal(Frame{Action: KindSync, Data: data})
	case AddEvent:
		rec := e.Record
		if rec == nil {
			rec = Record{}
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		id := e.ID
		return json.Marshal(Frame{Action: KindAdd, ID: &id, Data: data})
	case DelEvent:
		id := e.ID
		return json.Marshal(Frame{Action: KindDel, ID: &id, Data: json.RawMessage("{}")})
	case UnknownEvent:
		if len(e.Raw) > 0 {
			return e.Raw, nil
		}
		return json.Marshal(Frame{Action: e.Action})
	default:
		return nil, fmt.Errorf("unsupported event type %T", ev)
	}
}

func isNull(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
