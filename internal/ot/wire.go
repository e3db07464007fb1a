package ot

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownTag is returned when decoding a frame whose externally
// tagged variant is not one of the recognized names. It is fatal for
// the connection (spec §7): the peer is speaking a protocol we don't
// understand.
var ErrUnknownTag = errors.New("ot: unknown tag in wire message")

type insertPayload struct {
	Pos     uint32 `json:"pos"`
	Content string `json:"content"`
}

type deletePayload struct {
	Start uint32 `json:"start"`
	End   uint32 `json:"end"`
}

type moveCursorPayload struct {
	Pos uint32 `json:"pos"`
}

// MarshalJSON implements the externally tagged {"Insert":{...}} shape.
func (op Insert) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]insertPayload{
		"Insert": {Pos: op.Pos, Content: op.Content},
	})
}

// MarshalJSON implements the externally tagged {"Delete":{...}} shape.
func (op Delete) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]deletePayload{
		"Delete": {Start: op.Start, End: op.End},
	})
}

// MarshalJSON implements the externally tagged {"MoveCursor":{...}} shape.
func (op MoveCursor) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]moveCursorPayload{
		"MoveCursor": {Pos: op.Pos},
	})
}

// UnmarshalOperation decodes a single externally tagged operation.
// Unrecognized tags return ErrUnknownTag.
func UnmarshalOperation(data []byte) (Operation, error) {
	var raw map[string]json.RawMessage

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	if len(raw) != 1 {
		return nil, ErrUnknownTag
	}

	for tag, payload := range raw {
		switch tag {
		case "Insert":
			var p insertPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return nil, err
			}

			return Insert{Pos: p.Pos, Content: p.Content}, nil
		case "Delete":
			var p deletePayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return nil, err
			}

			return Delete{Start: p.Start, End: p.End}, nil
		case "MoveCursor":
			var p moveCursorPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return nil, err
			}

			return MoveCursor{Pos: p.Pos}, nil
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownTag, tag)
		}
	}

	return nil, ErrUnknownTag
}

type editPayload struct {
	Author     ParticipantId `json:"author"`
	Operations []Operation   `json:"operations"`
}

type editDecodePayload struct {
	Author     ParticipantId     `json:"author"`
	Operations []json.RawMessage `json:"operations"`
}

type joinLeavePayload struct {
	ID ParticipantId `json:"id"`
}

// MarshalEvent encodes ev in the externally tagged wire shape from
// spec §6 ({"Edit":{...}}, {"Join":{...}}, {"Leave":{...}}).
func MarshalEvent(ev Event) ([]byte, error) {
	switch ev := ev.(type) {
	case Edit:
		return json.Marshal(map[string]editPayload{
			"Edit": {Author: ev.Author, Operations: ev.Operations},
		})
	case Join:
		return json.Marshal(map[string]joinLeavePayload{"Join": {ID: ev.ID}})
	case Leave:
		return json.Marshal(map[string]joinLeavePayload{"Leave": {ID: ev.ID}})
	default:
		return nil, fmt.Errorf("ot: cannot marshal event of type %T", ev)
	}
}

// UnmarshalEvent decodes a single externally tagged event. Unrecognized
// tags return ErrUnknownTag.
func UnmarshalEvent(data []byte) (Event, error) {
	var raw map[string]json.RawMessage

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	if len(raw) != 1 {
		return nil, ErrUnknownTag
	}

	for tag, payload := range raw {
		switch tag {
		case "Edit":
			var p editDecodePayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return nil, err
			}

			ops := make([]Operation, len(p.Operations))

			for i, raw := range p.Operations {
				op, err := UnmarshalOperation(raw)
				if err != nil {
					return nil, err
				}

				ops[i] = op
			}

			return Edit{Author: p.Author, Operations: ops}, nil
		case "Join":
			var p joinLeavePayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return nil, err
			}

			return Join{ID: p.ID}, nil
		case "Leave":
			var p joinLeavePayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return nil, err
			}

			return Leave{ID: p.ID}, nil
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownTag, tag)
		}
	}

	return nil, ErrUnknownTag
}

// wireParticipant is the {"id":<u32>,"cursor_pos":<u32>} shape.
type wireParticipant struct {
	ID        ParticipantId `json:"id"`
	CursorPos uint32        `json:"cursor_pos"`
}

// wireDocument is the {"content":<string>,"participants":[...]} shape.
type wireDocument struct {
	Content      string            `json:"content"`
	Participants []wireParticipant `json:"participants"`
}

// MarshalJSON implements the {"content":...,"participants":[...]} shape.
func (d Document) MarshalJSON() ([]byte, error) {
	out := wireDocument{Content: d.Content, Participants: make([]wireParticipant, len(d.Participants))}

	for i, p := range d.Participants {
		out.Participants[i] = wireParticipant{ID: p.ID, CursorPos: p.CursorPos}
	}

	return json.Marshal(out)
}

// UnmarshalJSON implements the {"content":...,"participants":[...]} shape.
func (d *Document) UnmarshalJSON(data []byte) error {
	var in wireDocument

	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	d.Content = in.Content
	d.Participants = make([]Participant, len(in.Participants))

	for i, p := range in.Participants {
		d.Participants[i] = Participant{ID: p.ID, CursorPos: p.CursorPos}
	}

	return nil
}
