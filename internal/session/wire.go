package session

import (
	"encoding/json"
	"fmt"

	"github.com/tamawiki/collab/internal/ot"
)

type clientEditPayload struct {
	ParentSeq  uint64        `json:"parent_seq"`
	ClientSeq  uint64        `json:"client_seq"`
	Operations []ot.Operation `json:"operations"`
}

type clientEditDecodePayload struct {
	ParentSeq  uint64            `json:"parent_seq"`
	ClientSeq  uint64            `json:"client_seq"`
	Operations []json.RawMessage `json:"operations"`
}

type connectedPayload struct {
	ID ot.ParticipantId `json:"id"`
}

type serverEventDecodePayload struct {
	Seq       uint64          `json:"seq"`
	ClientSeq uint64          `json:"client_seq"`
	Event     json.RawMessage `json:"event"`
}

// eventJSON adapts ot.Event (which has no MarshalJSON method of its
// own, since Edit/Join/Leave dispatch through ot.MarshalEvent) to the
// json.Marshaler interface so it composes into ServerEvent's wire payload.
type eventJSON struct{ ot.Event }

func (e eventJSON) MarshalJSON() ([]byte, error) {
	return ot.MarshalEvent(e.Event)
}

// MarshalJSON implements the {"ClientEdit":{...}} shape from spec §6.
func (c ClientEdit) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]clientEditPayload{
		"ClientEdit": {ParentSeq: c.ParentSeq, ClientSeq: c.ClientSeq, Operations: c.Operations},
	})
}

// MarshalJSON implements the {"Connected":{"id":...}} shape.
func (c Connected) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]connectedPayload{"Connected": {ID: c.ID}})
}

// MarshalJSON implements the {"Event":{"seq":...,"client_seq":...,"event":...}} shape.
func (s ServerEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]struct {
		Seq       uint64    `json:"seq"`
		ClientSeq uint64    `json:"client_seq"`
		Event     eventJSON `json:"event"`
	}{
		"Event": {Seq: s.Seq, ClientSeq: s.ClientSeq, Event: eventJSON{s.Event}},
	})
}

// UnmarshalClientMessage decodes a single externally tagged
// ClientMessage frame. Unrecognized tags return ot.ErrUnknownTag.
func UnmarshalClientMessage(data []byte) (ClientMessage, error) {
	var raw map[string]json.RawMessage

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	if len(raw) != 1 {
		return nil, ot.ErrUnknownTag
	}

	for tag, payload := range raw {
		switch tag {
		case "ClientEdit":
			var p clientEditDecodePayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return nil, err
			}

			ops := make([]ot.Operation, len(p.Operations))

			for i, raw := range p.Operations {
				op, err := ot.UnmarshalOperation(raw)
				if err != nil {
					return nil, err
				}

				ops[i] = op
			}

			return ClientEdit{ParentSeq: p.ParentSeq, ClientSeq: p.ClientSeq, Operations: ops}, nil
		default:
			return nil, fmt.Errorf("%w: %q", ot.ErrUnknownTag, tag)
		}
	}

	return nil, ot.ErrUnknownTag
}

// UnmarshalServerMessage decodes a single externally tagged
// ServerMessage frame. Unrecognized tags return ot.ErrUnknownTag.
func UnmarshalServerMessage(data []byte) (ServerMessage, error) {
	var raw map[string]json.RawMessage

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	if len(raw) != 1 {
		return nil, ot.ErrUnknownTag
	}

	for tag, payload := range raw {
		switch tag {
		case "Connected":
			var p connectedPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return nil, err
			}

			return Connected{ID: p.ID}, nil
		case "Event":
			var p serverEventDecodePayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return nil, err
			}

			ev, err := ot.UnmarshalEvent(p.Event)
			if err != nil {
				return nil, err
			}

			return ServerEvent{Seq: p.Seq, ClientSeq: p.ClientSeq, Event: ev}, nil
		default:
			return nil, fmt.Errorf("%w: %q", ot.ErrUnknownTag, tag)
		}
	}

	return nil, ot.ErrUnknownTag
}
