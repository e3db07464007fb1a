// Package session implements the client session state machine: the
// outbound operation queue, the list of sent-but-unacknowledged
// ClientEdits, and the sequence-number discipline that reconciles
// local edits with events received from the relay (see spec §4.5).
package session

import "github.com/tamawiki/collab/internal/ot"

// ClientEdit is a batch of locally authored operations the client has
// sent to the relay but does not yet know the relay's ordering for.
// ParentSeq is the last server sequence number the client had
// observed when it built the batch.
type ClientEdit struct {
	ParentSeq  uint64
	ClientSeq  uint64
	Operations []ot.Operation
}

// ServerEvent is a single relay-sequenced Event. ClientSeq echoes the
// client sequence number this event acknowledges, or 0 if it
// acknowledges none (the event did not originate from this client).
type ServerEvent struct {
	Seq       uint64
	ClientSeq uint64
	Event     ot.Event
}

// Connected is delivered exactly once, as the first ServerMessage on a
// connection, carrying the participant id the relay assigned to us.
type Connected struct {
	ID ot.ParticipantId
}

// ClientMessage is a message the client may send to the relay. Today
// ClientEdit is the only variant, but the wire format is externally
// tagged specifically so more can be added without breaking decoders.
type ClientMessage interface {
	isClientMessage()
}

// ServerMessage is a message the relay may send to a connected client.
type ServerMessage interface {
	isServerMessage()
}

func (ClientEdit) isClientMessage() {}

func (Connected) isServerMessage()   {}
func (ServerEvent) isServerMessage() {}
