package ot

// Event is one of Edit, Join or Leave: the three kinds of activity a
// relay may broadcast to connected participants.
type Event interface {
	// Transform rewrites the receiver to account for `other` having
	// already been applied locally. Only Edit does anything; Join and
	// Leave transforms are no-ops.
	Transform(other Event) Event

	isEvent()
}

// Edit bundles the operations describing a single atomic change to the
// document, all authored by the same participant.
type Edit struct {
	Author     ParticipantId
	Operations []Operation
}

// Join announces that a new participant has connected.
type Join struct {
	ID ParticipantId
}

// Leave announces that a participant has disconnected.
type Leave struct {
	ID ParticipantId
}

func (Edit) isEvent()  {}
func (Join) isEvent()  {}
func (Leave) isEvent() {}

// Transform implements Event.Transform for Edit. If other is not an
// Edit this is a no-op. Otherwise each operation of other is applied,
// in order, to rewrite the receiver's operation list: every operation
// currently held transforms against the next concurrent operation,
// and the results replace the list before moving on to the following
// concurrent operation. Priority is decided by comparing author ids:
// the lower id wins ties.
func (e Edit) Transform(other Event) Event {
	otherEdit, ok := other.(Edit)
	if !ok {
		return e
	}

	hasPriority := e.Author < otherEdit.Author
	ops := e.Operations

	for _, concurrent := range otherEdit.Operations {
		next := make([]Operation, 0, len(ops))

		for _, op := range ops {
			next = append(next, op.Transform(concurrent, hasPriority)...)
		}

		ops = next
	}

	e.Operations = ops

	return e
}

// Transform implements Event.Transform for Join: always a no-op.
func (j Join) Transform(Event) Event {
	return j
}

// Transform implements Event.Transform for Leave: always a no-op.
func (l Leave) Transform(Event) Event {
	return l
}
