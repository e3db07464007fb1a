package ot

import "errors"

// Sentinel errors produced while validating or applying an Event
// against a Model. Exactly these two kinds exist at the application
// layer; UnknownTag (internal/ot/wire.go) is a decode-time error.
var (
	// ErrOutsideDocument means an operation references an index beyond
	// the document's current content length.
	ErrOutsideDocument = errors.New("ot: operation falls outside the document")

	// ErrInvalidOperation means an operation is structurally invalid
	// (a Delete with Start > End) or an event references a
	// participant id that cannot accept it (a Join for an id already
	// present, a Leave or Edit for an id that is not a participant).
	ErrInvalidOperation = errors.New("ot: invalid operation")
)

// Participant is a participant's id and cursor position, the unit the
// wire format and Document value both use to describe the roster.
type Participant struct {
	ID        ParticipantId
	CursorPos uint32
}

// Document is the wire-level snapshot of a document's state: its
// content plus the roster of participants currently editing it. It is
// a value type used to seed a Model (via LoadDocument) or to describe
// state over the wire; it does not itself enforce any invariants.
type Document struct {
	Content      string
	Participants []Participant
}

// Model is the authoritative local content model: the document text
// plus every participant's cursor position. Model takes no lock of its
// own; a caller that shares one across goroutines must guard it, as
// internal/relay does with each room's mutex.
type Model struct {
	content      []rune
	participants map[ParticipantId]uint32
	seq          uint64
	localID      *ParticipantId
}

// NewModel creates an empty Model. Call LoadDocument before using it.
func NewModel() *Model {
	return &Model{
		participants: make(map[ParticipantId]uint32),
	}
}

// LoadDocument initializes the content and participant roster from doc
// and sets the current sequence number to seq.
func (m *Model) LoadDocument(seq uint64, doc Document) {
	m.content = []rune(doc.Content)
	m.participants = make(map[ParticipantId]uint32, len(doc.Participants))

	for _, p := range doc.Participants {
		m.participants[p.ID] = p.CursorPos
	}

	m.seq = seq
}

// SetLocalParticipant records which participant id is this client's
// own. It may only be called once, on Connected; a second call
// indicates a protocol error from the caller.
func (m *Model) SetLocalParticipant(id ParticipantId) error {
	if m.localID != nil {
		return ErrInvalidOperation
	}

	m.localID = &id

	return nil
}

// LocalParticipant returns the local participant id, if SetLocalParticipant
// has been called.
func (m *Model) LocalParticipant() (ParticipantId, bool) {
	if m.localID == nil {
		return 0, false
	}

	return *m.localID, true
}

// Seq returns the last sequence number this Model has observed.
func (m *Model) Seq() uint64 {
	return m.seq
}

// Value returns the current document content.
func (m *Model) Value() string {
	return string(m.content)
}

// ParticipantPosition returns a participant's cursor position and
// whether that participant is currently known.
func (m *Model) ParticipantPosition(id ParticipantId) (uint32, bool) {
	pos, ok := m.participants[id]

	return pos, ok
}

// SetParticipantPosition updates a participant's cursor bookmark
// directly, bypassing the event pipeline (used when the local content
// layer moves its own cursor without an accompanying Edit operation).
func (m *Model) SetParticipantPosition(id ParticipantId, pos uint32) error {
	if _, ok := m.participants[id]; !ok {
		return ErrInvalidOperation
	}

	m.participants[id] = pos

	return nil
}

// AddParticipant adds a new participant at the given cursor position
// and advances seq. It fails with ErrInvalidOperation if id is already
// a participant.
func (m *Model) AddParticipant(seq uint64, id ParticipantId, cursorPos uint32) error {
	if _, exists := m.participants[id]; exists {
		return ErrInvalidOperation
	}

	m.participants[id] = cursorPos
	m.seq = seq

	return nil
}

// RemoveParticipant removes a participant and advances seq. It fails
// with ErrInvalidOperation if id is not a participant.
func (m *Model) RemoveParticipant(seq uint64, id ParticipantId) error {
	if _, exists := m.participants[id]; !exists {
		return ErrInvalidOperation
	}

	delete(m.participants, id)
	m.seq = seq

	return nil
}

// CanApply validates ev against the current state without mutating
// anything. A nil return means ApplyEvent is guaranteed to succeed.
func (m *Model) CanApply(ev Event) error {
	switch ev := ev.(type) {
	case Join:
		if _, exists := m.participants[ev.ID]; exists {
			return ErrInvalidOperation
		}

		return nil
	case Leave:
		if _, exists := m.participants[ev.ID]; !exists {
			return ErrInvalidOperation
		}

		return nil
	case Edit:
		return m.canApplyEdit(ev)
	default:
		return ErrInvalidOperation
	}
}

func (m *Model) canApplyEdit(edit Edit) error {
	if _, ok := m.participants[edit.Author]; !ok {
		return ErrInvalidOperation
	}

	length := uint32(len(m.content))

	for _, op := range edit.Operations {
		if !IsValid(op) {
			return ErrInvalidOperation
		}

		switch op := op.(type) {
		case Insert:
			if op.Pos > length {
				return ErrOutsideDocument
			}

			length += uint32(runeLen(op.Content))
		case Delete:
			if op.Start > length || op.End > length {
				return ErrOutsideDocument
			}

			length -= op.End - op.Start
		case MoveCursor:
			if op.Pos > length {
				return ErrOutsideDocument
			}
		}
	}

	return nil
}

// ApplyEvent validates ev with CanApply and, on success, mutates the
// model and advances seq. On failure no byte of content and no
// participant's cursor changes.
func (m *Model) ApplyEvent(seq uint64, ev Event) error {
	if err := m.CanApply(ev); err != nil {
		return err
	}

	switch ev := ev.(type) {
	case Join:
		// A freshly joined remote participant has not placed a cursor
		// yet; it starts at the top of the document.
		m.participants[ev.ID] = 0
	case Leave:
		delete(m.participants, ev.ID)
	case Edit:
		for _, op := range ev.Operations {
			m.performOperation(ev.Author, op)
		}
	}

	m.seq = seq

	return nil
}

// performOperation mutates content and cursors for a single operation
// that has already been validated by CanApply.
func (m *Model) performOperation(author ParticipantId, op Operation) {
	switch op := op.(type) {
	case Insert:
		m.performInsert(author, op)
	case Delete:
		m.performDelete(author, op)
	case MoveCursor:
		m.performMoveCursor(author, op)
	}
}

func (m *Model) performInsert(author ParticipantId, op Insert) {
	chars := []rune(op.Content)
	pos := int(op.Pos)

	next := make([]rune, 0, len(m.content)+len(chars))
	next = append(next, m.content[:pos]...)
	next = append(next, chars...)
	next = append(next, m.content[pos:]...)
	m.content = next

	length := uint32(len(chars))

	for id, cursor := range m.participants {
		switch {
		case id == author:
			m.participants[id] = op.Pos + length
		case cursor > op.Pos:
			m.participants[id] = cursor + length
		}
	}
}

func (m *Model) performDelete(author ParticipantId, op Delete) {
	start, end := int(op.Start), int(op.End)

	next := make([]rune, 0, len(m.content)-(end-start))
	next = append(next, m.content[:start]...)
	next = append(next, m.content[end:]...)
	m.content = next

	for id, cursor := range m.participants {
		switch {
		case id == author:
			m.participants[id] = op.Start
		case cursor > op.Start:
			m.participants[id] = cursor - (minU32(op.End, cursor) - op.Start)
		}
	}
}

func (m *Model) performMoveCursor(author ParticipantId, op MoveCursor) {
	if _, ok := m.participants[author]; ok {
		m.participants[author] = op.Pos
	}
}
