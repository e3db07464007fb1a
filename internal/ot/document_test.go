package ot_test

import (
	"errors"
	"testing"

	"github.com/tamawiki/collab/internal/ot"
	"github.com/stretchr/testify/require"
)

func TestApplyInsertAtEnd(t *testing.T) {
	t.Parallel()

	m := ot.NewModel()
	m.LoadDocument(0, ot.Document{
		Content:      "Foo Bar",
		Participants: []ot.Participant{{ID: 1, CursorPos: 0}},
	})

	err := m.ApplyEvent(1, ot.Edit{
		Author:     1,
		Operations: []ot.Operation{ot.Insert{Pos: 7, Content: " Baz"}},
	})
	require.NoError(t, err)

	if m.Value() != "Foo Bar Baz" {
		t.Errorf("content: got %q", m.Value())
	}

	pos, ok := m.ParticipantPosition(1)
	require.True(t, ok)

	if pos != 11 {
		t.Errorf("cursor: got %d, want 11", pos)
	}
}

func TestApplyDeleteOutsideOfBoundsLeavesDocumentUnchanged(t *testing.T) {
	t.Parallel()

	m := ot.NewModel()
	m.LoadDocument(0, ot.Document{
		Content:      "foobar",
		Participants: []ot.Participant{{ID: 1, CursorPos: 0}},
	})

	err := m.ApplyEvent(1, ot.Edit{
		Author:     1,
		Operations: []ot.Operation{ot.Delete{Start: 3, End: 7}},
	})

	if !errors.Is(err, ot.ErrOutsideDocument) {
		t.Fatalf("expected ErrOutsideDocument, got %v", err)
	}

	if m.Value() != "foobar" {
		t.Errorf("content mutated on rejected edit: got %q", m.Value())
	}

	if m.Seq() != 0 {
		t.Errorf("seq advanced on rejected edit: got %d", m.Seq())
	}
}

func TestApplyInsertMovesAnotherParticipantsCursor(t *testing.T) {
	t.Parallel()

	m := ot.NewModel()
	m.LoadDocument(0, ot.Document{
		Content: "",
		Participants: []ot.Participant{
			{ID: 1, CursorPos: 0},
			{ID: 2, CursorPos: 0},
		},
	})

	require.NoError(t, m.ApplyEvent(1, ot.Edit{
		Author:     1,
		Operations: []ot.Operation{ot.Insert{Pos: 0, Content: ", world!"}},
	}))

	require.NoError(t, m.ApplyEvent(2, ot.Edit{
		Author:     2,
		Operations: []ot.Operation{ot.Insert{Pos: 0, Content: "Hello"}},
	}))

	if m.Value() != "Hello, world!" {
		t.Errorf("content: got %q", m.Value())
	}

	pos1, _ := m.ParticipantPosition(1)
	pos2, _ := m.ParticipantPosition(2)

	if pos1 != 13 {
		t.Errorf("participant 1 cursor: got %d, want 13", pos1)
	}

	if pos2 != 5 {
		t.Errorf("participant 2 cursor: got %d, want 5", pos2)
	}
}

func TestApplyDeleteMovesOtherCursorsInsideRangeToStart(t *testing.T) {
	t.Parallel()

	m := ot.NewModel()
	m.LoadDocument(0, ot.Document{
		Content: "hello world",
		Participants: []ot.Participant{
			{ID: 1, CursorPos: 0},
			{ID: 2, CursorPos: 3},
		},
	})

	require.NoError(t, m.ApplyEvent(1, ot.Edit{
		Author:     1,
		Operations: []ot.Operation{ot.Delete{Start: 0, End: 5}},
	}))

	pos2, _ := m.ParticipantPosition(2)
	if pos2 != 0 {
		t.Errorf("participant 2 cursor: got %d, want 0", pos2)
	}
}

func TestCanApplyJoinExistingIdFails(t *testing.T) {
	t.Parallel()

	m := ot.NewModel()
	m.LoadDocument(0, ot.Document{Participants: []ot.Participant{{ID: 1}}})

	err := m.ApplyEvent(1, ot.Join{ID: 1})
	if !errors.Is(err, ot.ErrInvalidOperation) {
		t.Fatalf("expected ErrInvalidOperation, got %v", err)
	}
}

func TestCanApplyLeaveUnknownIdFails(t *testing.T) {
	t.Parallel()

	m := ot.NewModel()
	m.LoadDocument(0, ot.Document{})

	err := m.ApplyEvent(1, ot.Leave{ID: 1})
	if !errors.Is(err, ot.ErrInvalidOperation) {
		t.Fatalf("expected ErrInvalidOperation, got %v", err)
	}
}

func TestCanApplyEditUnknownAuthorFails(t *testing.T) {
	t.Parallel()

	m := ot.NewModel()
	m.LoadDocument(0, ot.Document{Content: "abc"})

	err := m.ApplyEvent(1, ot.Edit{
		Author:     9,
		Operations: []ot.Operation{ot.Insert{Pos: 0, Content: "x"}},
	})
	if !errors.Is(err, ot.ErrInvalidOperation) {
		t.Fatalf("expected ErrInvalidOperation, got %v", err)
	}
}

func TestCanApplyDeleteStartAfterEndIsInvalid(t *testing.T) {
	t.Parallel()

	m := ot.NewModel()
	m.LoadDocument(0, ot.Document{
		Content:      "abc",
		Participants: []ot.Participant{{ID: 1}},
	})

	err := m.ApplyEvent(1, ot.Edit{
		Author:     1,
		Operations: []ot.Operation{ot.Delete{Start: 2, End: 1}},
	})
	if !errors.Is(err, ot.ErrInvalidOperation) {
		t.Fatalf("expected ErrInvalidOperation, got %v", err)
	}
}

func TestJoinAndLeaveRoster(t *testing.T) {
	t.Parallel()

	m := ot.NewModel()
	m.LoadDocument(0, ot.Document{Content: "abc"})

	require.NoError(t, m.ApplyEvent(1, ot.Join{ID: 5}))

	pos, ok := m.ParticipantPosition(5)
	require.True(t, ok)

	if pos != 0 {
		t.Errorf("joined participant cursor: got %d, want 0", pos)
	}

	require.NoError(t, m.ApplyEvent(2, ot.Leave{ID: 5}))

	_, ok = m.ParticipantPosition(5)
	if ok {
		t.Errorf("expected participant 5 to be removed")
	}
}

// Property: length conservation under apply (spec §8 property 1).
func TestPropertyLengthConservation(t *testing.T) {
	t.Parallel()

	m := ot.NewModel()
	m.LoadDocument(0, ot.Document{
		Content:      "hello",
		Participants: []ot.Participant{{ID: 1, CursorPos: 0}},
	})

	before := len([]rune(m.Value()))

	ops := []ot.Operation{
		ot.Insert{Pos: 5, Content: " world"},
		ot.Delete{Start: 0, End: 5},
	}

	require.NoError(t, m.ApplyEvent(1, ot.Edit{Author: 1, Operations: ops}))

	delta := 0
	for _, op := range ops {
		switch op := op.(type) {
		case ot.Insert:
			delta += len([]rune(op.Content))
		case ot.Delete:
			delta -= int(op.End - op.Start)
		}
	}

	after := len([]rune(m.Value()))
	if after != before+delta {
		t.Errorf("length conservation violated: before=%d delta=%d after=%d", before, delta, after)
	}
}

// Property: atomic rejection (spec §8 property 3).
func TestPropertyAtomicRejection(t *testing.T) {
	t.Parallel()

	m := ot.NewModel()
	m.LoadDocument(0, ot.Document{
		Content:      "hello",
		Participants: []ot.Participant{{ID: 1, CursorPos: 2}},
	})

	before := m.Value()
	beforePos, _ := m.ParticipantPosition(1)

	err := m.ApplyEvent(1, ot.Edit{
		Author: 1,
		Operations: []ot.Operation{
			ot.Insert{Pos: 0, Content: "ok "},
			ot.Delete{Start: 100, End: 200},
		},
	})

	if err == nil {
		t.Fatal("expected an error")
	}

	if m.Value() != before {
		t.Errorf("content mutated after rejected edit: got %q, want %q", m.Value(), before)
	}

	afterPos, _ := m.ParticipantPosition(1)
	if afterPos != beforePos {
		t.Errorf("cursor mutated after rejected edit: got %d, want %d", afterPos, beforePos)
	}
}
