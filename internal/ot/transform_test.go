package ot_test

import (
	"testing"

	"github.com/tamawiki/collab/internal/ot"
)

func TestTransformInsertsSamePointPriority(t *testing.T) {
	t.Parallel()

	base := ot.Insert{Pos: 5, Content: "Test"}
	concurrent := ot.Insert{Pos: 5, Content: "foo"}

	// author 1 has priority over author 2.
	got := base.Transform(concurrent, true)
	want := []ot.Operation{ot.Insert{Pos: 8, Content: "Test"}}

	if !equalOps(got, want) {
		t.Errorf("with priority: got %v, want %v", got, want)
	}

	// Reverse authors: base no longer has priority, stays put.
	got = base.Transform(concurrent, false)
	want = []ot.Operation{ot.Insert{Pos: 5, Content: "Test"}}

	if !equalOps(got, want) {
		t.Errorf("without priority: got %v, want %v", got, want)
	}
}

func TestTransformDeleteInsertSameStartPositionSplits(t *testing.T) {
	t.Parallel()

	del := ot.Delete{Start: 2, End: 4}
	ins := ot.Insert{Pos: 2, Content: "cd"}

	got := del.Transform(ins, false)
	want := []ot.Operation{
		ot.Delete{Start: 4, End: 6},
		ot.Delete{Start: 2, End: 2},
	}

	if !equalOps(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTransformDeleteInsertEmptyRangeNotSplit(t *testing.T) {
	t.Parallel()

	del := ot.Delete{Start: 2, End: 2}
	ins := ot.Insert{Pos: 2, Content: "cd"}

	got := del.Transform(ins, false)
	want := []ot.Operation{ot.Delete{Start: 4, End: 4}}

	if !equalOps(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTransformInsertVsDelete(t *testing.T) {
	t.Parallel()

	ins := ot.Insert{Pos: 5, Content: "x"}
	del := ot.Delete{Start: 1, End: 3}

	got := ins.Transform(del, false)
	want := []ot.Operation{ot.Insert{Pos: 3, Content: "x"}}

	if !equalOps(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTransformDeleteVsDelete(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		this, that ot.Delete
		want       ot.Delete
	}{
		{"before", ot.Delete{Start: 5, End: 7}, ot.Delete{Start: 0, End: 2}, ot.Delete{Start: 3, End: 5}},
		{"after", ot.Delete{Start: 0, End: 2}, ot.Delete{Start: 5, End: 7}, ot.Delete{Start: 0, End: 2}},
		{"overlap-front", ot.Delete{Start: 2, End: 6}, ot.Delete{Start: 0, End: 4}, ot.Delete{Start: 0, End: 2}},
		{"identical", ot.Delete{Start: 2, End: 4}, ot.Delete{Start: 2, End: 4}, ot.Delete{Start: 2, End: 2}},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := tc.this.Transform(tc.that, false)
			want := []ot.Operation{tc.want}

			if !equalOps(got, want) {
				t.Errorf("got %v, want %v", got, want)
			}
		})
	}
}

func TestTransformMoveCursorVsInsertTieStaysPut(t *testing.T) {
	t.Parallel()

	cursor := ot.MoveCursor{Pos: 5}
	ins := ot.Insert{Pos: 5, Content: "hi"}

	got := cursor.Transform(ins, true)
	want := []ot.Operation{ot.MoveCursor{Pos: 5}}

	if !equalOps(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTransformMoveCursorVsDelete(t *testing.T) {
	t.Parallel()

	cursor := ot.MoveCursor{Pos: 5}
	del := ot.Delete{Start: 1, End: 4}

	got := cursor.Transform(del, false)
	want := []ot.Operation{ot.MoveCursor{Pos: 2}}

	if !equalOps(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTransformPrioritySymmetry(t *testing.T) {
	t.Parallel()

	// Property 4: for concurrent a (author 1), b (author 2), applying
	// transform(b, a, false) after a and transform(a, b, true) after b
	// must produce equal content.
	base := ot.NewModel()
	base.LoadDocument(0, ot.Document{
		Content: "ab",
		Participants: []ot.Participant{
			{ID: 1, CursorPos: 0},
			{ID: 2, CursorPos: 0},
		},
	})

	a := ot.Delete{Start: 0, End: 1}
	b := ot.Insert{Pos: 1, Content: "c"}

	aPrime := a.Transform(b, true)  // author 1 < author 2: a has priority
	bPrime := b.Transform(a, false) // author 2 has no priority

	docA := ot.NewModel()
	docA.LoadDocument(0, ot.Document{Content: "ab", Participants: []ot.Participant{{ID: 1}, {ID: 2}}})

	if err := docA.ApplyEvent(1, ot.Edit{Author: 1, Operations: []ot.Operation{a}}); err != nil {
		t.Fatalf("apply a: %v", err)
	}

	for _, op := range bPrime {
		if err := docA.ApplyEvent(2, ot.Edit{Author: 2, Operations: []ot.Operation{op}}); err != nil {
			t.Fatalf("apply b': %v", err)
		}
	}

	docB := ot.NewModel()
	docB.LoadDocument(0, ot.Document{Content: "ab", Participants: []ot.Participant{{ID: 1}, {ID: 2}}})

	if err := docB.ApplyEvent(1, ot.Edit{Author: 2, Operations: []ot.Operation{b}}); err != nil {
		t.Fatalf("apply b: %v", err)
	}

	for _, op := range aPrime {
		if err := docB.ApplyEvent(2, ot.Edit{Author: 1, Operations: []ot.Operation{op}}); err != nil {
			t.Fatalf("apply a': %v", err)
		}
	}

	if docA.Value() != docB.Value() {
		t.Errorf("convergence failed: %q vs %q", docA.Value(), docB.Value())
	}
}

func equalOps(a, b []ot.Operation) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
