package ot

// minU32 returns the smaller of a and b.
func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}

	return b
}

// Transform implements Operation.Transform for Insert, following the
// Insert-vs-{Insert,Delete,MoveCursor} rules of the transform
// contract: an Insert only ever shifts, it never splits.
func (op Insert) Transform(other Operation, hasPriority bool) []Operation {
	switch other := other.(type) {
	case Insert:
		if other.Pos < op.Pos || (other.Pos == op.Pos && hasPriority) {
			op.Pos += uint32(runeLen(other.Content))
		}

		return []Operation{op}
	case Delete:
		if other.Start < op.Pos {
			op.Pos -= minU32(op.Pos, other.End) - other.Start
		}

		return []Operation{op}
	case MoveCursor:
		return []Operation{op}
	default:
		return []Operation{op}
	}
}

// Transform implements Operation.Transform for Delete. A concurrent
// Insert landing strictly inside a non-empty Delete's range splits it
// into two pieces so the untouched tail is preserved.
func (op Delete) Transform(other Operation, _ bool) []Operation {
	switch other := other.(type) {
	case Insert:
		contentLen := uint32(runeLen(other.Content))

		switch {
		case other.Pos < op.Start:
			op.Start += contentLen
			op.End += contentLen

			return []Operation{op}
		case other.Pos < op.End && op.End > op.Start:
			before := Delete{Start: op.Start, End: other.Pos}
			op.Start = other.Pos + contentLen
			op.End += contentLen

			return []Operation{op, before}
		default:
			return []Operation{op}
		}
	case Delete:
		charsDeletedBefore := overlap(other.Start, other.End, 0, op.Start)
		charsDeletedInside := overlap(other.Start, other.End, op.Start, op.End)
		op.Start -= charsDeletedBefore
		op.End -= charsDeletedBefore + charsDeletedInside

		return []Operation{op}
	case MoveCursor:
		return []Operation{op}
	default:
		return []Operation{op}
	}
}

// Transform implements Operation.Transform for MoveCursor. A cursor
// never gains priority over a peer's concurrent Insert landing at the
// same position: it only shifts for inserts strictly before it.
func (op MoveCursor) Transform(other Operation, _ bool) []Operation {
	switch other := other.(type) {
	case Insert:
		if other.Pos < op.Pos {
			op.Pos += uint32(runeLen(other.Content))
		}

		return []Operation{op}
	case Delete:
		if other.Start < op.Pos {
			op.Pos -= minU32(op.Pos, other.End) - other.Start
		}

		return []Operation{op}
	case MoveCursor:
		return []Operation{op}
	default:
		return []Operation{op}
	}
}

// overlap returns the length of the intersection of [aStart, aEnd) with
// [bStart, bEnd).
func overlap(aStart, aEnd, bStart, bEnd uint32) uint32 {
	start := aStart
	if bStart > start {
		start = bStart
	}

	end := aEnd
	if bEnd < end {
		end = bEnd
	}

	if end <= start {
		return 0
	}

	return end - start
}
