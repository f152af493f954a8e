package transport

import "testing"

func ranges(s *rangeSet) []packetRange {
	out := make([]packetRange, s.len())
	for i := 0; i < s.len(); i++ {
		out[i] = s.at(i)
	}
	return out
}

func TestRangeSetMergeDisjoint(t *testing.T) {
	var s rangeSet
	s.merge(packetRange{start: 100, size: 10})
	s.merge(packetRange{start: 200, size: 10})

	got := ranges(&s)
	if len(got) != 2 {
		t.Fatalf("expected 2 disjoint ranges, got %d: %+v", len(got), got)
	}
	if got[0].start != 100 || got[0].size != 10 {
		t.Errorf("first range = %+v", got[0])
	}
	if got[1].start != 200 || got[1].size != 10 {
		t.Errorf("second range = %+v", got[1])
	}
}

func TestRangeSetMergeAdjacentCoalesces(t *testing.T) {
	var s rangeSet
	s.merge(packetRange{start: 100, size: 10})
	s.merge(packetRange{start: 110, size: 10})

	got := ranges(&s)
	if len(got) != 1 {
		t.Fatalf("expected ranges to coalesce into one, got %d: %+v", len(got), got)
	}
	if got[0].start != 100 || got[0].size != 20 {
		t.Errorf("coalesced range = %+v, want {100 20}", got[0])
	}
}

func TestRangeSetMergeOverlapping(t *testing.T) {
	var s rangeSet
	s.merge(packetRange{start: 100, size: 10})
	s.merge(packetRange{start: 105, size: 10})

	got := ranges(&s)
	if len(got) != 1 {
		t.Fatalf("expected overlapping ranges to merge into one, got %d: %+v", len(got), got)
	}
	if got[0].start != 100 || got[0].size != 15 {
		t.Errorf("merged range = %+v, want {100 15}", got[0])
	}
}

func TestRangeSetMergeBridgesGap(t *testing.T) {
	var s rangeSet
	s.merge(packetRange{start: 100, size: 10})
	s.merge(packetRange{start: 200, size: 10})
	s.merge(packetRange{start: 110, size: 90})

	got := ranges(&s)
	if len(got) != 1 {
		t.Fatalf("expected the middle insert to bridge both ranges into one, got %d: %+v", len(got), got)
	}
	if got[0].start != 100 || got[0].size != 110 {
		t.Errorf("bridged range = %+v, want {100 110}", got[0])
	}
}

func TestRangeSetMergeDuplicateIsNoop(t *testing.T) {
	var s rangeSet
	s.merge(packetRange{start: 100, size: 10})
	s.merge(packetRange{start: 100, size: 10})

	got := ranges(&s)
	if len(got) != 1 || got[0].size != 10 {
		t.Errorf("duplicate merge changed set: %+v", got)
	}
}

func TestRangeSetDropBefore(t *testing.T) {
	var s rangeSet
	s.merge(packetRange{start: 100, size: 10})
	s.merge(packetRange{start: 200, size: 10})

	s.dropBefore(105)

	got := ranges(&s)
	if len(got) != 2 {
		t.Fatalf("dropBefore inside a range should not remove it, got %d: %+v", len(got), got)
	}

	s.dropBefore(110)
	got = ranges(&s)
	if len(got) != 1 || got[0].start != 200 {
		t.Fatalf("dropBefore past a range's end should remove it, got %+v", got)
	}
}

func TestRangeSetFirst(t *testing.T) {
	var s rangeSet
	if _, ok := s.first(); ok {
		t.Error("first() on empty set should report ok=false")
	}

	s.merge(packetRange{start: 50, size: 5})
	first, ok := s.first()
	if !ok || first.start != 50 {
		t.Errorf("first() = %+v, %v, want {50 5}, true", first, ok)
	}
}
