package transport

// packetRange describes a contiguous run of sequence space, [start,
// start+size), that has been received or acknowledged. Both the receiver's
// out-of-order buffer and the sender's SACK bookkeeping are a sorted set of
// these, so they share this one implementation.
type packetRange struct {
	start uint32
	size  uint32
}

func (r packetRange) end() uint32 {
	return r.start + r.size
}

// rangeSet is a growable slice kept sorted by wrap-aware start sequence,
// with set-union merge semantics. It plays the role of the original
// library's dense, realloc-grown sorted array (src/index.c) rather than a
// tree or linked list: the number of outstanding ranges is small and a
// binary search over a slice is both simpler and cheaper than a balanced
// tree here.
type rangeSet struct {
	items []packetRange
}

// findPos returns the index of the last item whose start is not greater
// than key in wrapped order, or -1 if every item starts after key (or the
// set is empty).
func (s *rangeSet) findPos(key uint32) int {
	low, high := 0, len(s.items)-1
	for low <= high {
		mid := (low + high) / 2
		item := s.items[mid]
		if item.start == key {
			return mid
		}
		if seqLess(key, item.start) {
			high = mid - 1
		} else {
			low = mid + 1
		}
	}
	return high
}

// insertAfter inserts r immediately after index afterIdx (afterIdx == -1
// inserts at the head) and returns r's new index.
func (s *rangeSet) insertAfter(afterIdx int, r packetRange) int {
	pos := afterIdx + 1
	s.items = append(s.items, packetRange{})
	copy(s.items[pos+1:], s.items[pos:])
	s.items[pos] = r
	return pos
}

func (s *rangeSet) removeAt(idx int) {
	s.items = append(s.items[:idx], s.items[idx+1:]...)
}

// merge folds r into the set, coalescing it with any overlapping or
// adjacent neighbors so the set always holds the minimum number of disjoint
// ranges covering everything ever added. This mirrors
// spo_internal_merge_packet_desc exactly, including its early-outs.
func (s *rangeSet) merge(r packetRange) {
	pos := s.findPos(r.start)

	var prevIdx, curIdx int
	if pos < 0 {
		prevIdx = s.insertAfter(-1, r)
		curIdx = prevIdx + 1
	} else {
		prevIdx = pos
		prev := s.items[prevIdx]
		currentEnd := r.end()
		prevEnd := prev.end()

		if seqLess(prevEnd, currentEnd) {
			if seqLess(prevEnd, r.start) {
				prevIdx = s.insertAfter(prevIdx, r)
			} else {
				s.items[prevIdx].size += currentEnd - prevEnd
			}
			curIdx = prevIdx + 1
		} else {
			// prev already covers r entirely; nothing changed.
			return
		}
	}

	for curIdx < len(s.items) {
		cur := s.items[curIdx]
		currentEnd := cur.end()
		prevEnd := s.items[prevIdx].end()

		if seqLess(prevEnd, currentEnd) {
			if seqLess(prevEnd, cur.start) {
				// a hole separates the merged run from cur; done.
				break
			}
			s.items[prevIdx].size += currentEnd - prevEnd
		}
		// else cur was already covered by prev; drop it either way.
		s.removeAt(curIdx)
	}
}

// first returns the lowest-keyed range and whether the set is non-empty.
func (s *rangeSet) first() (packetRange, bool) {
	if len(s.items) == 0 {
		return packetRange{}, false
	}
	return s.items[0], true
}

// dropBefore discards whole ranges that end at or before seq, mirroring
// spo_internal_remove_old_acks. Ranges the given
// seq lands inside of, rather than past, are left untouched since that
// would mean the caller disagrees with us about what has been consumed.
func (s *rangeSet) dropBefore(seq uint32) {
	for len(s.items) > 0 {
		item := s.items[0]
		if seqLessEq(seq, item.start) {
			break
		}
		if seqLess(seq, item.end()) {
			break
		}
		s.removeAt(0)
	}
}

func (s *rangeSet) len() int {
	return len(s.items)
}

func (s *rangeSet) at(i int) packetRange {
	return s.items[i]
}
