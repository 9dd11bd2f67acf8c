package imap

import (
	"fmt"
	"sort"
)

// FlushUnsolicited drains the session's pending event queue and renders the
// untagged responses the client must see before the next tagged response
// (RFC 3501 Section 5.2). The relative order is fixed:
//
//  1. EXPUNGE, by descending MSN at time of expunge. Each expunge shifts
//     later MSNs down by one, so rendering high to low keeps the MSNs
//     computed for the rest of the batch valid.
//  2. EXISTS, once, if additions changed the visible count.
//  3. FETCH FLAGS, one per changed message, with the MSN recomputed against
//     the post-expunge snapshot.
//
// The snapshot is updated as a side effect: expunged UIDs removed, new UIDs
// appended ascending. Outside the selected state the queue is cleared
// without rendering; events for a mailbox the session no longer has open
// are irrelevant.
func (s *Session) FlushUnsolicited() []string {
	events := s.takeEvents()
	if s.state != StateSelected {
		return nil
	}
	if len(events) == 0 {
		return nil
	}

	var expunged []int64
	var added []EventAdded
	var flagged []EventFlags
	for _, ev := range events {
		switch e := ev.(type) {
		case EventExpunged:
			expunged = append(expunged, e.UIDs...)
		case EventAdded:
			added = append(added, e)
		case EventFlags:
			flagged = append(flagged, e)
		}
	}

	var lines []string

	// Expunges first, highest MSN first.
	type expungeSeq struct {
		uid int64
		seq int
	}
	var seqs []expungeSeq
	for _, uid := range expunged {
		if seq := s.sequence(uid); seq > 0 {
			seqs = append(seqs, expungeSeq{uid: uid, seq: seq})
		}
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i].seq > seqs[j].seq })
	for _, es := range seqs {
		lines = append(lines, fmt.Sprintf("* %d EXPUNGE", es.seq))
		s.sequenceRemove(es.seq, es.uid)
	}

	// A single EXISTS for however many messages arrived.
	if len(added) > 0 {
		sort.Slice(added, func(i, j int) bool { return added[i].UID < added[j].UID })
		for _, a := range added {
			s.uidAppend(a.UID)
		}
		lines = append(lines, fmt.Sprintf("* %d EXISTS", len(s.uids)))
	}

	// Flag updates against the post-expunge snapshot. A message expunged in
	// the same batch simply has no MSN anymore and is skipped.
	for _, f := range flagged {
		seq := s.sequence(f.UID)
		if seq == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("* %d FETCH (FLAGS %s UID %d)", seq, FormatFlags(f.Flags), f.UID))
	}

	return lines
}
