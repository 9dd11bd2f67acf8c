package imap

import "fmt"

// handleExpunge implements EXPUNGE (RFC 3501 Section 6.4.3) and the UID
// EXPUNGE variant (RFC 4315): permanent removal of every \Deleted message,
// restricted to the given UID set when UID-prefixed. The session's own
// responses go out ascending; each removal immediately shrinks the
// snapshot, so the sequence numbers are the shifted ones the client must
// apply one at a time.
func (e *Engine) handleExpunge(s *Session, cmd *Command) *Response {
	if s.readOnly {
		return respNo("Mailbox is read-only")
	}

	var restrict IdSet
	if cmd.UID {
		if len(cmd.Args) < 1 {
			return respBad("UID EXPUNGE requires a UID sequence set")
		}
		set, err := ParseIdSet(cmd.Args[0], s.largestUID())
		if err != nil {
			return errorResponse(err)
		}
		restrict = set
	}

	id := s.selected.ID()
	var doomed []int64
	for _, uid := range s.uids {
		if restrict != nil && !restrict.Includes(uid) {
			continue
		}
		flags, err := e.store.Flags(id, uid)
		if err != nil {
			continue
		}
		if HasFlag(flags, FlagDeleted) {
			doomed = append(doomed, uid)
		}
	}

	resp := &Response{Status: StatusOK, Text: cmd.Name + " completed"}
	if cmd.UID {
		resp.Text = "UID EXPUNGE completed"
	} else {
		resp.Text = "EXPUNGE completed"
	}

	var removed []int64
	for _, uid := range doomed {
		seq := s.sequence(uid)
		if seq == 0 {
			continue
		}
		if err := e.store.Expunge(id, uid); err != nil {
			continue
		}
		resp.Untagged = append(resp.Untagged, fmt.Sprintf("* %d EXPUNGE", seq))
		s.sequenceRemove(seq, uid)
		removed = append(removed, uid)
	}

	if len(removed) > 0 {
		s.selected.Broadcast(s, EventExpunged{UIDs: removed})
	}
	return resp
}
