package imap

import (
	"fmt"
	"strings"
)

// handleSelect implements SELECT and EXAMINE (RFC 3501 Sections 6.3.1,
// 6.3.2). It looks up or lazily creates the mailbox's registry entry,
// registers the session as a listener, builds the initial MSN<->UID
// snapshot, and emits the mandatory response set in fixed order: EXISTS,
// RECENT, FLAGS, first unseen, UIDVALIDITY, UIDNEXT, PERMANENTFLAGS, and
// the read/write indicator on the tagged line. Clients rely on that order.
func (e *Engine) handleSelect(s *Session, cmd *Command) *Response {
	if len(cmd.Args) < 1 {
		return respBad(cmd.Name + " requires a mailbox name")
	}
	readOnly := strings.EqualFold(cmd.Name, "EXAMINE")

	// A failed SELECT leaves no mailbox selected (RFC 3501 Section 6.3.1).
	s.detach()

	id, err := resolveMailbox(s, cmd.Args[0])
	if err != nil {
		return errorResponse(err)
	}

	exists, err := e.store.MailboxExists(id)
	if err != nil {
		return errorResponse(err)
	}
	if !exists {
		return respNoCode("TRYCREATE", "Mailbox does not exist")
	}

	mb, err := e.registry.GetOrCreate(id)
	if err != nil {
		return errorResponse(err)
	}

	// Listen before reading the message list. An append committed in
	// between arrives as a queued Added event; one already visible in the
	// list is dropped as a duplicate when the queue is flushed.
	s.attach(mb, readOnly)

	msgs, err := e.store.Messages(id)
	if err != nil {
		s.detach()
		return errorResponse(err)
	}

	uids := make([]int64, 0, len(msgs))
	recent := 0
	firstUnseen := 0
	for i, m := range msgs {
		uids = append(uids, m.UID)
		if HasFlag(m.Flags, FlagRecent) {
			recent++
		}
		if firstUnseen == 0 && !HasFlag(m.Flags, FlagSeen) {
			firstUnseen = i + 1
		}
	}

	// The first selecting session consumes \Recent: the count is reported,
	// then the flags are cleared so later sessions do not see the messages
	// as recent again. EXAMINE must not modify the mailbox.
	if !readOnly && recent > 0 {
		for _, m := range msgs {
			if HasFlag(m.Flags, FlagRecent) {
				if err := e.store.SetFlags(id, m.UID, withoutFlag(m.Flags, FlagRecent)); err != nil {
					s.detach()
					return errorResponse(err)
				}
			}
		}
	}

	tracker := mb.Tracker()
	s.setSnapshot(uids, tracker.UIDValidity())

	resp := &Response{Status: StatusOK}
	resp.Untagged = append(resp.Untagged,
		fmt.Sprintf("* %d EXISTS", len(uids)),
		fmt.Sprintf("* %d RECENT", recent),
		fmt.Sprintf("* FLAGS (%s)", FlagsVocabulary),
	)
	if firstUnseen > 0 {
		resp.Untagged = append(resp.Untagged,
			fmt.Sprintf("* OK [UNSEEN %d] Message %d is first unseen", firstUnseen, firstUnseen))
	}
	resp.Untagged = append(resp.Untagged,
		fmt.Sprintf("* OK [UIDVALIDITY %d] UIDs valid", tracker.UIDValidity()),
		fmt.Sprintf("* OK [UIDNEXT %d] Predicted next UID", tracker.UIDNext()),
	)
	if readOnly {
		resp.Untagged = append(resp.Untagged, "* OK [PERMANENTFLAGS ()] No permanent flags permitted")
		resp.Code = "READ-ONLY"
		resp.Text = "EXAMINE completed"
	} else {
		resp.Untagged = append(resp.Untagged,
			fmt.Sprintf("* OK [PERMANENTFLAGS (%s \\*)] Limited", FlagsVocabulary))
		resp.Code = "READ-WRITE"
		resp.Text = "SELECT completed"
	}
	return resp
}

// handleClose implements CLOSE (RFC 3501 Section 6.4.2): expunge \Deleted
// messages without sending untagged EXPUNGE responses, then return to
// authenticated state. On a read-only selection nothing is removed and no
// error is given.
func (e *Engine) handleClose(s *Session, cmd *Command) *Response {
	if !s.readOnly {
		id := s.selected.ID()
		var removed []int64
		for _, uid := range append([]int64(nil), s.uids...) {
			flags, err := e.store.Flags(id, uid)
			if err != nil {
				continue
			}
			if !HasFlag(flags, FlagDeleted) {
				continue
			}
			if err := e.store.Expunge(id, uid); err != nil {
				continue
			}
			removed = append(removed, uid)
		}
		if len(removed) > 0 {
			s.selected.Broadcast(s, EventExpunged{UIDs: removed})
		}
	}
	s.detach()
	return respOK("CLOSE completed")
}

// handleUnselect implements UNSELECT (RFC 3691): deselect without
// expunging.
func (e *Engine) handleUnselect(s *Session, cmd *Command) *Response {
	s.detach()
	return respOK("UNSELECT completed")
}
