package imap

import (
	"fmt"
	"strings"
)

// handleCopy implements COPY and UID COPY (RFC 3501 Section 6.4.7). Each
// copied message gets a fresh UID from the destination's tracker; flags and
// internal date are preserved, \Recent is set on the copies.
func (e *Engine) handleCopy(s *Session, cmd *Command) *Response {
	if len(cmd.Args) < 2 {
		return respBad("COPY requires sequence set and destination mailbox")
	}

	uids, err := s.resolveSet(cmd.UID, cmd.Args[0])
	if err != nil {
		return errorResponse(err)
	}

	destID, err := resolveMailbox(s, strings.Join(cmd.Args[1:], " "))
	if err != nil {
		return errorResponse(err)
	}
	exists, err := e.store.MailboxExists(destID)
	if err != nil {
		return errorResponse(err)
	}
	if !exists {
		return respNoCode("TRYCREATE", "Destination mailbox does not exist")
	}

	dest, err := e.registry.GetOrCreate(destID)
	if err != nil {
		return errorResponse(err)
	}

	srcID := s.selected.ID()
	var srcUIDs, newUIDs []int64
	var events []Event
	var ownAdds []int64

	for _, uid := range uids {
		info, raw, err := e.store.Message(srcID, uid)
		if err != nil {
			continue
		}
		newUID, err := dest.Tracker().ConsumeNextUID()
		if err != nil {
			return errorResponse(err)
		}
		flags := info.Flags
		if !HasFlag(flags, FlagRecent) {
			flags = append(flags, FlagRecent)
		}
		if err := e.store.Append(destID, newUID, raw, flags, info.InternalDate); err != nil {
			return errorResponse(err)
		}
		srcUIDs = append(srcUIDs, uid)
		newUIDs = append(newUIDs, newUID)
		events = append(events, EventAdded{UID: newUID, Flags: flags})
		if destID == srcID {
			ownAdds = append(ownAdds, newUID)
		}
	}

	if len(events) > 0 {
		dest.Broadcast(s, events...)
	}

	var resp *Response
	if len(newUIDs) == 0 {
		resp = respOK("COPY completed")
	} else {
		resp = respOKCode(
			fmt.Sprintf("COPYUID %d %s %s", dest.Tracker().UIDValidity(), formatUIDSet(srcUIDs), formatUIDSet(newUIDs)),
			"COPY completed")
	}
	if cmd.UID {
		resp.Text = "UID COPY completed"
	}

	// Copying into the selected mailbox itself grows this session's own
	// snapshot directly.
	if len(ownAdds) > 0 {
		for _, uid := range ownAdds {
			s.uidAppend(uid)
		}
		resp.Untagged = append(resp.Untagged, fmt.Sprintf("* %d EXISTS", len(s.uids)))
	}
	return resp
}

// formatUIDSet renders ascending UIDs as a compact sequence set, collapsing
// consecutive runs into ranges ("1:3,5").
func formatUIDSet(uids []int64) string {
	var parts []string
	for i := 0; i < len(uids); {
		j := i
		for j+1 < len(uids) && uids[j+1] == uids[j]+1 {
			j++
		}
		if i == j {
			parts = append(parts, fmt.Sprintf("%d", uids[i]))
		} else {
			parts = append(parts, fmt.Sprintf("%d:%d", uids[i], uids[j]))
		}
		i = j + 1
	}
	return strings.Join(parts, ",")
}
