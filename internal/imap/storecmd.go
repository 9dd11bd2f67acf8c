package imap

import (
	"fmt"
	"strings"
)

// handleStore implements STORE and UID STORE (RFC 3501 Section 6.4.6).
// Modes are FLAGS, +FLAGS, -FLAGS, each with an optional .SILENT suffix
// suppressing the untagged FETCH echoes. Other sessions always learn of the
// change through the dispatcher; .SILENT only silences the caller's echo.
func (e *Engine) handleStore(s *Session, cmd *Command) *Response {
	if len(cmd.Args) < 3 {
		return respBad("STORE requires sequence set, data item, and flags")
	}
	if s.readOnly {
		return respNo("Mailbox is read-only")
	}

	mode := strings.ToUpper(cmd.Args[1])
	silent := strings.HasSuffix(mode, ".SILENT")
	mode = strings.TrimSuffix(mode, ".SILENT")
	if mode != FlagsReplace && mode != FlagsAdd && mode != FlagsRemove {
		return respBad("Invalid data item: " + cmd.Args[1])
	}
	change := ParseFlagList(strings.Join(cmd.Args[2:], " "))

	uids, err := s.resolveSet(cmd.UID, cmd.Args[0])
	if err != nil {
		return errorResponse(err)
	}

	id := s.selected.ID()
	resp := &Response{Status: StatusOK}
	var events []Event

	for _, uid := range uids {
		current, err := e.store.Flags(id, uid)
		if err != nil {
			// Expunged under us; UID addressing ignores unknown UIDs.
			continue
		}
		updated := ApplyFlags(current, change, mode)
		if err := e.store.SetFlags(id, uid, updated); err != nil {
			return errorResponse(err)
		}
		events = append(events, EventFlags{UID: uid, Flags: updated})

		if !silent {
			seq := s.sequence(uid)
			if cmd.UID {
				// UID-prefixed commands always report the UID (RFC 3501
				// Section 6.4.8).
				resp.Untagged = append(resp.Untagged,
					fmt.Sprintf("* %d FETCH (FLAGS %s UID %d)", seq, FormatFlags(updated), uid))
			} else {
				resp.Untagged = append(resp.Untagged,
					fmt.Sprintf("* %d FETCH (FLAGS %s)", seq, FormatFlags(updated)))
			}
		}
	}

	if len(events) > 0 {
		s.selected.Broadcast(s, events...)
	}

	if cmd.UID {
		resp.Text = "UID STORE completed"
	} else {
		resp.Text = "STORE completed"
	}
	return resp
}

// resolveSet maps a sequence-set argument onto snapshot UIDs in the
// command's addressing mode.
func (s *Session) resolveSet(uidMode bool, spec string) ([]int64, error) {
	if uidMode {
		return s.resolveUIDSet(spec)
	}
	return s.resolveMSNSet(spec)
}
