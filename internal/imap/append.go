package imap

import (
	"fmt"
	"strings"
	"time"
)

// internalDateLayout is the date-time format of RFC 3501 Section 9.
const internalDateLayout = "02-Jan-2006 15:04:05 -0700"

// handleAppend implements APPEND (RFC 3501 Section 6.3.11). The transport
// has already read the message literal into cmd.Literal; the remaining
// arguments are the mailbox name plus optional flag list and date string.
// The new UID comes from the mailbox's tracker, so concurrent appends and
// external deliveries can never collide.
func (e *Engine) handleAppend(s *Session, cmd *Command) *Response {
	if len(cmd.Args) < 1 || len(cmd.Literal) == 0 {
		return respBad("APPEND requires mailbox name and message literal")
	}
	id, err := resolveMailbox(s, cmd.Args[0])
	if err != nil {
		return errorResponse(err)
	}

	flags, date, err := parseAppendOptions(cmd.Args[1:])
	if err != nil {
		return errorResponse(err)
	}
	if !HasFlag(flags, FlagRecent) {
		flags = append(flags, FlagRecent)
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
	uid, err := mb.Tracker().ConsumeNextUID()
	if err != nil {
		return errorResponse(err)
	}

	if err := e.store.Append(id, uid, cmd.Literal, flags, date); err != nil {
		return errorResponse(err)
	}

	mb.Broadcast(s, EventAdded{UID: uid, Flags: flags})

	resp := respOKCode(
		fmt.Sprintf("APPENDUID %d %d", mb.Tracker().UIDValidity(), uid),
		"APPEND completed")

	// Appending into the session's own selected mailbox is a direct result:
	// the snapshot grows now and EXISTS rides along with this response, not
	// through the unsolicited path.
	if s.state == StateSelected && s.selected.ID() == id {
		s.uidAppend(uid)
		resp.Untagged = append(resp.Untagged, fmt.Sprintf("* %d EXISTS", len(s.uids)))
	}
	return resp
}

// parseAppendOptions parses the optional flag list and internal date
// between the mailbox name and the literal, e.g. `(\Seen) "21-Jun-2025
// 12:00:00 +0000"`. Fields arrive pre-split on whitespace.
func parseAppendOptions(args []string) ([]string, time.Time, error) {
	rest := strings.TrimSpace(strings.Join(args, " "))
	var flags []string

	if strings.HasPrefix(rest, "(") {
		end := strings.Index(rest, ")")
		if end < 0 {
			return nil, time.Time{}, protocolErrorf("unterminated flag list in APPEND")
		}
		flags = strings.Fields(rest[1:end])
		rest = strings.TrimSpace(rest[end+1:])
	}

	date := time.Now()
	if strings.HasPrefix(rest, "\"") {
		end := strings.Index(rest[1:], "\"")
		if end < 0 {
			return nil, time.Time{}, protocolErrorf("unterminated date string in APPEND")
		}
		parsed, err := time.Parse(internalDateLayout, rest[1:1+end])
		if err != nil {
			return nil, time.Time{}, protocolErrorf("invalid internal date %q", rest[1:1+end])
		}
		date = parsed
	}
	return flags, date, nil
}
