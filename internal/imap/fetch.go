package imap

import (
	"fmt"
	"strings"
)

// FetchData is the parsed set of FETCH data items requested by the client.
type FetchData struct {
	Flags        bool
	UID          bool
	InternalDate bool
	Size         bool
	Envelope     bool
	Body         bool // full raw message (BODY[], RFC822)
	Peek         bool // BODY.PEEK[]: do not set \Seen
}

// ParseFetchData parses the data item list of a FETCH command, including
// the ALL/FAST/FULL macros (RFC 3501 Section 6.4.5).
func ParseFetchData(items string) (FetchData, error) {
	var fd FetchData
	items = strings.Trim(strings.TrimSpace(items), "()")
	if items == "" {
		return fd, protocolErrorf("FETCH requires data items")
	}

	for _, item := range strings.Fields(strings.ToUpper(items)) {
		switch item {
		case "ALL":
			fd.Flags, fd.InternalDate, fd.Size, fd.Envelope = true, true, true, true
		case "FAST":
			fd.Flags, fd.InternalDate, fd.Size = true, true, true
		case "FULL":
			fd.Flags, fd.InternalDate, fd.Size, fd.Envelope, fd.Body = true, true, true, true, true
		case "FLAGS":
			fd.Flags = true
		case "UID":
			fd.UID = true
		case "INTERNALDATE":
			fd.InternalDate = true
		case "RFC822.SIZE":
			fd.Size = true
		case "ENVELOPE":
			fd.Envelope = true
		case "RFC822":
			fd.Body = true
		case "BODY[]", "BODY":
			fd.Body = true
		case "BODY.PEEK[]":
			fd.Body = true
			fd.Peek = true
		default:
			return fd, protocolErrorf("unsupported FETCH item %q", item)
		}
	}
	return fd, nil
}

// handleFetch implements FETCH and UID FETCH (RFC 3501 Sections 6.4.5,
// 6.4.8). A UID-prefixed fetch always includes the UID in the response even
// when the client did not ask for it. Fetching the body of an unseen
// message sets \Seen (unless PEEK or read-only) and the new flags ride
// along in the same FETCH response; other sessions learn through the
// dispatcher.
func (e *Engine) handleFetch(s *Session, cmd *Command) *Response {
	if len(cmd.Args) < 2 {
		return respBad("FETCH requires sequence set and data items")
	}

	fd, err := ParseFetchData(strings.Join(cmd.Args[1:], " "))
	if err != nil {
		return errorResponse(err)
	}
	if cmd.UID {
		fd.UID = true
	}

	uids, err := s.resolveSet(cmd.UID, cmd.Args[0])
	if err != nil {
		return errorResponse(err)
	}

	id := s.selected.ID()
	resp := &Response{Status: StatusOK}
	var events []Event

	for _, uid := range uids {
		seq := s.sequence(uid)
		if seq == 0 {
			continue
		}

		var info MessageInfo
		var raw []byte
		if fd.Body || fd.Envelope {
			info, raw, err = e.store.Message(id, uid)
		} else {
			info, err = e.store.Info(id, uid)
		}
		if err != nil {
			continue
		}

		flags := info.Flags
		markSeen := fd.Body && !fd.Peek && !s.readOnly && !HasFlag(flags, FlagSeen)
		if markSeen {
			flags = ApplyFlags(flags, []string{FlagSeen}, FlagsAdd)
			if err := e.store.SetFlags(id, uid, flags); err == nil {
				events = append(events, EventFlags{UID: uid, Flags: flags})
			}
		}

		var parts []string
		if fd.Flags || markSeen {
			parts = append(parts, "FLAGS "+FormatFlags(flags))
		}
		if fd.UID {
			parts = append(parts, fmt.Sprintf("UID %d", uid))
		}
		if fd.InternalDate {
			parts = append(parts, fmt.Sprintf("INTERNALDATE \"%s\"", info.InternalDate.Format(internalDateLayout)))
		}
		if fd.Size {
			parts = append(parts, fmt.Sprintf("RFC822.SIZE %d", info.Size))
		}
		if fd.Envelope {
			parts = append(parts, BuildEnvelope(string(raw)))
		}
		if fd.Body {
			parts = append(parts, fmt.Sprintf("BODY[] {%d}\r\n%s", len(raw), raw))
		}

		resp.Untagged = append(resp.Untagged,
			fmt.Sprintf("* %d FETCH (%s)", seq, strings.Join(parts, " ")))
	}

	if len(events) > 0 {
		s.selected.Broadcast(s, events...)
	}

	if cmd.UID {
		resp.Text = "UID FETCH completed"
	} else {
		resp.Text = "FETCH completed"
	}
	return resp
}
