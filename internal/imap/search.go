package imap

import (
	"fmt"
	"strconv"
	"strings"
)

// handleSearch implements SEARCH and UID SEARCH (RFC 3501 Section 6.4.4)
// for the flag-based and sequence-set criteria. Multiple criteria are
// ANDed. Results are MSNs, or UIDs when UID-prefixed, always ascending.
func (e *Engine) handleSearch(s *Session, cmd *Command) *Response {
	if len(cmd.Args) < 1 {
		return respBad("SEARCH requires search criteria")
	}

	id := s.selected.ID()
	msgs, err := e.store.Messages(id)
	if err != nil {
		return errorResponse(err)
	}
	// The session searches its own view, not messages it has not yet been
	// told about.
	byUID := make(map[int64]MessageInfo, len(msgs))
	for _, m := range msgs {
		byUID[m.UID] = m
	}

	match := func(uid int64) (bool, error) {
		m, ok := byUID[uid]
		if !ok {
			return false, nil
		}
		args := cmd.Args
		for i := 0; i < len(args); i++ {
			crit := strings.ToUpper(args[i])
			switch crit {
			case "ALL":
			case "ANSWERED", "DELETED", "DRAFT", "FLAGGED", "RECENT", "SEEN":
				if !HasFlag(m.Flags, searchFlagNames[crit]) {
					return false, nil
				}
			case "UNANSWERED", "UNDELETED", "UNDRAFT", "UNFLAGGED", "UNSEEN":
				if HasFlag(m.Flags, searchFlagNames[strings.TrimPrefix(crit, "UN")]) {
					return false, nil
				}
			case "NEW":
				if !HasFlag(m.Flags, FlagRecent) || HasFlag(m.Flags, FlagSeen) {
					return false, nil
				}
			case "OLD":
				if HasFlag(m.Flags, FlagRecent) {
					return false, nil
				}
			case "UID":
				if i+1 >= len(args) {
					return false, protocolErrorf("UID criterion requires a sequence set")
				}
				i++
				set, err := ParseIdSet(args[i], s.largestUID())
				if err != nil {
					return false, err
				}
				if !set.Includes(uid) {
					return false, nil
				}
			default:
				// A bare sequence set restricts by MSN.
				if isSequenceSet(crit) {
					set, err := ParseIdSet(crit, int64(len(s.uids)))
					if err != nil {
						return false, err
					}
					if !set.Includes(int64(s.sequence(uid))) {
						return false, nil
					}
				} else {
					return false, protocolErrorf("unsupported SEARCH criterion %q", args[i])
				}
			}
		}
		return true, nil
	}

	var results []string
	for i, uid := range s.uids {
		ok, err := match(uid)
		if err != nil {
			return errorResponse(err)
		}
		if !ok {
			continue
		}
		if cmd.UID {
			results = append(results, strconv.FormatInt(uid, 10))
		} else {
			results = append(results, strconv.Itoa(i+1))
		}
	}

	resp := &Response{
		Untagged: []string{strings.TrimRight(fmt.Sprintf("* SEARCH %s", strings.Join(results, " ")), " ")},
		Status:   StatusOK,
	}
	if cmd.UID {
		resp.Text = "UID SEARCH completed"
	} else {
		resp.Text = "SEARCH completed"
	}
	return resp
}

var searchFlagNames = map[string]string{
	"ANSWERED": FlagAnswered,
	"DELETED":  FlagDeleted,
	"DRAFT":    FlagDraft,
	"FLAGGED":  FlagFlagged,
	"RECENT":   FlagRecent,
	"SEEN":     FlagSeen,
}

func isSequenceSet(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == ':' || r == ',' || r == '*':
		default:
			return false
		}
	}
	return s != ""
}
