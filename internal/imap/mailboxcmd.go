package imap

import (
	"fmt"
	"strings"
)

// handleCreate implements CREATE (RFC 3501 Section 6.3.3).
func (e *Engine) handleCreate(s *Session, cmd *Command) *Response {
	if len(cmd.Args) < 1 {
		return respBad("CREATE requires a mailbox name")
	}
	name := strings.Trim(cmd.Args[0], "\"")
	if strings.EqualFold(name, "INBOX") {
		return respNo("INBOX always exists")
	}
	id, err := resolveMailbox(s, name)
	if err != nil {
		return errorResponse(err)
	}

	exists, err := e.store.MailboxExists(id)
	if err != nil {
		return errorResponse(err)
	}
	if exists {
		return respNoCode("ALREADYEXISTS", "Mailbox already exists")
	}
	if err := e.store.CreateMailbox(id); err != nil {
		return errorResponse(err)
	}
	return respOK("CREATE completed")
}

// handleDelete implements DELETE (RFC 3501 Section 6.3.4). Sessions with
// the mailbox selected are evicted through the registry and see a
// mailbox-gone error on their next command.
func (e *Engine) handleDelete(s *Session, cmd *Command) *Response {
	if len(cmd.Args) < 1 {
		return respBad("DELETE requires a mailbox name")
	}
	name := strings.Trim(cmd.Args[0], "\"")
	if strings.EqualFold(name, "INBOX") {
		return respNo("INBOX cannot be deleted")
	}
	id, err := resolveMailbox(s, name)
	if err != nil {
		return errorResponse(err)
	}

	exists, err := e.store.MailboxExists(id)
	if err != nil {
		return errorResponse(err)
	}
	if !exists {
		return respNoCode("NONEXISTENT", "Mailbox does not exist")
	}
	if err := e.store.DeleteMailbox(id); err != nil {
		return errorResponse(err)
	}
	e.registry.NotifyDeleted(id)
	return respOK("DELETE completed")
}

// handleRename implements RENAME (RFC 3501 Section 6.3.5). The store row
// moves first, then the registry migrates tracker and listener set under
// its lock so sessions never observe a half-renamed mailbox.
func (e *Engine) handleRename(s *Session, cmd *Command) *Response {
	if len(cmd.Args) < 2 {
		return respBad("RENAME requires existing and new mailbox names")
	}
	oldName := strings.Trim(cmd.Args[0], "\"")
	newName := strings.Trim(cmd.Args[1], "\"")
	if strings.EqualFold(oldName, "INBOX") {
		return respNo("INBOX cannot be renamed")
	}
	oldID, err := resolveMailbox(s, oldName)
	if err != nil {
		return errorResponse(err)
	}
	newID, err := resolveMailbox(s, newName)
	if err != nil {
		return errorResponse(err)
	}

	exists, err := e.store.MailboxExists(oldID)
	if err != nil {
		return errorResponse(err)
	}
	if !exists {
		return respNoCode("NONEXISTENT", "Mailbox does not exist")
	}
	taken, err := e.store.MailboxExists(newID)
	if err != nil {
		return errorResponse(err)
	}
	if taken {
		return respNoCode("ALREADYEXISTS", "Target mailbox already exists")
	}

	if err := e.store.RenameMailbox(oldID, newID); err != nil {
		return errorResponse(err)
	}
	e.registry.Rename(oldID, newID)
	return respOK("RENAME completed")
}

// handleList implements LIST (RFC 3501 Section 6.3.8) with `*` and `%`
// wildcards over a flat "/" hierarchy.
func (e *Engine) handleList(s *Session, cmd *Command) *Response {
	if len(cmd.Args) < 2 {
		return respBad("LIST requires reference and pattern")
	}
	ref := strings.Trim(cmd.Args[0], "\"")
	pattern := strings.Trim(cmd.Args[1], "\"")

	// An empty pattern asks for the hierarchy delimiter only.
	if pattern == "" {
		return &Response{
			Untagged: []string{`* LIST (\Noselect) "/" ""`},
			Status:   StatusOK,
			Text:     "LIST completed",
		}
	}

	names, err := e.store.ListMailboxes(s.username)
	if err != nil {
		return errorResponse(err)
	}

	resp := &Response{Status: StatusOK, Text: "LIST completed"}
	for _, name := range names {
		if matchMailboxPattern(ref+pattern, name) {
			resp.Untagged = append(resp.Untagged, fmt.Sprintf(`* LIST () "/" "%s"`, name))
		}
	}
	return resp
}

// handleLsub implements LSUB over the subscription list.
func (e *Engine) handleLsub(s *Session, cmd *Command) *Response {
	if len(cmd.Args) < 2 {
		return respBad("LSUB requires reference and pattern")
	}
	ref := strings.Trim(cmd.Args[0], "\"")
	pattern := strings.Trim(cmd.Args[1], "\"")

	names, err := e.store.Subscriptions(s.username)
	if err != nil {
		return errorResponse(err)
	}

	resp := &Response{Status: StatusOK, Text: "LSUB completed"}
	for _, name := range names {
		if matchMailboxPattern(ref+pattern, name) {
			resp.Untagged = append(resp.Untagged, fmt.Sprintf(`* LSUB () "/" "%s"`, name))
		}
	}
	return resp
}

func (e *Engine) handleSubscribe(s *Session, cmd *Command) *Response {
	if len(cmd.Args) < 1 {
		return respBad("SUBSCRIBE requires a mailbox name")
	}
	name := NormalizeMailboxName(strings.Trim(cmd.Args[0], "\""))
	if err := e.store.Subscribe(s.username, name); err != nil {
		return errorResponse(err)
	}
	return respOK("SUBSCRIBE completed")
}

func (e *Engine) handleUnsubscribe(s *Session, cmd *Command) *Response {
	if len(cmd.Args) < 1 {
		return respBad("UNSUBSCRIBE requires a mailbox name")
	}
	name := NormalizeMailboxName(strings.Trim(cmd.Args[0], "\""))
	if err := e.store.Unsubscribe(s.username, name); err != nil {
		return errorResponse(err)
	}
	return respOK("UNSUBSCRIBE completed")
}

// handleStatus implements STATUS (RFC 3501 Section 6.3.10) without
// requiring the mailbox to be selected.
func (e *Engine) handleStatus(s *Session, cmd *Command) *Response {
	if len(cmd.Args) < 2 {
		return respBad("STATUS requires mailbox name and status items")
	}
	id, err := resolveMailbox(s, cmd.Args[0])
	if err != nil {
		return errorResponse(err)
	}

	exists, err := e.store.MailboxExists(id)
	if err != nil {
		return errorResponse(err)
	}
	if !exists {
		return respNoCode("NONEXISTENT", "Mailbox does not exist")
	}

	msgs, err := e.store.Messages(id)
	if err != nil {
		return errorResponse(err)
	}
	validity, next, err := e.store.MailboxMeta(id)
	if err != nil {
		return errorResponse(err)
	}

	recent, unseen := 0, 0
	for _, m := range msgs {
		if HasFlag(m.Flags, FlagRecent) {
			recent++
		}
		if !HasFlag(m.Flags, FlagSeen) {
			unseen++
		}
	}

	items := ParseFlagList(strings.Join(cmd.Args[1:], " "))
	var parts []string
	for _, item := range items {
		switch strings.ToUpper(item) {
		case "MESSAGES":
			parts = append(parts, fmt.Sprintf("MESSAGES %d", len(msgs)))
		case "RECENT":
			parts = append(parts, fmt.Sprintf("RECENT %d", recent))
		case "UIDNEXT":
			parts = append(parts, fmt.Sprintf("UIDNEXT %d", next))
		case "UIDVALIDITY":
			parts = append(parts, fmt.Sprintf("UIDVALIDITY %d", validity))
		case "UNSEEN":
			parts = append(parts, fmt.Sprintf("UNSEEN %d", unseen))
		default:
			return respBad("Unknown STATUS item: " + item)
		}
	}

	return &Response{
		Untagged: []string{fmt.Sprintf(`* STATUS "%s" (%s)`, id.Name, strings.Join(parts, " "))},
		Status:   StatusOK,
		Text:     "STATUS completed",
	}
}

// matchMailboxPattern matches LIST/LSUB patterns: `*` matches anything
// including the hierarchy delimiter, `%` anything except it.
func matchMailboxPattern(pattern, name string) bool {
	return matchPatternAt(pattern, name)
}

func matchPatternAt(pattern, name string) bool {
	if pattern == "" {
		return name == ""
	}
	switch pattern[0] {
	case '*':
		for i := 0; i <= len(name); i++ {
			if matchPatternAt(pattern[1:], name[i:]) {
				return true
			}
		}
		return false
	case '%':
		for i := 0; i <= len(name); i++ {
			if i > 0 && name[i-1] == '/' {
				break
			}
			if matchPatternAt(pattern[1:], name[i:]) {
				return true
			}
		}
		return false
	default:
		if name == "" || name[0] != pattern[0] {
			return false
		}
		return matchPatternAt(pattern[1:], name[1:])
	}
}
