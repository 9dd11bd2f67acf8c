package imap

import "strings"

// Default mailboxes created for a user on first login, matching common
// client expectations.
var defaultMailboxes = []string{"INBOX", "Sent", "Drafts", "Trash"}

// handleLogin implements LOGIN (RFC 3501 Section 6.2.3). Authentication is
// delegated to the user directory; on success the user's default mailboxes
// are created if missing.
func (e *Engine) handleLogin(s *Session, cmd *Command) *Response {
	if len(cmd.Args) < 2 {
		return respBad("LOGIN requires username and password")
	}
	username := strings.Trim(cmd.Args[0], "\"")
	credential := strings.Trim(cmd.Args[1], "\"")

	ok, err := e.directory.Authenticate(username, credential)
	if err != nil {
		return respNo("Server error: authentication unavailable")
	}
	if !ok {
		return respNoCode("AUTHENTICATIONFAILED", "Invalid credentials")
	}

	for _, name := range defaultMailboxes {
		id := NewMailboxID(username, name)
		exists, err := e.store.MailboxExists(id)
		if err != nil {
			return errorResponse(err)
		}
		if !exists {
			if err := e.store.CreateMailbox(id); err != nil {
				return errorResponse(err)
			}
		}
	}

	s.username = username
	s.state = StateAuthenticated
	return respOK("LOGIN completed")
}

// handleLogout implements LOGOUT. Legal from any state; the session is torn
// down and the transport closes the connection after writing the response.
func (e *Engine) handleLogout(s *Session, cmd *Command) *Response {
	s.Close()
	return &Response{
		Untagged: []string{"* BYE Kestrel IMAP server logging out"},
		Status:   StatusOK,
		Text:     "LOGOUT completed",
		Close:    true,
	}
}

func (e *Engine) handleCapability(s *Session, cmd *Command) *Response {
	return &Response{
		Untagged: []string{"* CAPABILITY IMAP4rev1 UIDPLUS UNSELECT LITERAL+ NAMESPACE"},
		Status:   StatusOK,
		Text:     "CAPABILITY completed",
	}
}

// handleNoop implements NOOP. It does nothing itself; its value is that the
// transport flushes unsolicited responses before the tagged reply, making
// NOOP the canonical poll for mailbox changes.
func (e *Engine) handleNoop(s *Session, cmd *Command) *Response {
	return respOK("NOOP completed")
}

func (e *Engine) handleCheck(s *Session, cmd *Command) *Response {
	return respOK("CHECK completed")
}

func (e *Engine) handleNamespace(s *Session, cmd *Command) *Response {
	return &Response{
		Untagged: []string{`* NAMESPACE (("" "/")) NIL NIL`},
		Status:   StatusOK,
		Text:     "NAMESPACE completed",
	}
}
