package imap

import "fmt"

// Error taxonomy for the session engine. Handlers return these and the
// engine maps them onto tagged BAD/NO responses; none of them tears down
// the connection.

// ProtocolError reports a command that is illegal in the current session
// state or carries malformed arguments. Session state is left unchanged.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string {
	return e.Msg
}

func protocolErrorf(format string, args ...any) *ProtocolError {
	return &ProtocolError{Msg: fmt.Sprintf(format, args...)}
}

// AccessError reports a mailbox the user may not touch. It is rendered as a
// generic "does not exist" so that probing cannot reveal which mailboxes
// exist for other users.
type AccessError struct {
	Mailbox string
}

func (e *AccessError) Error() string {
	return "mailbox does not exist"
}

// ConcurrencyError reports a UID compare-and-swap that kept losing against
// concurrent writers after the bounded retries in UidTracker. The store was
// not modified; no UID was issued.
type ConcurrencyError struct {
	Mailbox string
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("uid allocation for %q lost to concurrent update", e.Mailbox)
}

// MailboxGoneError reports that the selected mailbox was deleted or renamed
// away by another session. The session has already been forced back to
// authenticated state when this surfaces.
type MailboxGoneError struct {
	Mailbox string
}

func (e *MailboxGoneError) Error() string {
	return fmt.Sprintf("mailbox %q is no longer selected", e.Mailbox)
}
