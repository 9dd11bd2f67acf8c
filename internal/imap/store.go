package imap

import (
	"strings"
	"time"
)

// MailboxID identifies one mailbox: the owning user's personal namespace
// plus the hierarchical name. Only INBOX is case-insensitive (RFC 3501
// Section 5.1); every other name is case-sensitive.
type MailboxID struct {
	Owner string
	Name  string
}

func NewMailboxID(owner, name string) MailboxID {
	return MailboxID{Owner: owner, Name: NormalizeMailboxName(name)}
}

func (id MailboxID) String() string {
	return id.Owner + ":" + id.Name
}

// NormalizeMailboxName folds all case variants of INBOX to "INBOX" and
// leaves other names untouched.
func NormalizeMailboxName(name string) string {
	if strings.EqualFold(name, "INBOX") {
		return "INBOX"
	}
	return name
}

// resolveMailbox maps a client-supplied (possibly quoted) name into the
// session user's personal namespace. Names under the # prefix address
// shared or other-user namespaces; no sharing is configured, so those fail
// with an access error, rendered indistinguishably from a missing mailbox.
func resolveMailbox(s *Session, raw string) (MailboxID, error) {
	name := strings.Trim(raw, "\"")
	if strings.HasPrefix(name, "#") {
		return MailboxID{}, &AccessError{Mailbox: name}
	}
	return NewMailboxID(s.username, name), nil
}

// MessageInfo is the per-message metadata view the engine works with. Raw
// content is loaded separately because it may live in blob storage.
type MessageInfo struct {
	UID          int64
	InternalDate time.Time
	Size         int64
	Flags        []string
}

// Store is the durable mailbox store the session engine drives. The
// concrete implementation lives in internal/store (SQLite plus optional S3
// blob storage); tests use an in-memory fake.
type Store interface {
	CreateMailbox(id MailboxID) error
	DeleteMailbox(id MailboxID) error
	RenameMailbox(old, new MailboxID) error
	MailboxExists(id MailboxID) (bool, error)
	ListMailboxes(owner string) ([]string, error)

	// MailboxMeta returns the authoritative uidValidity/uidNext pair.
	MailboxMeta(id MailboxID) (uidValidity, uidNext int64, err error)
	// SetUIDNext advances uidNext from old to new, returning false without
	// modifying anything when uidNext no longer equals old. This is the
	// compare-and-swap UidTracker builds its atomic issuance on.
	SetUIDNext(id MailboxID, old, new int64) (bool, error)

	Append(id MailboxID, uid int64, raw []byte, flags []string, internalDate time.Time) error
	UIDs(id MailboxID) ([]int64, error)
	Messages(id MailboxID) ([]MessageInfo, error)
	Info(id MailboxID, uid int64) (MessageInfo, error)
	Flags(id MailboxID, uid int64) ([]string, error)
	SetFlags(id MailboxID, uid int64, flags []string) error
	Expunge(id MailboxID, uid int64) error
	Message(id MailboxID, uid int64) (MessageInfo, []byte, error)

	Subscribe(owner, name string) error
	Unsubscribe(owner, name string) error
	Subscriptions(owner string) ([]string, error)
}

// Directory is the user directory collaborator, consumed only at login.
type Directory interface {
	Authenticate(username, credential string) (bool, error)
}
