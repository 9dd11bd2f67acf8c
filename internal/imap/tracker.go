package imap

import "sync"

// maxUIDAttempts bounds the compare-and-swap retries in ConsumeNextUID
// before giving up with a ConcurrencyError.
const maxUIDAttempts = 5

// UidTracker is the single UID-issuance authority for one mailbox. Exactly
// one tracker exists per mailbox at a time (enforced by the Registry); it
// caches the uidValidity/uidNext pair and advances uidNext through the
// store's compare-and-swap so that UIDs are never duplicated, not even when
// an external writer (e.g. a delivery agent) shares the store.
type UidTracker struct {
	store Store

	mu          sync.Mutex
	id          MailboxID
	uidValidity int64
	uidNext     int64
}

func newUidTracker(store Store, id MailboxID) (*UidTracker, error) {
	validity, next, err := store.MailboxMeta(id)
	if err != nil {
		return nil, err
	}
	return &UidTracker{store: store, id: id, uidValidity: validity, uidNext: next}, nil
}

// UIDValidity is constant for the mailbox's lifetime; clients use it to
// detect UID reuse across connections.
func (t *UidTracker) UIDValidity() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.uidValidity
}

// UIDNext returns the next UID that would be issued.
func (t *UidTracker) UIDNext() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.uidNext
}

// ConsumeNextUID atomically issues a UID strictly greater than every UID
// previously issued for this mailbox. A lost compare-and-swap means another
// writer advanced uidNext; the cached value is refreshed and the swap
// retried up to maxUIDAttempts before failing with ConcurrencyError.
func (t *UidTracker) ConsumeNextUID() (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for attempt := 0; attempt < maxUIDAttempts; attempt++ {
		uid := t.uidNext
		ok, err := t.store.SetUIDNext(t.id, uid, uid+1)
		if err != nil {
			return 0, err
		}
		if ok {
			t.uidNext = uid + 1
			return uid, nil
		}

		// Lost the race; re-read the authoritative counter.
		_, next, err := t.store.MailboxMeta(t.id)
		if err != nil {
			return 0, err
		}
		t.uidNext = next
	}
	return 0, &ConcurrencyError{Mailbox: t.id.Name}
}

func (t *UidTracker) mailboxID() MailboxID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.id
}

// rename points the tracker at the mailbox's new identity. Called by the
// Registry with its own lock held so tracker and listener set move together.
func (t *UidTracker) rename(id MailboxID) {
	t.mu.Lock()
	t.id = id
	t.mu.Unlock()
}
