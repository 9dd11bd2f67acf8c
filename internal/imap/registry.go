package imap

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// Mailbox is the process-wide shared entry for one mailbox: the UID tracker
// and the set of sessions that currently have the mailbox selected. All
// sessions viewing the same mailbox share one instance.
type Mailbox struct {
	tracker *UidTracker

	mu        sync.Mutex
	id        MailboxID
	listeners map[*Session]struct{}
}

// ID returns the mailbox's current identity; it changes on rename.
func (m *Mailbox) ID() MailboxID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id
}

// Tracker returns the mailbox's UID-issuance authority.
func (m *Mailbox) Tracker() *UidTracker {
	return m.tracker
}

func (m *Mailbox) register(s *Session) {
	m.mu.Lock()
	m.listeners[s] = struct{}{}
	m.mu.Unlock()
}

func (m *Mailbox) unregister(s *Session) {
	m.mu.Lock()
	delete(m.listeners, s)
	m.mu.Unlock()
}

// Broadcast delivers events to every listening session except origin. The
// causing session already rendered the outcome as part of its own command
// and must not see it again as unsolicited. Delivery only appends to each
// listener's private queue; nothing waits for listeners to process.
func (m *Mailbox) Broadcast(origin *Session, events ...Event) {
	if len(events) == 0 {
		return
	}
	m.mu.Lock()
	targets := make([]*Session, 0, len(m.listeners))
	for s := range m.listeners {
		if s != origin {
			targets = append(targets, s)
		}
	}
	m.mu.Unlock()

	for _, s := range targets {
		s.enqueue(events)
	}
}

// evict throws every listener off the mailbox (for delete): sessions are
// marked gone so their own workers fall back to authenticated state with a
// mailbox-gone error on their next command.
func (m *Mailbox) evict() {
	m.mu.Lock()
	listeners := m.listeners
	m.listeners = map[*Session]struct{}{}
	m.mu.Unlock()

	for s := range listeners {
		s.markGone()
	}
}

// Registry is the process-wide cache of one Mailbox entry per mailbox
// identity. It is an explicit injectable component, not a package-level
// singleton, so tests instantiate isolated registries.
type Registry struct {
	store Store

	mu      sync.Mutex
	entries map[MailboxID]*Mailbox

	group singleflight.Group
}

func NewRegistry(store Store) *Registry {
	return &Registry{
		store:   store,
		entries: make(map[MailboxID]*Mailbox),
	}
}

// GetOrCreate returns the shared entry for id, creating it on first open.
// Concurrent calls for the same mailbox serialize onto a single instance;
// two trackers racing on UID issuance would be a correctness violation.
func (r *Registry) GetOrCreate(id MailboxID) (*Mailbox, error) {
	r.mu.Lock()
	if mb, ok := r.entries[id]; ok {
		r.mu.Unlock()
		return mb, nil
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do(id.String(), func() (any, error) {
		r.mu.Lock()
		if mb, ok := r.entries[id]; ok {
			r.mu.Unlock()
			return mb, nil
		}
		r.mu.Unlock()

		tracker, err := newUidTracker(r.store, id)
		if err != nil {
			return nil, err
		}
		mb := &Mailbox{
			tracker:   tracker,
			id:        id,
			listeners: make(map[*Session]struct{}),
		}

		r.mu.Lock()
		r.entries[id] = mb
		r.mu.Unlock()
		return mb, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Mailbox), nil
}

// Lookup returns the cached entry for id, or nil if the mailbox has not
// been opened.
func (r *Registry) Lookup(id MailboxID) *Mailbox {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[id]
}

// Rename migrates the tracker and listener set from old to new atomically:
// a session mid-operation sees either identity consistently, and events
// issued afterwards route under the new name.
func (r *Registry) Rename(old, new MailboxID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	mb, ok := r.entries[old]
	if !ok {
		return
	}
	delete(r.entries, old)
	r.entries[new] = mb

	mb.tracker.rename(new)
	mb.mu.Lock()
	mb.id = new
	mb.mu.Unlock()
}

// NotifyDeleted discards the entry for a deleted mailbox and evicts its
// listeners. The tracker is never reused: if the name is recreated a fresh
// tracker with a fresh uidValidity is built.
func (r *Registry) NotifyDeleted(id MailboxID) {
	r.mu.Lock()
	mb, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()

	if ok {
		mb.evict()
	}
}
