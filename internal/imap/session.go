package imap

import "sync"

// State is the IMAP protocol state of one session (RFC 3501 Section 3).
type State int

const (
	StateNotAuthenticated State = iota
	StateAuthenticated
	StateSelected
	StateLogout
)

func (s State) String() string {
	switch s {
	case StateNotAuthenticated:
		return "not-authenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateSelected:
		return "selected"
	case StateLogout:
		return "logout"
	}
	return "unknown"
}

// Session is the per-connection protocol state: the state machine position,
// the authenticated user, the selected mailbox with its MSN<->UID snapshot,
// and the queue of mutation events other sessions have posted but this
// session has not yet rendered to its client.
//
// All fields except the queue/gone pair are owned by the session's worker
// and need no locking. The queue is written by other sessions' workers (via
// Mailbox fan-out) and drained by this session's worker, so it is guarded
// by mu.
type Session struct {
	RemoteAddr string

	registry *Registry

	state    State
	username string

	selected *Mailbox // nil unless state == StateSelected
	readOnly bool
	uids     []int64 // snapshot, ascending; MSN of uids[i] is i+1
	uidValidity int64

	mu    sync.Mutex
	queue []Event
	gone  bool

	// Pending receives a token when events are queued, so a blocked
	// IDLE-style wait can wake up. Buffered so enqueuers never block.
	Pending chan struct{}
}

// NewSession creates a session in the not-authenticated state.
func NewSession(registry *Registry, remoteAddr string) *Session {
	return &Session{
		RemoteAddr: remoteAddr,
		registry:   registry,
		state:      StateNotAuthenticated,
		Pending:    make(chan struct{}, 1),
	}
}

func (s *Session) State() State      { return s.state }
func (s *Session) Username() string  { return s.username }
func (s *Session) ReadOnly() bool    { return s.readOnly }

// SelectedID returns the identity of the selected mailbox. Valid only in
// the selected state; renames by other sessions are reflected because the
// shared Mailbox entry carries the current name.
func (s *Session) SelectedID() MailboxID {
	return s.selected.ID()
}

// enqueue appends events to the session's pending queue. Called from other
// sessions' workers through Mailbox.Broadcast; returns without waiting for
// this session to process anything.
func (s *Session) enqueue(events []Event) {
	s.mu.Lock()
	s.queue = append(s.queue, events...)
	s.mu.Unlock()

	select {
	case s.Pending <- struct{}{}:
	default:
	}
}

// takeEvents drains the pending queue.
func (s *Session) takeEvents() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queue
	s.queue = nil
	return q
}

// markGone records that the selected mailbox was deleted underneath this
// session. The session's own worker notices on its next command.
func (s *Session) markGone() {
	s.mu.Lock()
	s.gone = true
	s.queue = nil
	s.mu.Unlock()
}

func (s *Session) takeGone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.gone
	s.gone = false
	return g
}

// attach moves the session into the selected state on mb. Any previous
// selection is dropped first. The caller installs the MSN<->UID snapshot
// with setSnapshot once built; registration must come first so an append
// committed while the snapshot is read lands in the event queue instead of
// being missed.
func (s *Session) attach(mb *Mailbox, readOnly bool) {
	s.detach()
	mb.register(s)
	s.selected = mb
	s.readOnly = readOnly
	s.state = StateSelected
}

// setSnapshot installs the snapshot after attach. Events queued in between
// may overlap it; uidAppend and the expunge path drop the duplicates.
func (s *Session) setSnapshot(uids []int64, uidValidity int64) {
	s.uids = uids
	s.uidValidity = uidValidity
}

// detach leaves the selected state, deregistering from the mailbox's
// listener set synchronously so no further events can be queued here.
func (s *Session) detach() {
	if s.selected != nil {
		s.selected.unregister(s)
		s.selected = nil
	}
	s.uids = nil
	s.readOnly = false
	s.uidValidity = 0
	s.mu.Lock()
	s.queue = nil
	s.gone = false
	s.mu.Unlock()
	if s.state == StateSelected {
		s.state = StateAuthenticated
	}
}

// Close tears the session down on logout or disconnect. Deregistration is
// synchronous: after Close returns no dispatcher can reach this session.
func (s *Session) Close() {
	s.detach()
	s.state = StateLogout
}

// sequence derives the MSN for uid from the snapshot: the 1-based rank
// among currently visible messages in ascending UID order. Returns 0 when
// the uid is not in the snapshot.
func (s *Session) sequence(uid int64) int {
	lo, hi := 0, len(s.uids)
	for lo < hi {
		mid := (lo + hi) / 2
		m := s.uids[mid]
		switch {
		case uid == m:
			return mid + 1
		case uid < m:
			hi = mid
		default:
			lo = mid + 1
		}
	}
	return 0
}

// uidAppend adds a new uid to the snapshot. UIDs only ever grow, so the
// append keeps the snapshot ascending.
func (s *Session) uidAppend(uid int64) {
	if len(s.uids) > 0 && uid <= s.uids[len(s.uids)-1] {
		// Already known (duplicate event) or out of order; ignore.
		if s.sequence(uid) > 0 {
			return
		}
	}
	s.uids = append(s.uids, uid)
}

// sequenceRemove drops the uid at the given MSN, shifting higher MSNs down.
func (s *Session) sequenceRemove(seq int, uid int64) {
	i := seq - 1
	if i < 0 || i >= len(s.uids) || s.uids[i] != uid {
		return
	}
	copy(s.uids[i:], s.uids[i+1:])
	s.uids = s.uids[:len(s.uids)-1]
}

// largestUID returns the highest uid in the snapshot, for resolving `*`.
func (s *Session) largestUID() int64 {
	if len(s.uids) == 0 {
		return 0
	}
	return s.uids[len(s.uids)-1]
}

// resolveMSNSet maps an MSN sequence set onto the snapshot, returning the
// matching UIDs ascending. MSNs with no message behind them are dropped;
// only a malformed set is an error.
func (s *Session) resolveMSNSet(spec string) ([]int64, error) {
	set, err := ParseIdSet(spec, int64(len(s.uids)))
	if err != nil {
		return nil, err
	}
	var uids []int64
	for i, uid := range s.uids {
		if set.Includes(int64(i + 1)) {
			uids = append(uids, uid)
		}
	}
	return uids, nil
}

// resolveUIDSet filters the snapshot by a UID sequence set. Nonexistent
// UIDs are silently ignored (RFC 3501 Section 6.4.8).
func (s *Session) resolveUIDSet(spec string) ([]int64, error) {
	set, err := ParseIdSet(spec, s.largestUID())
	if err != nil {
		return nil, err
	}
	return set.Select(s.uids), nil
}
