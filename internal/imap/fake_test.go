package imap

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// fakeStore is an in-memory Store for engine tests. It mirrors the SQLite
// store's semantics including the uid_next compare-and-swap.
type fakeStore struct {
	mu        sync.Mutex
	mailboxes map[MailboxID]*fakeMailbox
	subs      map[string]map[string]bool
	validity  int64

	// casFailures forces SetUIDNext to report a lost swap this many times,
	// simulating an external writer racing on the counter.
	casFailures int

	// messagesHook, when set, runs once after Messages builds its result,
	// letting a test interpose writes between a snapshot read and its use.
	messagesHook func()
}

type fakeMailbox struct {
	uidValidity int64
	uidNext     int64
	messages    map[int64]*fakeMessage
}

type fakeMessage struct {
	raw          []byte
	flags        []string
	internalDate time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		mailboxes: make(map[MailboxID]*fakeMailbox),
		subs:      make(map[string]map[string]bool),
	}
}

func (f *fakeStore) CreateMailbox(id MailboxID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.mailboxes[id]; ok {
		return fmt.Errorf("mailbox %s already exists", id)
	}
	f.validity++
	f.mailboxes[id] = &fakeMailbox{
		uidValidity: f.validity,
		uidNext:     1,
		messages:    make(map[int64]*fakeMessage),
	}
	return nil
}

func (f *fakeStore) DeleteMailbox(id MailboxID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.mailboxes[id]; !ok {
		return fmt.Errorf("mailbox %s does not exist", id)
	}
	delete(f.mailboxes, id)
	return nil
}

func (f *fakeStore) RenameMailbox(old, new MailboxID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	mb, ok := f.mailboxes[old]
	if !ok {
		return fmt.Errorf("mailbox %s does not exist", old)
	}
	if _, ok := f.mailboxes[new]; ok {
		return fmt.Errorf("mailbox %s already exists", new)
	}
	delete(f.mailboxes, old)
	f.mailboxes[new] = mb
	return nil
}

func (f *fakeStore) MailboxExists(id MailboxID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.mailboxes[id]
	return ok, nil
}

func (f *fakeStore) ListMailboxes(owner string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for id := range f.mailboxes {
		if id.Owner == owner {
			names = append(names, id.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeStore) MailboxMeta(id MailboxID) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mb, ok := f.mailboxes[id]
	if !ok {
		return 0, 0, fmt.Errorf("mailbox %s does not exist", id)
	}
	return mb.uidValidity, mb.uidNext, nil
}

func (f *fakeStore) SetUIDNext(id MailboxID, old, new int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mb, ok := f.mailboxes[id]
	if !ok {
		return false, fmt.Errorf("mailbox %s does not exist", id)
	}
	if f.casFailures > 0 {
		f.casFailures--
		return false, nil
	}
	if mb.uidNext != old {
		return false, nil
	}
	mb.uidNext = new
	return true, nil
}

func (f *fakeStore) Append(id MailboxID, uid int64, raw []byte, flags []string, internalDate time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	mb, ok := f.mailboxes[id]
	if !ok {
		return fmt.Errorf("mailbox %s does not exist", id)
	}
	mb.messages[uid] = &fakeMessage{
		raw:          append([]byte(nil), raw...),
		flags:        append([]string(nil), flags...),
		internalDate: internalDate,
	}
	return nil
}

func (f *fakeStore) UIDs(id MailboxID) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mb, ok := f.mailboxes[id]
	if !ok {
		return nil, fmt.Errorf("mailbox %s does not exist", id)
	}
	var uids []int64
	for uid := range mb.messages {
		uids = append(uids, uid)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids, nil
}

func (f *fakeStore) Messages(id MailboxID) ([]MessageInfo, error) {
	uids, err := f.UIDs(id)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	mb := f.mailboxes[id]
	var infos []MessageInfo
	for _, uid := range uids {
		m := mb.messages[uid]
		infos = append(infos, MessageInfo{
			UID:          uid,
			InternalDate: m.internalDate,
			Size:         int64(len(m.raw)),
			Flags:        append([]string(nil), m.flags...),
		})
	}
	hook := f.messagesHook
	f.messagesHook = nil
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return infos, nil
}

func (f *fakeStore) Info(id MailboxID, uid int64) (MessageInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.message(id, uid)
	if err != nil {
		return MessageInfo{}, err
	}
	return MessageInfo{
		UID:          uid,
		InternalDate: m.internalDate,
		Size:         int64(len(m.raw)),
		Flags:        append([]string(nil), m.flags...),
	}, nil
}

func (f *fakeStore) Flags(id MailboxID, uid int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.message(id, uid)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), m.flags...), nil
}

func (f *fakeStore) SetFlags(id MailboxID, uid int64, flags []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.message(id, uid)
	if err != nil {
		return err
	}
	m.flags = append([]string(nil), flags...)
	return nil
}

func (f *fakeStore) Expunge(id MailboxID, uid int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.message(id, uid); err != nil {
		return err
	}
	delete(f.mailboxes[id].messages, uid)
	return nil
}

func (f *fakeStore) Message(id MailboxID, uid int64) (MessageInfo, []byte, error) {
	info, err := f.Info(id, uid)
	if err != nil {
		return MessageInfo{}, nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.mailboxes[id].messages[uid]
	return info, append([]byte(nil), m.raw...), nil
}

func (f *fakeStore) message(id MailboxID, uid int64) (*fakeMessage, error) {
	mb, ok := f.mailboxes[id]
	if !ok {
		return nil, fmt.Errorf("mailbox %s does not exist", id)
	}
	m, ok := mb.messages[uid]
	if !ok {
		return nil, fmt.Errorf("message %d does not exist in %s", uid, id)
	}
	return m, nil
}

func (f *fakeStore) Subscribe(owner, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs[owner] == nil {
		f.subs[owner] = make(map[string]bool)
	}
	f.subs[owner][name] = true
	return nil
}

func (f *fakeStore) Unsubscribe(owner, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs[owner], name)
	return nil
}

func (f *fakeStore) Subscriptions(owner string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for name := range f.subs[owner] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// fakeDirectory accepts a fixed username/password pair.
type fakeDirectory struct {
	username string
	password string
}

func (d *fakeDirectory) Authenticate(username, credential string) (bool, error) {
	return username == d.username && credential == d.password, nil
}

// newTestEngine builds an engine over a fresh fake store with one known user.
func newTestEngine() (*Engine, *fakeStore) {
	st := newFakeStore()
	dir := &fakeDirectory{username: "alice", password: "secret"}
	return NewEngine(st, NewRegistry(st), dir), st
}
