package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"kestrel/internal/imap"
)

// BlobStore offloads raw message content, keyed per owner by content hash.
// Nil means content stays inline in SQLite. Keys must not be shared across
// owners: blob references are counted within one user's database, so a
// cross-owner key would be deleted while still referenced elsewhere.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Key(owner string, data []byte) string
}

// Store implements the session engine's mailbox store contract on SQLite,
// with optional S3 blob offload for message bodies.
type Store struct {
	mgr   *Manager
	blobs BlobStore
}

func New(mgr *Manager, blobs BlobStore) *Store {
	return &Store{mgr: mgr, blobs: blobs}
}

var _ imap.Store = (*Store)(nil)

func (s *Store) db(id imap.MailboxID) (*sql.DB, error) {
	return s.mgr.UserDB(id.Owner)
}

// mailboxRow resolves a mailbox name to its row id.
func mailboxRow(db *sql.DB, name string) (int64, error) {
	var rowID int64
	err := db.QueryRow("SELECT id FROM mailboxes WHERE name = ?", name).Scan(&rowID)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("mailbox %q does not exist", name)
	}
	return rowID, err
}

func (s *Store) CreateMailbox(id imap.MailboxID) error {
	db, err := s.db(id)
	if err != nil {
		return err
	}
	// uidValidity is seeded from the wall clock so a deleted-and-recreated
	// mailbox gets a new epoch and clients discard cached UIDs.
	_, err = db.Exec(`
		INSERT INTO mailboxes (name, uid_validity, uid_next)
		VALUES (?, ?, 1)
	`, id.Name, time.Now().Unix())
	return err
}

func (s *Store) DeleteMailbox(id imap.MailboxID) error {
	db, err := s.db(id)
	if err != nil {
		return err
	}
	rowID, err := mailboxRow(db, id.Name)
	if err != nil {
		return err
	}

	var keys []string
	rows, err := db.Query("SELECT blob_key FROM messages WHERE mailbox_id = ? AND blob_key IS NOT NULL", rowID)
	if err == nil {
		for rows.Next() {
			var key string
			if err := rows.Scan(&key); err == nil {
				keys = append(keys, key)
			}
		}
		_ = rows.Close()
	}

	if _, err := db.Exec("DELETE FROM mailboxes WHERE id = ?", rowID); err != nil {
		return err
	}
	for _, key := range keys {
		s.releaseBlob(db, key)
	}
	return nil
}

func (s *Store) RenameMailbox(old, new imap.MailboxID) error {
	db, err := s.db(old)
	if err != nil {
		return err
	}
	res, err := db.Exec("UPDATE mailboxes SET name = ? WHERE name = ?", new.Name, old.Name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("mailbox %q does not exist", old.Name)
	}
	return err
}

func (s *Store) MailboxExists(id imap.MailboxID) (bool, error) {
	db, err := s.db(id)
	if err != nil {
		return false, err
	}
	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM mailboxes WHERE name = ?", id.Name).Scan(&count)
	return count > 0, err
}

func (s *Store) ListMailboxes(owner string) ([]string, error) {
	db, err := s.mgr.UserDB(owner)
	if err != nil {
		return nil, err
	}
	rows, err := db.Query("SELECT name FROM mailboxes ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *Store) MailboxMeta(id imap.MailboxID) (int64, int64, error) {
	db, err := s.db(id)
	if err != nil {
		return 0, 0, err
	}
	var validity, next int64
	err = db.QueryRow("SELECT uid_validity, uid_next FROM mailboxes WHERE name = ?", id.Name).Scan(&validity, &next)
	if err == sql.ErrNoRows {
		return 0, 0, fmt.Errorf("mailbox %q does not exist", id.Name)
	}
	return validity, next, err
}

// SetUIDNext is the compare-and-swap the UID tracker builds atomic issuance
// on: the update only lands when uid_next still equals old.
func (s *Store) SetUIDNext(id imap.MailboxID, old, new int64) (bool, error) {
	db, err := s.db(id)
	if err != nil {
		return false, err
	}
	res, err := db.Exec(`
		UPDATE mailboxes SET uid_next = ?
		WHERE name = ? AND uid_next = ?
	`, new, id.Name, old)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) Append(id imap.MailboxID, uid int64, raw []byte, flags []string, internalDate time.Time) error {
	db, err := s.db(id)
	if err != nil {
		return err
	}
	rowID, err := mailboxRow(db, id.Name)
	if err != nil {
		return err
	}

	var content []byte
	var blobKey sql.NullString
	if s.blobs != nil {
		key := s.blobs.Key(id.Owner, raw)
		if err := s.blobs.Put(context.Background(), key, raw); err != nil {
			return fmt.Errorf("failed to store message blob: %v", err)
		}
		blobKey = sql.NullString{String: key, Valid: true}
	} else {
		content = raw
	}

	_, err = db.Exec(`
		INSERT INTO messages (mailbox_id, uid, flags, internal_date, size, content, blob_key)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rowID, uid, strings.Join(flags, " "), internalDate.UTC(), int64(len(raw)), content, blobKey)
	return err
}

func (s *Store) UIDs(id imap.MailboxID) ([]int64, error) {
	db, err := s.db(id)
	if err != nil {
		return nil, err
	}
	rowID, err := mailboxRow(db, id.Name)
	if err != nil {
		return nil, err
	}
	rows, err := db.Query("SELECT uid FROM messages WHERE mailbox_id = ? ORDER BY uid", rowID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var uids []int64
	for rows.Next() {
		var uid int64
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		uids = append(uids, uid)
	}
	return uids, rows.Err()
}

func (s *Store) Messages(id imap.MailboxID) ([]imap.MessageInfo, error) {
	db, err := s.db(id)
	if err != nil {
		return nil, err
	}
	rowID, err := mailboxRow(db, id.Name)
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(`
		SELECT uid, flags, internal_date, size
		FROM messages WHERE mailbox_id = ? ORDER BY uid
	`, rowID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []imap.MessageInfo
	for rows.Next() {
		var m imap.MessageInfo
		var flags string
		if err := rows.Scan(&m.UID, &flags, &m.InternalDate, &m.Size); err != nil {
			return nil, err
		}
		m.Flags = strings.Fields(flags)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *Store) Info(id imap.MailboxID, uid int64) (imap.MessageInfo, error) {
	db, err := s.db(id)
	if err != nil {
		return imap.MessageInfo{}, err
	}
	rowID, err := mailboxRow(db, id.Name)
	if err != nil {
		return imap.MessageInfo{}, err
	}
	var m imap.MessageInfo
	var flags string
	err = db.QueryRow(`
		SELECT uid, flags, internal_date, size
		FROM messages WHERE mailbox_id = ? AND uid = ?
	`, rowID, uid).Scan(&m.UID, &flags, &m.InternalDate, &m.Size)
	if err == sql.ErrNoRows {
		return imap.MessageInfo{}, fmt.Errorf("no message with uid %d", uid)
	}
	if err != nil {
		return imap.MessageInfo{}, err
	}
	m.Flags = strings.Fields(flags)
	return m, nil
}

func (s *Store) Flags(id imap.MailboxID, uid int64) ([]string, error) {
	m, err := s.Info(id, uid)
	if err != nil {
		return nil, err
	}
	return m.Flags, nil
}

func (s *Store) SetFlags(id imap.MailboxID, uid int64, flags []string) error {
	db, err := s.db(id)
	if err != nil {
		return err
	}
	rowID, err := mailboxRow(db, id.Name)
	if err != nil {
		return err
	}
	res, err := db.Exec(`
		UPDATE messages SET flags = ? WHERE mailbox_id = ? AND uid = ?
	`, strings.Join(flags, " "), rowID, uid)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("no message with uid %d", uid)
	}
	return err
}

func (s *Store) Expunge(id imap.MailboxID, uid int64) error {
	db, err := s.db(id)
	if err != nil {
		return err
	}
	rowID, err := mailboxRow(db, id.Name)
	if err != nil {
		return err
	}

	var blobKey sql.NullString
	_ = db.QueryRow(`
		SELECT blob_key FROM messages WHERE mailbox_id = ? AND uid = ?
	`, rowID, uid).Scan(&blobKey)

	res, err := db.Exec("DELETE FROM messages WHERE mailbox_id = ? AND uid = ?", rowID, uid)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("no message with uid %d", uid)
	}
	if blobKey.Valid {
		s.releaseBlob(db, blobKey.String)
	}
	return err
}

func (s *Store) Message(id imap.MailboxID, uid int64) (imap.MessageInfo, []byte, error) {
	db, err := s.db(id)
	if err != nil {
		return imap.MessageInfo{}, nil, err
	}
	rowID, err := mailboxRow(db, id.Name)
	if err != nil {
		return imap.MessageInfo{}, nil, err
	}

	var m imap.MessageInfo
	var flags string
	var content []byte
	var blobKey sql.NullString
	err = db.QueryRow(`
		SELECT uid, flags, internal_date, size, content, blob_key
		FROM messages WHERE mailbox_id = ? AND uid = ?
	`, rowID, uid).Scan(&m.UID, &flags, &m.InternalDate, &m.Size, &content, &blobKey)
	if err == sql.ErrNoRows {
		return imap.MessageInfo{}, nil, fmt.Errorf("no message with uid %d", uid)
	}
	if err != nil {
		return imap.MessageInfo{}, nil, err
	}
	m.Flags = strings.Fields(flags)

	if blobKey.Valid {
		if s.blobs == nil {
			return imap.MessageInfo{}, nil, fmt.Errorf("message content is in blob storage but blob storage is disabled")
		}
		content, err = s.blobs.Get(context.Background(), blobKey.String)
		if err != nil {
			return imap.MessageInfo{}, nil, fmt.Errorf("failed to fetch message blob: %v", err)
		}
	}
	return m, content, nil
}

func (s *Store) Subscribe(owner, name string) error {
	db, err := s.mgr.UserDB(owner)
	if err != nil {
		return err
	}
	_, err = db.Exec("INSERT OR IGNORE INTO subscriptions (mailbox_name) VALUES (?)", name)
	return err
}

func (s *Store) Unsubscribe(owner, name string) error {
	db, err := s.mgr.UserDB(owner)
	if err != nil {
		return err
	}
	_, err = db.Exec("DELETE FROM subscriptions WHERE mailbox_name = ?", name)
	return err
}

func (s *Store) Subscriptions(owner string) ([]string, error) {
	db, err := s.mgr.UserDB(owner)
	if err != nil {
		return nil, err
	}
	rows, err := db.Query("SELECT mailbox_name FROM subscriptions ORDER BY mailbox_name")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// releaseBlob deletes a blob once no message row references it anymore.
// Content addressing means copies share one blob, so the refcount check is
// what makes expunge safe.
func (s *Store) releaseBlob(db *sql.DB, key string) {
	if s.blobs == nil {
		return
	}
	var refs int
	if err := db.QueryRow("SELECT COUNT(*) FROM messages WHERE blob_key = ?", key).Scan(&refs); err != nil || refs > 0 {
		return
	}
	_ = s.blobs.Delete(context.Background(), key)
}
