package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Manager manages database connections: one shared database for the user
// directory and one database file per user for mailbox data.
type Manager struct {
	basePath string
	sharedDB *sql.DB

	cacheMutex  sync.RWMutex
	userDBCache map[string]*sql.DB
}

// NewManager creates the base directory, opens the shared database, and
// initializes its schema.
func NewManager(basePath string) (*Manager, error) {
	if err := os.MkdirAll(filepath.Join(basePath, "users"), 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %v", err)
	}

	sharedDB, err := openDB(filepath.Join(basePath, "shared.db"))
	if err != nil {
		return nil, err
	}
	if err := initSharedSchema(sharedDB); err != nil {
		_ = sharedDB.Close()
		return nil, fmt.Errorf("failed to initialize shared database: %v", err)
	}

	return &Manager{
		basePath:    basePath,
		sharedDB:    sharedDB,
		userDBCache: make(map[string]*sql.DB),
	}, nil
}

// SharedDB returns the shared database connection (user directory).
func (m *Manager) SharedDB() *sql.DB {
	return m.sharedDB
}

// UserDB returns the database connection for a user, opening and
// initializing the file on first use.
func (m *Manager) UserDB(username string) (*sql.DB, error) {
	m.cacheMutex.RLock()
	if db, ok := m.userDBCache[username]; ok {
		m.cacheMutex.RUnlock()
		return db, nil
	}
	m.cacheMutex.RUnlock()

	m.cacheMutex.Lock()
	defer m.cacheMutex.Unlock()

	// Double-check after acquiring write lock.
	if db, ok := m.userDBCache[username]; ok {
		return db, nil
	}

	db, err := openDB(m.userDBPath(username))
	if err != nil {
		return nil, fmt.Errorf("failed to open user database: %v", err)
	}
	if err := initUserSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize user database: %v", err)
	}

	m.userDBCache[username] = db
	return db, nil
}

// Close closes every open connection.
func (m *Manager) Close() error {
	m.cacheMutex.Lock()
	defer m.cacheMutex.Unlock()

	var firstErr error
	for name, db := range m.userDBCache {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.userDBCache, name)
	}
	if err := m.sharedDB.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (m *Manager) userDBPath(username string) string {
	// Usernames are email local parts; anything path-hostile is replaced.
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, username)
	return filepath.Join(m.basePath, "users", safe+".db")
}
