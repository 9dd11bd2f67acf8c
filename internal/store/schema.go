package store

import "database/sql"

// The shared database holds the user table; each user gets their own
// database file with mailboxes, messages, and subscriptions.

func initSharedSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

func initUserSchema(db *sql.DB) error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS mailboxes (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			uid_validity INTEGER NOT NULL,
			uid_next INTEGER NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY,
			mailbox_id INTEGER NOT NULL,
			uid INTEGER NOT NULL,
			flags TEXT NOT NULL DEFAULT '',
			internal_date TIMESTAMP NOT NULL,
			size INTEGER NOT NULL,
			content BLOB,
			blob_key TEXT,
			FOREIGN KEY (mailbox_id) REFERENCES mailboxes(id) ON DELETE CASCADE,
			UNIQUE(mailbox_id, uid)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_mailbox_uid ON messages(mailbox_id, uid);`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id INTEGER PRIMARY KEY,
			mailbox_name TEXT NOT NULL UNIQUE,
			subscribed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,
	}
	for _, s := range schemas {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}
