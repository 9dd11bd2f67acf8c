package imap

// Event describes one committed mutation against a mailbox. One of
// EventAdded, EventFlags, EventExpunged. Events are immutable values: the
// mutating session constructs them after the store commit and the mailbox
// fans them out to every other listening session's private queue.
type Event any

// EventAdded is sent for a new message in the mailbox.
type EventAdded struct {
	UID   int64
	Flags []string
}

// EventFlags is sent for an update to a message's flags.
type EventFlags struct {
	UID   int64
	Flags []string // The new full flag set.
}

// EventExpunged is sent for permanent removal of one or more messages.
type EventExpunged struct {
	UIDs []int64 // In increasing UID order.
}
