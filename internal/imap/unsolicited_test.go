package imap

import (
	"strings"
	"testing"
)

// Two sessions on the same mailbox: appends and expunges by one must show
// up as correctly ordered unsolicited responses at the other.
func TestCrossSessionAppendAndExpunge(t *testing.T) {
	e, _ := newTestEngine()

	a := loginSession(t, e)
	mustOK(t, e, a, &Command{Tag: "a1", Name: "SELECT", Args: []string{"INBOX"}})
	b := loginSession(t, e)
	mustOK(t, e, b, &Command{Tag: "b1", Name: "SELECT", Args: []string{"INBOX"}})

	// A appends; B sees EXISTS on its next flush, A sees nothing extra.
	appendMessage(t, e, a, "INBOX", "")
	lines := b.FlushUnsolicited()
	if len(lines) != 1 || lines[0] != "* 1 EXISTS" {
		t.Fatalf("Expected * 1 EXISTS at session B, got %v", lines)
	}
	if extra := a.FlushUnsolicited(); len(extra) != 0 {
		t.Errorf("Expected nothing at the causing session, got %v", extra)
	}

	// B can immediately address the new message by the MSN it was told.
	resp := mustOK(t, e, b, &Command{Tag: "b2", Name: "FETCH", Args: []string{"1", "FLAGS"}})
	if len(resp.Untagged) != 1 {
		t.Fatalf("Expected FETCH data for MSN 1, got %v", resp.Untagged)
	}

	// A deletes and expunges; B sees EXPUNGE.
	mustOK(t, e, a, &Command{Tag: "a2", Name: "STORE", Args: []string{"1", "+FLAGS.SILENT", `(\Deleted)`}})
	b.FlushUnsolicited() // drain the flag event
	mustOK(t, e, a, &Command{Tag: "a3", Name: "EXPUNGE"})

	lines = b.FlushUnsolicited()
	if len(lines) != 1 || lines[0] != "* 1 EXPUNGE" {
		t.Fatalf("Expected * 1 EXPUNGE at session B, got %v", lines)
	}
}

func TestFlushOrderExpungeBeforeExistsBeforeFetch(t *testing.T) {
	e, _ := newTestEngine()

	a := loginSession(t, e)
	for i := 0; i < 3; i++ {
		appendMessage(t, e, a, "INBOX", "")
	}
	mustOK(t, e, a, &Command{Tag: "a1", Name: "SELECT", Args: []string{"INBOX"}})
	b := loginSession(t, e)
	mustOK(t, e, b, &Command{Tag: "b1", Name: "SELECT", Args: []string{"INBOX"}})

	// One batch at B: flags changed on UID 2, UIDs 1 and 3 expunged, UID 4
	// appended.
	mustOK(t, e, a, &Command{Tag: "a2", Name: "STORE", Args: []string{"2", "+FLAGS.SILENT", `(\Seen)`}})
	mustOK(t, e, a, &Command{Tag: "a3", Name: "STORE", Args: []string{"1,3", "+FLAGS.SILENT", `(\Deleted)`}})
	mustOK(t, e, a, &Command{Tag: "a4", Name: "EXPUNGE"})
	appendMessage(t, e, a, "INBOX", "")

	lines := b.FlushUnsolicited()
	// Expunges descending (MSN 3 then 1), then one EXISTS, then the flag
	// update with the MSN recomputed against the post-expunge snapshot.
	want := []string{
		"* 3 EXPUNGE",
		"* 1 EXPUNGE",
		"* 2 EXISTS",
	}
	if len(lines) != 4 {
		t.Fatalf("Expected 4 unsolicited lines, got %v", lines)
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("Expected %q at position %d, got %q", w, i, lines[i])
		}
	}
	// UID 2 is the only survivor of the original three, now at MSN 1.
	if !strings.HasPrefix(lines[3], "* 1 FETCH (FLAGS ") || !strings.Contains(lines[3], "UID 2") {
		t.Errorf("Expected flag update for UID 2 at MSN 1, got %q", lines[3])
	}
}

// An append committed while SELECT is still reading the message list must
// not be lost: the selecting session listens before the read, so the message
// arrives as a queued event and surfaces on the next flush.
func TestSelectSeesAppendDuringSnapshotRead(t *testing.T) {
	e, st := newTestEngine()

	a := loginSession(t, e)
	b := loginSession(t, e)

	// A's append lands after B's SELECT has read the (empty) message list
	// but before the tagged OK.
	st.messagesHook = func() {
		appendMessage(t, e, a, "INBOX", "")
	}
	mustOK(t, e, b, &Command{Tag: "b1", Name: "SELECT", Args: []string{"INBOX"}})

	lines := b.FlushUnsolicited()
	if len(lines) != 1 || lines[0] != "* 1 EXISTS" {
		t.Fatalf("Expected * 1 EXISTS after the interleaved append, got %v", lines)
	}
	resp := mustOK(t, e, b, &Command{Tag: "b2", Name: "FETCH", Args: []string{"1:*", "UID"}})
	if len(resp.Untagged) != 1 || !strings.Contains(resp.Untagged[0], "UID 1") {
		t.Fatalf("Expected the appended message in B's view, got %v", resp.Untagged)
	}
}

func TestFlagEventForExpungedMessageSkipped(t *testing.T) {
	e, _ := newTestEngine()

	a := loginSession(t, e)
	appendMessage(t, e, a, "INBOX", "")
	mustOK(t, e, a, &Command{Tag: "a1", Name: "SELECT", Args: []string{"INBOX"}})
	b := loginSession(t, e)
	mustOK(t, e, b, &Command{Tag: "b1", Name: "SELECT", Args: []string{"INBOX"}})

	mustOK(t, e, a, &Command{Tag: "a2", Name: "STORE", Args: []string{"1", "+FLAGS.SILENT", `(\Deleted)`}})
	mustOK(t, e, a, &Command{Tag: "a3", Name: "EXPUNGE"})

	lines := b.FlushUnsolicited()
	if len(lines) != 1 || lines[0] != "* 1 EXPUNGE" {
		t.Fatalf("Expected only the EXPUNGE, got %v", lines)
	}
}

func TestFlushOutsideSelectedStateDiscards(t *testing.T) {
	e, _ := newTestEngine()

	a := loginSession(t, e)
	mustOK(t, e, a, &Command{Tag: "a1", Name: "SELECT", Args: []string{"INBOX"}})
	b := loginSession(t, e)
	mustOK(t, e, b, &Command{Tag: "b1", Name: "SELECT", Args: []string{"INBOX"}})

	appendMessage(t, e, a, "INBOX", "")
	mustOK(t, e, b, &Command{Tag: "b2", Name: "UNSELECT"})

	if lines := b.FlushUnsolicited(); len(lines) != 0 {
		t.Errorf("Expected no lines after deselect, got %v", lines)
	}
}

func TestSnapshotStableUntilFlush(t *testing.T) {
	e, _ := newTestEngine()

	a := loginSession(t, e)
	appendMessage(t, e, a, "INBOX", "")
	mustOK(t, e, a, &Command{Tag: "a1", Name: "SELECT", Args: []string{"INBOX"}})
	b := loginSession(t, e)
	mustOK(t, e, b, &Command{Tag: "b1", Name: "SELECT", Args: []string{"INBOX"}})

	// A second message arrives but B has not flushed yet: B's snapshot
	// still has exactly one message and MSN 1 still resolves.
	appendMessage(t, e, a, "INBOX", "")
	resp := mustOK(t, e, b, &Command{Tag: "b2", Name: "FETCH", Args: []string{"1:*", "UID"}})
	if len(resp.Untagged) != 1 {
		t.Fatalf("Expected one message in B's view before flush, got %v", resp.Untagged)
	}

	lines := b.FlushUnsolicited()
	if len(lines) != 1 || lines[0] != "* 2 EXISTS" {
		t.Fatalf("Expected * 2 EXISTS, got %v", lines)
	}
	resp = mustOK(t, e, b, &Command{Tag: "b3", Name: "FETCH", Args: []string{"1:*", "UID"}})
	if len(resp.Untagged) != 2 {
		t.Errorf("Expected two messages after flush, got %v", resp.Untagged)
	}
}
