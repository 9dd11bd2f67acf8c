package imap

import (
	"strings"
	"testing"
)

func TestApplyFlagsModes(t *testing.T) {
	current := []string{FlagSeen, FlagFlagged}

	got := ApplyFlags(current, []string{FlagDeleted}, FlagsAdd)
	if !HasFlag(got, FlagSeen) || !HasFlag(got, FlagFlagged) || !HasFlag(got, FlagDeleted) {
		t.Errorf("Expected +FLAGS to keep existing and add new, got %v", got)
	}

	got = ApplyFlags(current, []string{FlagSeen}, FlagsRemove)
	if HasFlag(got, FlagSeen) || !HasFlag(got, FlagFlagged) {
		t.Errorf("Expected -FLAGS to remove only the named flag, got %v", got)
	}

	got = ApplyFlags(current, []string{FlagDraft}, FlagsReplace)
	if len(got) != 1 || !HasFlag(got, FlagDraft) {
		t.Errorf("Expected FLAGS to replace the whole set, got %v", got)
	}
}

func TestApplyFlagsPreservesRecent(t *testing.T) {
	current := []string{FlagRecent, FlagSeen}

	got := ApplyFlags(current, []string{FlagDeleted}, FlagsReplace)
	if !HasFlag(got, FlagRecent) {
		t.Errorf("Expected \\Recent to survive replace, got %v", got)
	}

	// Clients cannot set \Recent themselves.
	got = ApplyFlags([]string{FlagSeen}, []string{FlagRecent}, FlagsAdd)
	if HasFlag(got, FlagRecent) {
		t.Errorf("Expected \\Recent to be unsettable, got %v", got)
	}
}

func TestHasFlagCaseInsensitive(t *testing.T) {
	flags := []string{`\seen`, `\FLAGGED`}
	if !HasFlag(flags, FlagSeen) || !HasFlag(flags, FlagFlagged) {
		t.Error("Expected flag comparison to ignore case")
	}
	if HasFlag(flags, FlagDeleted) {
		t.Error("Expected missing flag to be reported missing")
	}
}

func TestParseFlagList(t *testing.T) {
	got := ParseFlagList(`(\Seen \Deleted)`)
	if len(got) != 2 || got[0] != FlagSeen || got[1] != FlagDeleted {
		t.Errorf("Expected two flags, got %v", got)
	}
	if got := ParseFlagList("()"); len(got) != 0 {
		t.Errorf("Expected empty list, got %v", got)
	}
}

func TestParseFetchDataMacros(t *testing.T) {
	fd, err := ParseFetchData("ALL")
	if err != nil {
		t.Fatalf("ParseFetchData failed: %v", err)
	}
	if !fd.Flags || !fd.InternalDate || !fd.Size || !fd.Envelope || fd.Body {
		t.Errorf("Unexpected ALL expansion: %+v", fd)
	}

	fd, err = ParseFetchData("(FLAGS BODY.PEEK[])")
	if err != nil {
		t.Fatalf("ParseFetchData failed: %v", err)
	}
	if !fd.Flags || !fd.Body || !fd.Peek {
		t.Errorf("Unexpected item list expansion: %+v", fd)
	}

	if _, err := ParseFetchData("BOGUS"); err == nil {
		t.Error("Expected error for unsupported item")
	}
}

func TestFetchBodyMarksSeen(t *testing.T) {
	e, st := newTestEngine()
	s := loginSession(t, e)
	appendMessage(t, e, s, "INBOX", "")
	mustOK(t, e, s, &Command{Tag: "a2", Name: "SELECT", Args: []string{"INBOX"}})

	resp := mustOK(t, e, s, &Command{Tag: "a3", Name: "FETCH", Args: []string{"1", "BODY[]"}})
	if len(resp.Untagged) != 1 {
		t.Fatalf("Expected one FETCH response, got %v", resp.Untagged)
	}
	// The implicit flag change rides along in the same response.
	if !strings.Contains(resp.Untagged[0], `FLAGS (\Seen)`) {
		t.Errorf("Expected implicit \\Seen in FETCH response, got %q", resp.Untagged[0])
	}

	flags, err := st.Flags(NewMailboxID("alice", "INBOX"), 1)
	if err != nil {
		t.Fatalf("Flags failed: %v", err)
	}
	if !HasFlag(flags, FlagSeen) {
		t.Error("Expected body fetch to set \\Seen")
	}
}

func TestFetchPeekLeavesUnseen(t *testing.T) {
	e, st := newTestEngine()
	s := loginSession(t, e)
	appendMessage(t, e, s, "INBOX", "")
	mustOK(t, e, s, &Command{Tag: "a2", Name: "SELECT", Args: []string{"INBOX"}})

	mustOK(t, e, s, &Command{Tag: "a3", Name: "FETCH", Args: []string{"1", "BODY.PEEK[]"}})

	flags, err := st.Flags(NewMailboxID("alice", "INBOX"), 1)
	if err != nil {
		t.Fatalf("Flags failed: %v", err)
	}
	if HasFlag(flags, FlagSeen) {
		t.Error("Expected peek to leave \\Seen unset")
	}
}
