package imap

import (
	"sort"
	"strings"
)

// Standard system flags (RFC 3501 Section 2.3.2).
const (
	FlagSeen     = `\Seen`
	FlagAnswered = `\Answered`
	FlagFlagged  = `\Flagged`
	FlagDeleted  = `\Deleted`
	FlagDraft    = `\Draft`
	FlagRecent   = `\Recent`
)

// FlagsVocabulary is the FLAGS line advertised on SELECT/EXAMINE.
const FlagsVocabulary = `\Answered \Flagged \Deleted \Seen \Draft`

// Flag store modes for STORE/UID STORE.
const (
	FlagsReplace = "FLAGS"
	FlagsAdd     = "+FLAGS"
	FlagsRemove  = "-FLAGS"
)

// HasFlag reports whether flags contains name, comparing case-insensitively
// as clients are inconsistent about system flag casing.
func HasFlag(flags []string, name string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, name) {
			return true
		}
	}
	return false
}

// ApplyFlags computes the flag set resulting from a STORE operation. mode is
// one of FlagsReplace, FlagsAdd, FlagsRemove. \Recent is never client-settable
// and is preserved from the current set.
func ApplyFlags(current, change []string, mode string) []string {
	recent := HasFlag(current, FlagRecent)

	var result []string
	switch mode {
	case FlagsReplace:
		result = withoutFlag(change, FlagRecent)
	case FlagsAdd:
		result = withoutFlag(current, FlagRecent)
		for _, f := range change {
			if !strings.EqualFold(f, FlagRecent) && !HasFlag(result, f) {
				result = append(result, f)
			}
		}
	case FlagsRemove:
		for _, f := range withoutFlag(current, FlagRecent) {
			if !HasFlag(change, f) {
				result = append(result, f)
			}
		}
	default:
		result = withoutFlag(current, FlagRecent)
	}

	if recent {
		result = append(result, FlagRecent)
	}
	sort.Strings(result)
	return result
}

func withoutFlag(flags []string, name string) []string {
	var out []string
	for _, f := range flags {
		if !strings.EqualFold(f, name) {
			out = append(out, f)
		}
	}
	return out
}

// FormatFlags renders a parenthesized flag list for responses.
func FormatFlags(flags []string) string {
	return "(" + strings.Join(withoutNone(flags), " ") + ")"
}

func withoutNone(flags []string) []string {
	var out []string
	for _, f := range flags {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// ParseFlagList parses a parenthesized or bare flag list from command
// arguments, e.g. `(\Seen \Deleted)`.
func ParseFlagList(arg string) []string {
	arg = strings.Trim(arg, "()")
	return strings.Fields(arg)
}
