package imap

import (
	"strconv"
	"strings"
)

// IdRange is one inclusive range from a sequence set. A single number is a
// range with Low == High. `*` is resolved to the largest known value in the
// addressed domain (UID or MSN) at parse time.
type IdRange struct {
	Low  int64
	High int64
}

// Includes tests Low <= v <= High.
func (r IdRange) Includes(v int64) bool {
	return r.Low <= v && v <= r.High
}

// IdSet is the union of its ranges. Membership ignores the order ranges
// were written in; resolution against a domain always yields ascending,
// deduplicated values.
type IdSet []IdRange

// Includes reports whether v falls into any range of the set.
func (s IdSet) Includes(v int64) bool {
	for _, r := range s {
		if r.Includes(v) {
			return true
		}
	}
	return false
}

// ParseIdSet parses an RFC 3501 sequence set, e.g. "1", "2:4,7,9:*".
// largest is substituted for `*`. Range endpoints may be written in either
// order ("4:2" equals "2:4"). Values must be positive; 0 is reserved.
func ParseIdSet(spec string, largest int64) (IdSet, error) {
	var set IdSet
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, protocolErrorf("empty element in sequence set %q", spec)
		}
		low, high := part, part
		if i := strings.Index(part, ":"); i >= 0 {
			low, high = part[:i], part[i+1:]
		}
		lo, err := parseSeqNumber(low, largest)
		if err != nil {
			return nil, err
		}
		hi, err := parseSeqNumber(high, largest)
		if err != nil {
			return nil, err
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		set = append(set, IdRange{Low: lo, High: hi})
	}
	return set, nil
}

func parseSeqNumber(s string, largest int64) (int64, error) {
	if s == "*" {
		return largest, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, protocolErrorf("invalid sequence number %q", s)
	}
	return n, nil
}

// Select returns the members of domain covered by the set, in domain order
// with duplicates removed. domain must already be ascending.
func (s IdSet) Select(domain []int64) []int64 {
	var out []int64
	for _, v := range domain {
		if s.Includes(v) && (len(out) == 0 || out[len(out)-1] != v) {
			out = append(out, v)
		}
	}
	return out
}
