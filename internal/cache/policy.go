package cache

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PolicyKind selects how the cache bounds its size.
type PolicyKind int

const (
	// PolicyUnbounded keeps every entry forever.
	PolicyUnbounded PolicyKind = iota
	// PolicyMaxEntries keeps the most recently used entries up to a count.
	PolicyMaxEntries
	// PolicyMaxAge treats entries older than a duration as missing.
	PolicyMaxAge
)

// Policy is the eviction policy applied to both cache tiers.
type Policy struct {
	Kind       PolicyKind
	MaxEntries int
	MaxAge     time.Duration
}

// Unbounded returns the default policy, which never evicts.
func Unbounded() Policy {
	return Policy{Kind: PolicyUnbounded}
}

// MaxEntries bounds each tier to n entries, dropping the least recently
// used first. Non-positive n means unbounded.
func MaxEntries(n int) Policy {
	if n <= 0 {
		return Unbounded()
	}
	return Policy{Kind: PolicyMaxEntries, MaxEntries: n}
}

// MaxAge expires entries older than d. Non-positive d means unbounded.
func MaxAge(d time.Duration) Policy {
	if d <= 0 {
		return Unbounded()
	}
	return Policy{Kind: PolicyMaxAge, MaxAge: d}
}

func (p Policy) String() string {
	switch p.Kind {
	case PolicyMaxEntries:
		return fmt.Sprintf("max-entries:%d", p.MaxEntries)
	case PolicyMaxAge:
		return "max-age:" + p.MaxAge.String()
	default:
		return "unbounded"
	}
}

// ParsePolicy reads the textual form used in config files and flags:
// "unbounded", "max-entries:<n>" or "max-age:<duration>". The value may also
// be separated by "=".
func ParsePolicy(s string) (Policy, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "unbounded" {
		return Unbounded(), nil
	}

	kind, value, ok := strings.Cut(s, ":")
	if !ok {
		kind, value, ok = strings.Cut(s, "=")
	}
	if !ok {
		return Policy{}, fmt.Errorf("invalid cache policy %q", s)
	}

	kind, value = strings.TrimSpace(kind), strings.TrimSpace(value)
	switch kind {
	case "max-entries":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return Policy{}, fmt.Errorf("invalid max-entries value %q", value)
		}
		return MaxEntries(n), nil
	case "max-age":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return Policy{}, fmt.Errorf("invalid max-age value %q", value)
		}
		return MaxAge(d), nil
	default:
		return Policy{}, fmt.Errorf("unknown cache policy %q", kind)
	}
}

func (p Policy) expired(storedAt, now time.Time) bool {
	return p.Kind == PolicyMaxAge && now.Sub(storedAt) > p.MaxAge
}

func (p Policy) memoryLimit() int {
	if p.Kind == PolicyMaxEntries {
		return p.MaxEntries
	}
	return 0
}
