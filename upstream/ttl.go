package upstream

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// TTLKind discriminates the TTL variants.
type TTLKind uint8

const (
	// TTLNoCache means the response must not be stored. It is the zero kind.
	TTLNoCache TTLKind = iota
	// TTLSeconds means the response expires after a fixed number of seconds.
	TTLSeconds
	// TTLNoExpire means the response never expires.
	TTLNoExpire
	// TTLNoExpireIfIrreversible means the response never expires once the
	// block it describes is irreversible, and is not stored before that.
	TTLNoExpireIfIrreversible
)

// Legacy integer encodings of the non-duration variants.
const (
	legacyNoExpire               = 0
	legacyNoCache                = -1
	legacyNoExpireIfIrreversible = -2
)

// TTL is a cache expiration policy.
//
// The zero value is NoCache.
type TTL struct {
	kind    TTLKind
	seconds int
}

// Predefined non-duration TTLs.
var (
	NoCache                = TTL{kind: TTLNoCache}
	NoExpire               = TTL{kind: TTLNoExpire}
	NoExpireIfIrreversible = TTL{kind: TTLNoExpireIfIrreversible}
)

// Seconds returns a TTL expiring after n seconds. n must be positive.
func Seconds(n int) TTL {
	return TTL{kind: TTLSeconds, seconds: n}
}

// FromLegacy converts the legacy integer encoding:
// n > 0 seconds, 0 no expire, -1 no cache, -2 no expire if irreversible.
func FromLegacy(n int) (TTL, error) {
	switch {
	case n > 0:
		return Seconds(n), nil
	case n == legacyNoExpire:
		return NoExpire, nil
	case n == legacyNoCache:
		return NoCache, nil
	case n == legacyNoExpireIfIrreversible:
		return NoExpireIfIrreversible, nil
	}
	return TTL{}, fmt.Errorf("%w: %d", ErrInvalidTTL, n)
}

// ParseTTL parses the string names of the variants, or a legacy integer.
func ParseTTL(s string) (TTL, error) {
	switch s {
	case "no_expire":
		return NoExpire, nil
	case "no_cache":
		return NoCache, nil
	case "no_expire_if_irreversible":
		return NoExpireIfIrreversible, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return TTL{}, fmt.Errorf("%w: %q", ErrInvalidTTL, s)
	}
	return FromLegacy(n)
}

// Kind returns the variant.
func (t TTL) Kind() TTLKind { return t.kind }

// Duration returns the expiry for TTLSeconds and 0 (never expires) for
// everything else.
func (t TTL) Duration() time.Duration {
	if t.kind != TTLSeconds {
		return 0
	}
	return time.Duration(t.seconds) * time.Second
}

// Cacheable reports whether the TTL can ever lead to a stored value.
func (t TTL) Cacheable() bool {
	return t.kind != TTLNoCache
}

// Legacy returns the legacy integer encoding.
func (t TTL) Legacy() int {
	switch t.kind {
	case TTLSeconds:
		return t.seconds
	case TTLNoExpire:
		return legacyNoExpire
	case TTLNoExpireIfIrreversible:
		return legacyNoExpireIfIrreversible
	default:
		return legacyNoCache
	}
}

// String implements fmt.Stringer.
func (t TTL) String() string {
	switch t.kind {
	case TTLSeconds:
		return strconv.Itoa(t.seconds) + "s"
	case TTLNoExpire:
		return "no_expire"
	case TTLNoExpireIfIrreversible:
		return "no_expire_if_irreversible"
	default:
		return "no_cache"
	}
}

// MarshalJSON encodes durations as integers and the other variants by name.
func (t TTL) MarshalJSON() ([]byte, error) {
	if t.kind == TTLSeconds {
		return []byte(strconv.Itoa(t.seconds)), nil
	}
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts either the legacy integer or a variant name.
func (t *TTL) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseTTL(s)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTTL, data)
	}
	parsed, err := FromLegacy(n)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
