// Package session provides the session key domain type.
package session

import (
	"strings"

	"github.com/osa030/19remote/internal/domain/fault"
)

// Key identifies one independently controlled playback context
// (a guild id in the chat-bot deployment). Keys are opaque: numeric ids
// are carried as their decimal text.
type Key string

// maxKeyLen bounds keys taken from request paths.
const maxKeyLen = 128

// ParseKey validates a raw key taken from the outside world.
func ParseKey(raw string) (Key, error) {
	k := strings.TrimSpace(raw)
	if k == "" {
		return "", fault.InvalidArgumentf("session key is required")
	}
	if len(k) > maxKeyLen {
		return "", fault.InvalidArgumentf("session key exceeds %d bytes", maxKeyLen)
	}
	return Key(k), nil
}

// String returns the key text.
func (k Key) String() string {
	return string(k)
}
