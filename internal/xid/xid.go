package xid

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a prefixed, time-ordered identifier such as
// "sale-01913b6e-...". UUIDv7 keeps ids sortable by creation time.
func New(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return prefix + "-" + id.String()
}

// Valid reports whether id has the given prefix followed by a UUID.
func Valid(prefix string, id string) bool {
	rest, ok := strings.CutPrefix(id, prefix+"-")
	if !ok {
		return false
	}
	return uuid.Validate(rest) == nil
}
