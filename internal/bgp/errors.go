package bgp

import "github.com/route-beacon/mrtkit/internal/wire"

// Re-exported so callers of this package never need to import wire
// directly just to classify a decode error.
var (
	ErrNotEnoughBytes = wire.ErrNotEnoughBytes
)

// NewParseError builds a structural-violation error with a formatted
// message, matching the style of the teacher's "bgp: attr header truncated
// at offset %d" messages.
func NewParseError(format string, args ...any) error {
	return wire.NewParseError(format, args...)
}
