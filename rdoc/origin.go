package rdoc

import "github.com/google/uuid"

// Origin tags a write transaction with the source of its changes and rides
// on the committed record, so subscribers can avoid echoing a record back to
// where it came from. Opaque to this package; empty means unknown.
type Origin string

func NewOrigin() Origin {
	return Origin(uuid.NewString())
}
