package tool

import "github.com/google/uuid"

// NewReferenceID generates the X-Reference-Id correlating a collection
// request across systems. The network requires a crypto-random UUID that is
// unique per attempt.
func NewReferenceID() string {
	return uuid.Must(uuid.NewRandom()).String()
}
