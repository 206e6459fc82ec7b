package database

import (
	"crypto/rand"
	"sync"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMx sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a ULID. IDs made by one process sort in creation order,
// even within the same millisecond.
func NewID() (string, error) {
	entropyMx.Lock()
	defer entropyMx.Unlock()

	id, err := ulid.New(ulid.Timestamp(Now()), entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}
