package ports

import (
	"errors"
	"time"
)

// ErrNoSnapshot is returned when no snapshot has been stored yet.
var ErrNoSnapshot = errors.New("no snapshot available")

// SnapshotStore keeps the latest snapshot handed over by the host. There is no history.
type SnapshotStore interface {
	// Put overwrites the stored snapshot with data, verbatim.
	Put(data []byte) error

	// Get returns the stored snapshot bytes or ErrNoSnapshot.
	Get() ([]byte, error)

	// LastModified returns when the snapshot was written, or ok=false if none exists.
	LastModified() (t time.Time, ok bool)
}
