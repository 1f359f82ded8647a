package ports

import "context"

// InboxTransfer drains the local inbox towards the host.
type InboxTransfer interface {
	// Flush returns how many files were confirmed transferred.
	// Files that failed stay queued for the next attempt.
	Flush(ctx context.Context) int

	// SizeBytes returns the total size of the queued files.
	SizeBytes() int64
}
