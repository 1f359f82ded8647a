package ports

import "context"

// AliasSwitcher points the failover alias at an address.
type AliasSwitcher interface {
	// PointAliasAt returns true when the alias now resolves to ip.
	// Transport failures are reported as false, never as a panic.
	PointAliasAt(ctx context.Context, ip string) bool
}
