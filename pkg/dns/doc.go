// Package dns points the failover alias at whichever machine is serving.
//
// Failover implements the idempotent switch on top of a Backend: stale records for
// the known addresses are removed best-effort, then the record for the target is
// added. Only the add decides the outcome. Two backends exist: the Pi-hole v6 local
// DNS REST API and RFC 2136 dynamic updates against an authoritative server.
package dns
