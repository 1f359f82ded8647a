/*
Package ports defines the driven ports (interfaces) of the companion core.

These interfaces decouple the availability logic from concrete collaborators, so the
state machine, heartbeat and handshake can be exercised with substitutable fakes.

# Key Interfaces

  - StateStore: durable key-value persistence of the single state record.
  - DistributedLocker: serialises transitions across replicas sharing one store.
  - PowerTelemetry: latest power reading per device role, never blocking on I/O.
  - AliasSwitcher: points the failover DNS alias at an address.
  - HealthProber: one bounded liveness probe of the host.
  - InboxTransfer: mirrors the local inbox to the host with remove-on-success semantics.
  - SnapshotStore: keeps the single latest pre-shutdown snapshot.
*/
package ports
