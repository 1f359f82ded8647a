/*
Package domain contains the core availability model for the balupi companion node.

It defines the lifecycle states of the host, the closed transition graph between them
and the value types exchanged with the outer adapters (state records, power readings).
This package is kept pure and free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - HostState: the lifecycle of the host (unknown, offline, booting, online, shutting_down).
  - StateRecord: the persisted {state, since} pair.
  - PowerReading: the latest wattage observed for a device role.
  - TransitionEvent: emitted to lifecycle hooks after every committed state change.
*/
package domain
