/*
Package statemachine owns the single availability state of the host.

A Machine loads its {state, since} record on construction, validates every requested
change against the lifecycle graph in package domain and persists the result before
returning. It is the only arbiter between the heartbeat loop and the handshake handlers:
both call Transition and the machine serialises them with a mutex (and, when configured,
a distributed lock shared through the store).

Corrupt or missing records are never fatal; the machine starts as StateUnknown.
*/
package statemachine
