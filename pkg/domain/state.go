package domain

import (
	"fmt"
	"time"
)

// HostState is the lifecycle state of the host.
type HostState string

const (
	StateUnknown      HostState = "unknown"
	StateOffline      HostState = "offline"
	StateBooting      HostState = "booting"
	StateOnline       HostState = "online"
	StateShuttingDown HostState = "shutting_down"
)

// States lists every HostState in declaration order.
var States = []HostState{
	StateUnknown,
	StateOffline,
	StateBooting,
	StateOnline,
	StateShuttingDown,
}

// transitions is the adjacency table of the lifecycle graph.
// Same-state requests are handled by the caller as a no-op and are not listed here.
var transitions = map[HostState]map[HostState]struct{}{
	StateUnknown:      {StateOnline: {}, StateOffline: {}},
	StateOffline:      {StateBooting: {}, StateOnline: {}},
	StateBooting:      {StateOnline: {}, StateOffline: {}},
	StateOnline:       {StateShuttingDown: {}, StateOffline: {}},
	StateShuttingDown: {StateOffline: {}, StateOnline: {}},
}

// Valid reports whether s is one of the declared states.
func (s HostState) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// String implements fmt.Stringer.
func (s HostState) String() string {
	return string(s)
}

// CanTransition reports whether the edge from -> to exists in the graph.
func CanTransition(from, to HostState) bool {
	next, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// NextStates returns the targets reachable from s, in declaration order.
func NextStates(s HostState) []HostState {
	var out []HostState
	for _, candidate := range States {
		if CanTransition(s, candidate) {
			out = append(out, candidate)
		}
	}
	return out
}

// ParseHostState converts a stored name back into a HostState.
func ParseHostState(name string) (HostState, error) {
	s := HostState(name)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidState, name)
	}
	return s, nil
}

// StateRecord is the durable form of the machine: the current state and when it was entered.
type StateRecord struct {
	State HostState `json:"state"`
	Since time.Time `json:"since"`
}

// Validate checks that the record can be restored.
func (r StateRecord) Validate() error {
	if !r.State.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidState, r.State)
	}
	if r.Since.IsZero() {
		return fmt.Errorf("%w: missing since timestamp", ErrInvalidState)
	}
	return nil
}
