package domain

import (
	"context"
	"time"
)

// TransitionEvent describes a committed state change.
type TransitionEvent struct {
	Timestamp time.Time `json:"timestamp"`
	From      HostState `json:"from"`
	To        HostState `json:"to"`
	Forced    bool      `json:"forced,omitempty"`
	// Source names the caller that requested the change (heartbeat, handshake, wol...).
	Source string `json:"source,omitempty"`
}

// RejectionEvent describes a transition request refused by the graph.
type RejectionEvent struct {
	Timestamp time.Time `json:"timestamp"`
	From      HostState `json:"from"`
	To        HostState `json:"to"`
	Source    string    `json:"source,omitempty"`
}

// LifecycleHooks defines callbacks for state machine observability.
// Hooks run synchronously after the state lock is released.
type LifecycleHooks struct {
	OnTransition func(context.Context, *TransitionEvent)
	OnReject     func(context.Context, *RejectionEvent)
}
