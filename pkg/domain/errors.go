package domain

import "errors"

// ErrStateNotFound is returned by a store when no state record has been written yet.
var ErrStateNotFound = errors.New("state record not found")

// ErrInvalidState is returned when a state name or record cannot be interpreted.
var ErrInvalidState = errors.New("invalid host state")

// ErrTransitionRejected is returned when an edge is not part of the lifecycle graph.
var ErrTransitionRejected = errors.New("transition rejected")
