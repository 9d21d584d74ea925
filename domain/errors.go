package domain

import "errors"

// Session errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrAlreadyPending  = errors.New("verification already in progress")
	ErrEmptyAnswer     = errors.New("answer buffer is empty")
	ErrEmptyBuffer     = errors.New("nothing to delete")
)

// Authorization errors
var (
	ErrPermissionDenied = errors.New("permission denied")
)

// Broadcast errors
var (
	ErrNoStagedBroadcast = errors.New("no staged broadcast")
	ErrBroadcastRunning  = errors.New("broadcast already in progress")
)

// Gateway errors
var (
	ErrGatewayUnavailable = errors.New("gateway unavailable")
)
