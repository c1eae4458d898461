package core

import (
	"errors"
	"fmt"
)

var (
	ErrConfig             = errors.New("missing credentials or project id")
	ErrDuplicateSession   = errors.New("session already exists for meeting code")
	ErrSessionNotFound    = errors.New("session not found")
	ErrLookup             = errors.New("meeting code could not be resolved")
	ErrNoActiveConference = errors.New("no active conference")
	ErrTransportInit      = errors.New("media transport init failed")
	ErrConnectTimeout     = errors.New("transport never reached connected")
	ErrNoMedia            = errors.New("no media tracks available")
	ErrNotRecording       = errors.New("no capture in progress")
	ErrProtocolDecode     = errors.New("control message decode failed")
)

// SignalingError carries the HTTP status and body of a failed offer/answer
// exchange so callers can tell configuration problems from transient ones.
type SignalingError struct {
	Status int
	Body   string
}

func (e *SignalingError) Error() string {
	return fmt.Sprintf("signaling exchange failed: status=%d body=%q", e.Status, e.Body)
}

// NegotiationError means the transport rejected a session description.
type NegotiationError struct {
	Stage string // "offer" or "answer"
	Cause error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("negotiation failed at %s: %v", e.Stage, e.Cause)
}

func (e *NegotiationError) Unwrap() error { return e.Cause }
