package domain

type SessionID string

type SessionStatus string

const (
	StatusStarting  SessionStatus = "starting"
	StatusRecording SessionStatus = "recording"
	StatusStopping  SessionStatus = "stopping"
	StatusStopped   SessionStatus = "stopped"
	StatusError     SessionStatus = "error"
	// StatusNotFound is a sentinel returned to polling callers instead of an
	// error when the session id is unknown.
	StatusNotFound SessionStatus = "not_found"
)
