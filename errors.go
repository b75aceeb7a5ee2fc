package copilot

import "errors"

// Sentinel errors returned by client and session operations.
var (
	ErrNotConnected    = errors.New("copilot: client not connected")
	ErrClientStopped   = errors.New("copilot: client stopped")
	ErrInvalidOptions  = errors.New("copilot: invalid client options")
	ErrInvalidTool     = errors.New("copilot: invalid tool")
	ErrProtocolVersion = errors.New("copilot: SDK protocol version mismatch")
	ErrSessionNotFound = errors.New("copilot: session not found")
	ErrSessionError    = errors.New("copilot: session error")
	ErrPromptBlocked   = errors.New("copilot: prompt blocked by hook")
)
