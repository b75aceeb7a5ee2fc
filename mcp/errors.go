package mcp

import "errors"

// ErrInvalidConfig is returned when a ServerConfig is missing required
// fields for its transport type.
var ErrInvalidConfig = errors.New("mcp: invalid server config")
