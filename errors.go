package emberclear

import "errors"

// Common errors for the connection manager
var (
	// ErrNoIdentity indicates no usable key pair is available
	ErrNoIdentity = errors.New("no identity available")

	// ErrNotConnected indicates no joined channel exists
	ErrNotConnected = errors.New("not connected to relay")
)
