package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a device key or ID does not exist.
	ErrNotFound = errors.New("device: not found")

	// ErrExists is returned when creating a device with a key that already exists.
	ErrExists = errors.New("device: already exists")

	// ErrInvalidKey is returned when a device key is empty.
	ErrInvalidKey = errors.New("device: invalid key")

	// ErrInvalidPIN is returned when a PIN is not exactly 4 digits.
	ErrInvalidPIN = errors.New("device: invalid pin")

	// ErrInvalidChangeKey is returned when a change key is empty.
	ErrInvalidChangeKey = errors.New("device: invalid change key")

	// ErrInvalidTrigger is returned when a trigger marker kind is not recognised.
	ErrInvalidTrigger = errors.New("device: invalid trigger kind")
)
