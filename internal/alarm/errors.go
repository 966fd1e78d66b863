package alarm

import "errors"

// Domain errors for the alarm package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, alarm.ErrDeviceInactive) {
//	    // handle inactive device
//	}
var (
	// ErrDeviceNotFound is returned when the device key does not resolve.
	ErrDeviceNotFound = errors.New("alarm: device not found")

	// ErrDeviceInactive is returned when the device exists but has been
	// administratively deactivated. No operation touches inactive devices.
	ErrDeviceInactive = errors.New("alarm: device inactive")

	// ErrUnknownCategory is returned when an ingested category is outside
	// the closed set of reportable raw categories.
	ErrUnknownCategory = errors.New("alarm: unknown event category")
)

// Denial reasons carried by DeniedError. These are stable machine-readable
// strings: API clients branch on them, so they never change.
const (
	ReasonInvalidPIN        = "invalid_pin"
	ReasonInvalidChangeKey  = "invalid_change_key"
	ReasonChangeKeyRequired = "change_key_required"
	ReasonOldPinIncorrect   = "old_pin_incorrect"
	ReasonInvalidNewPIN     = "invalid_new_pin"
)

// DeniedError is returned when the credential gate refuses an operation.
// The device state is never mutated when a DeniedError is returned.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	return "alarm: authorization denied: " + e.Reason
}

// IsDenied reports whether err is a credential denial, returning the
// typed error when it is.
func IsDenied(err error) (*DeniedError, bool) {
	var denied *DeniedError
	if errors.As(err, &denied) {
		return denied, true
	}
	return nil, false
}
