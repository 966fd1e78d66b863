package alarm

import (
	"crypto/subtle"

	"github.com/nerrad567/sentry-core/internal/device"
)

// SecretComparer compares a stored device secret against a candidate.
// The deployed device firmware stores PINs and change keys in plaintext,
// so the default comparer is a plain equality check. ConstantTimeComparer
// is the drop-in hardening step once firmware-side hashing lands.
type SecretComparer interface {
	Compare(stored, candidate string) bool
}

// PlaintextComparer compares secrets with plain string equality.
type PlaintextComparer struct{}

func (PlaintextComparer) Compare(stored, candidate string) bool {
	return stored == candidate
}

// ConstantTimeComparer compares secrets in constant time.
type ConstantTimeComparer struct{}

func (ConstantTimeComparer) Compare(stored, candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1
}

// Gate authorizes state-changing alarm operations. It holds no state
// beyond the comparison strategy and never mutates the device.
type Gate struct {
	comparer SecretComparer
}

// NewGate creates a credential gate. A nil comparer defaults to
// plaintext comparison.
func NewGate(comparer SecretComparer) *Gate {
	if comparer == nil {
		comparer = PlaintextComparer{}
	}
	return &Gate{comparer: comparer}
}

// AuthorizeToggle checks the credentials for an arm/disarm. The PIN is
// optional: when supplied, both it and the change key must match, with
// the PIN checked first so a caller holding neither secret learns only
// that the PIN was wrong. When absent, the change key alone authorizes
// and any mismatch reports change_key_required.
func (g *Gate) AuthorizeToggle(d *device.Device, pin, changeKey string) error {
	if pin == "" {
		if !g.comparer.Compare(d.ChangeKey, changeKey) {
			return &DeniedError{Reason: ReasonChangeKeyRequired}
		}
		return nil
	}
	if !g.comparer.Compare(d.PIN, pin) {
		return &DeniedError{Reason: ReasonInvalidPIN}
	}
	if !g.comparer.Compare(d.ChangeKey, changeKey) {
		return &DeniedError{Reason: ReasonInvalidChangeKey}
	}
	return nil
}

// AuthorizePinChange checks the credentials for a PIN change: the current
// PIN, the change key, and a well-formed replacement, in that order.
func (g *Gate) AuthorizePinChange(d *device.Device, oldPin, newPin, changeKey string) error {
	if !g.comparer.Compare(d.PIN, oldPin) {
		return &DeniedError{Reason: ReasonOldPinIncorrect}
	}
	if !g.comparer.Compare(d.ChangeKey, changeKey) {
		return &DeniedError{Reason: ReasonInvalidChangeKey}
	}
	if !device.IsValidPIN(newPin) {
		return &DeniedError{Reason: ReasonInvalidNewPIN}
	}
	return nil
}

// CheckPin reports whether the candidate matches the device PIN.
func (g *Gate) CheckPin(d *device.Device, pin string) bool {
	return g.comparer.Compare(d.PIN, pin)
}
