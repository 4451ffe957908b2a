package types

import "math/big"

// ValidationData is the verdict returned by the transaction-authorization
// surface. Zero means success, one means signature failure; any other value
// is a module-specific encoding that packs time bounds next to the failure
// bit: failed(1 bit) | validUntil(48 bits << 160) | validAfter(48 bits << 208).
// Callers must interpret module-specific encodings themselves.
var (
	ValidationSucceeded = big.NewInt(0)
	ValidationFailed    = big.NewInt(1)
)

// ERC-1271 style verdicts for the direct-signature surface.
var (
	// MagicValueOK is returned when a signature verifies.
	MagicValueOK = [4]byte{0x16, 0x26, 0xba, 0x7e}
	// MagicValueFail is the conventional all-ones rejection value.
	MagicValueFail = [4]byte{0xff, 0xff, 0xff, 0xff}
)

// PackValidationData encodes a time-bounded verdict. A zero validUntil means
// "forever"; a zero validAfter means "immediately".
func PackValidationData(sigFailed bool, validAfter, validUntil uint64) *big.Int {
	v := new(big.Int)
	if sigFailed {
		v.SetUint64(1)
	}
	until := new(big.Int).Lsh(new(big.Int).SetUint64(validUntil&timeBoundMask), 160)
	after := new(big.Int).Lsh(new(big.Int).SetUint64(validAfter&timeBoundMask), 208)
	v.Or(v, until)
	return v.Or(v, after)
}

// UnpackValidationData splits a verdict back into its components.
func UnpackValidationData(v *big.Int) (sigFailed bool, validAfter, validUntil uint64) {
	if v == nil {
		return false, 0, 0
	}
	sigFailed = v.Bit(0) == 1
	validUntil = new(big.Int).Rsh(v, 160).Uint64() & timeBoundMask
	validAfter = new(big.Int).Rsh(v, 208).Uint64() & timeBoundMask
	return sigFailed, validAfter, validUntil
}

// timeBoundMask keeps each time bound within its 48-bit field.
const timeBoundMask = (1 << 48) - 1
