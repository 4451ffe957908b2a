// Package sessionkey is a validator module granting time-bounded authority
// to delegated keys. Its user-operation verdict packs the session's validity
// window next to the failure bit instead of collapsing to a boolean, so the
// coordinator can enforce the bounds at execution time.
package sessionkey

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"arbor/core/sig"
	"arbor/core/types"
)

// grantLen is the packed size of one session grant in install data:
// key(20) | validAfter(8) | validUntil(8), big-endian seconds.
const grantLen = common.AddressLength + 8 + 8

// Session is one delegated key and its validity window. Zero bounds mean
// "immediately" and "forever" respectively.
type Session struct {
	Key        common.Address
	ValidAfter uint64
	ValidUntil uint64
}

// Validator holds the set of granted sessions.
type Validator struct {
	addr common.Address

	mu       sync.Mutex
	sessions map[common.Address]Session
}

// New returns a session-key validator living at addr.
func New(addr common.Address) *Validator {
	return &Validator{addr: addr, sessions: make(map[common.Address]Session)}
}

// Address returns the module's identity.
func (v *Validator) Address() common.Address { return v.addr }

// Version returns the module's semantic version.
func (v *Validator) Version() string { return "1.2.0" }

// IsModuleType reports support for the validator category only.
func (v *Validator) IsModuleType(mt types.ModuleType) bool {
	return mt == types.ModuleTypeValidator
}

// OnInstall accepts zero or more packed session grants.
func (v *Validator) OnInstall(_ context.Context, data []byte) error {
	if len(data)%grantLen != 0 {
		return fmt.Errorf("sessionkey: install data must be a multiple of %d bytes", grantLen)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	for len(data) > 0 {
		s := decodeGrant(data)
		v.sessions[s.Key] = s
		data = data[grantLen:]
	}
	return nil
}

// OnUninstall drops every session.
func (v *Validator) OnUninstall(context.Context, []byte) error {
	v.mu.Lock()
	v.sessions = make(map[common.Address]Session)
	v.mu.Unlock()
	return nil
}

// Grant adds or replaces a session after installation.
func (v *Validator) Grant(s Session) {
	v.mu.Lock()
	v.sessions[s.Key] = s
	v.mu.Unlock()
}

// Revoke removes a session key.
func (v *Validator) Revoke(key common.Address) {
	v.mu.Lock()
	delete(v.sessions, key)
	v.mu.Unlock()
}

func (v *Validator) session(key common.Address) (Session, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s, ok := v.sessions[key]
	return s, ok
}

// ValidateUserOp recovers the signing key and, when a session exists for it,
// returns the packed verdict carrying that session's validity window. The
// verdict does not consult the clock; time enforcement belongs to the
// coordinator.
func (v *Validator) ValidateUserOp(_ context.Context, op *types.UserOperation, digest common.Hash) (*big.Int, error) {
	signer, err := sig.RecoverSigner(digest, op.Signature)
	if err != nil {
		return types.ValidationFailed, nil
	}
	s, ok := v.session(signer)
	if !ok {
		return types.ValidationFailed, nil
	}
	return types.PackValidationData(false, s.ValidAfter, s.ValidUntil), nil
}

// ValidateSignature collapses to the magic value only for a session that is
// live right now; the direct surface has no channel for time bounds.
func (v *Validator) ValidateSignature(_ context.Context, _ common.Address, digest common.Hash, signature []byte) ([4]byte, error) {
	signer, err := sig.RecoverSigner(digest, signature)
	if err != nil {
		return types.MagicValueFail, nil
	}
	s, ok := v.session(signer)
	if !ok || !s.liveAt(uint64(time.Now().Unix())) {
		return types.MagicValueFail, nil
	}
	return types.MagicValueOK, nil
}

func (s Session) liveAt(now uint64) bool {
	if s.ValidAfter != 0 && now < s.ValidAfter {
		return false
	}
	if s.ValidUntil != 0 && now > s.ValidUntil {
		return false
	}
	return true
}

// EncodeGrant packs a session grant into the install-data layout.
func EncodeGrant(s Session) []byte {
	out := make([]byte, grantLen)
	copy(out, s.Key.Bytes())
	binary.BigEndian.PutUint64(out[common.AddressLength:], s.ValidAfter)
	binary.BigEndian.PutUint64(out[common.AddressLength+8:], s.ValidUntil)
	return out
}

func decodeGrant(data []byte) Session {
	return Session{
		Key:        common.BytesToAddress(data[:common.AddressLength]),
		ValidAfter: binary.BigEndian.Uint64(data[common.AddressLength : common.AddressLength+8]),
		ValidUntil: binary.BigEndian.Uint64(data[common.AddressLength+8 : grantLen]),
	}
}
