// Package ecdsa is a single-owner validator module: a user operation or a
// direct signature is authorized exactly when it was signed by the
// configured owner key.
package ecdsa

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"arbor/core/sig"
	"arbor/core/types"
)

// Validator authorizes by recoverable signature against one owner address.
type Validator struct {
	addr common.Address

	mu    sync.Mutex
	owner common.Address
}

// New returns a validator module living at addr. The owner is set at
// install time.
func New(addr common.Address) *Validator {
	return &Validator{addr: addr}
}

// Address returns the module's identity.
func (v *Validator) Address() common.Address { return v.addr }

// Version returns the module's semantic version.
func (v *Validator) Version() string { return "1.0.0" }

// IsModuleType reports support for the validator category only.
func (v *Validator) IsModuleType(mt types.ModuleType) bool {
	return mt == types.ModuleTypeValidator
}

// OnInstall expects the 20-byte owner address as install data.
func (v *Validator) OnInstall(_ context.Context, data []byte) error {
	if len(data) < common.AddressLength {
		return fmt.Errorf("ecdsa: install data must carry a %d-byte owner address", common.AddressLength)
	}
	owner := common.BytesToAddress(data[:common.AddressLength])
	if owner == (common.Address{}) {
		return fmt.Errorf("ecdsa: zero owner address")
	}
	v.mu.Lock()
	v.owner = owner
	v.mu.Unlock()
	return nil
}

// OnUninstall clears the owner.
func (v *Validator) OnUninstall(context.Context, []byte) error {
	v.mu.Lock()
	v.owner = common.Address{}
	v.mu.Unlock()
	return nil
}

// Owner returns the configured owner address.
func (v *Validator) Owner() common.Address {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.owner
}

// ValidateUserOp returns the boolean verdict: zero when the operation digest
// was signed by the owner, one otherwise.
func (v *Validator) ValidateUserOp(_ context.Context, op *types.UserOperation, digest common.Hash) (*big.Int, error) {
	signer, err := sig.RecoverSigner(digest, op.Signature)
	if err != nil {
		return types.ValidationFailed, nil
	}
	if signer != v.Owner() {
		return types.ValidationFailed, nil
	}
	return types.ValidationSucceeded, nil
}

// ValidateSignature returns the success magic when the digest was signed by
// the owner. The caller identity does not participate; ownership is global.
func (v *Validator) ValidateSignature(_ context.Context, _ common.Address, digest common.Hash, signature []byte) ([4]byte, error) {
	signer, err := sig.RecoverSigner(digest, signature)
	if err != nil || signer != v.Owner() {
		return types.MagicValueFail, nil
	}
	return types.MagicValueOK, nil
}
