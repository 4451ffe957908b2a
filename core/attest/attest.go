// Package attest implements the external attestation gate consulted before
// a module is installed and before an executor-initiated execution runs. An
// attester can veto a (module, category) pair; the kernel never installs or
// dispatches through a vetoed module.
package attest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"arbor/core/types"
)

// ErrNotAttested is returned when the gate denies a (module, category) pair.
var ErrNotAttested = errors.New("attest: module not attested for category")

// Attester authorizes a module address for a category.
type Attester interface {
	Authorize(ctx context.Context, addr common.Address, mt types.ModuleType) error
}

// AllowAll is the default gate used when no attestation registry is
// configured. Every pair is authorized.
type AllowAll struct{}

func (AllowAll) Authorize(context.Context, common.Address, types.ModuleType) error { return nil }

// Registry is an approval-list attester: only explicitly approved
// (address, category) pairs pass the gate.
type Registry struct {
	mu       sync.RWMutex
	approved map[common.Address]map[types.ModuleType]bool
}

// NewRegistry returns an empty approval registry. With no approvals it
// denies everything.
func NewRegistry() *Registry {
	return &Registry{approved: make(map[common.Address]map[types.ModuleType]bool)}
}

// Approve marks a (module, category) pair as attested.
func (r *Registry) Approve(addr common.Address, mt types.ModuleType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.approved[addr] == nil {
		r.approved[addr] = make(map[types.ModuleType]bool)
	}
	r.approved[addr][mt] = true
}

// Revoke withdraws an attestation. Already-installed modules are unaffected;
// the kernel only consults the gate at install time and on executor entry.
func (r *Registry) Revoke(addr common.Address, mt types.ModuleType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.approved[addr], mt)
}

// IsApproved reports whether the pair is currently attested.
func (r *Registry) IsApproved(addr common.Address, mt types.ModuleType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.approved[addr][mt]
}

// Authorize implements Attester.
func (r *Registry) Authorize(_ context.Context, addr common.Address, mt types.ModuleType) error {
	if !r.IsApproved(addr, mt) {
		return fmt.Errorf("%w: %s as %s", ErrNotAttested, addr.Hex(), mt)
	}
	return nil
}
