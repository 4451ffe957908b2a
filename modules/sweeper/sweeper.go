// Package sweeper is an executor module that drains account funds to a
// configured beneficiary through the executor-gated execution entry point.
package sweeper

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"arbor/core/codec"
	"arbor/core/types"
)

// Kernel is the slice of the account surface the sweeper drives.
type Kernel interface {
	ExecuteFromExecutor(ctx context.Context, caller common.Address, mode types.ExecMode, payload []byte) ([]types.ExecutionResult, error)
}

// Sweeper is the module instance.
type Sweeper struct {
	addr common.Address

	mu          sync.Mutex
	beneficiary common.Address
}

// New returns a sweeper living at addr. The beneficiary is set at install
// time.
func New(addr common.Address) *Sweeper {
	return &Sweeper{addr: addr}
}

// Address returns the module's identity.
func (s *Sweeper) Address() common.Address { return s.addr }

// Version returns the module's semantic version.
func (s *Sweeper) Version() string { return "0.9.0" }

// IsModuleType reports support for the executor category only.
func (s *Sweeper) IsModuleType(mt types.ModuleType) bool {
	return mt == types.ModuleTypeExecutor
}

// OnInstall expects the 20-byte beneficiary address as install data.
func (s *Sweeper) OnInstall(_ context.Context, data []byte) error {
	if len(data) < common.AddressLength {
		return fmt.Errorf("sweeper: install data must carry a %d-byte beneficiary address", common.AddressLength)
	}
	beneficiary := common.BytesToAddress(data[:common.AddressLength])
	if beneficiary == (common.Address{}) {
		return fmt.Errorf("sweeper: zero beneficiary address")
	}
	s.mu.Lock()
	s.beneficiary = beneficiary
	s.mu.Unlock()
	return nil
}

// OnUninstall clears the beneficiary.
func (s *Sweeper) OnUninstall(context.Context, []byte) error {
	s.mu.Lock()
	s.beneficiary = common.Address{}
	s.mu.Unlock()
	return nil
}

// Beneficiary returns the configured destination address.
func (s *Sweeper) Beneficiary() common.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beneficiary
}

// Sweep transfers the given amounts to the beneficiary as one try-mode
// batch: a failing transfer is reported in its result slot without blocking
// the rest.
func (s *Sweeper) Sweep(ctx context.Context, kernel Kernel, amounts []*big.Int) ([]types.ExecutionResult, error) {
	beneficiary := s.Beneficiary()
	if beneficiary == (common.Address{}) {
		return nil, fmt.Errorf("sweeper: not installed")
	}
	execs := make([]types.Execution, 0, len(amounts))
	for _, amount := range amounts {
		execs = append(execs, types.Execution{Target: beneficiary, Value: amount})
	}
	payload, err := codec.EncodeBatch(execs)
	if err != nil {
		return nil, fmt.Errorf("sweeper: encode batch: %w", err)
	}
	mode := types.EncodeMode(types.CallTypeBatch, types.ExecTypeTry)
	return kernel.ExecuteFromExecutor(ctx, s.addr, mode, payload)
}
