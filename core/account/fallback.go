package account

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	errs "arbor/core/errors"
	"arbor/core/types"
)

// HandleFallback routes a call for a selector the account itself does not
// implement to the installed fallback handler for that selector.
func (a *Account) HandleFallback(ctx context.Context, caller common.Address, selector [4]byte, data []byte) ([]byte, error) {
	a.mu.Lock()
	addr, ok := a.fallbacks[selector]
	a.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: no fallback handler for selector %x", errs.ErrInvalidModule, selector)
	}
	instance, ok := a.registry.Get(types.ModuleTypeFallback, addr)
	if !ok {
		return nil, fmt.Errorf("%w: fallback handler %s vanished from the registry", errs.ErrInvalidModule, addr.Hex())
	}
	return instance.(FallbackHandler).HandleFallback(ctx, caller, selector, data)
}
