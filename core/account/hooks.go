package account

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"arbor/core/logger"
	"arbor/core/types"
)

// withHook brackets a privileged operation with the installed hook module's
// pre- and post-checks. With no hook installed it is a passthrough.
//
// The pre-check sees the full call context and returns an opaque token. The
// post-check runs with that token and the outcome whenever the body
// completes — including bodies that caught unit failures under try
// semantics, which report clean=false. A propagating failure aborts the
// invocation before the post-check, matching fail-fast semantics everywhere
// else.
func (a *Account) withHook(ctx context.Context, caller common.Address, value *big.Int, data []byte, body func(context.Context) (clean bool, err error)) error {
	entries := a.registry.List(types.ModuleTypeHook)
	if len(entries) == 0 {
		_, err := body(ctx)
		return err
	}
	hook, ok := entries[0].Instance.(Hook)
	if !ok {
		// Registry writes are funneled through the installer, which checks
		// the contract; an entry of the wrong shape cannot happen short of
		// a programming error.
		logger.Error(ctx, "Installed hook does not satisfy the hook contract",
			zap.String("address", entries[0].Address.Hex()))
		_, err := body(ctx)
		return err
	}

	token, err := hook.PreCheck(ctx, caller, value, data)
	if err != nil {
		return err
	}
	clean, err := body(ctx)
	if err != nil {
		return err
	}
	return hook.PostCheck(ctx, token, clean)
}
