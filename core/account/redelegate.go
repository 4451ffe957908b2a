package account

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"arbor/core/logger"
	"arbor/core/metrics"
	"arbor/core/types"
)

// purgeOrder lists the categories whose modules are evicted when the
// executable identity changes. Fallback selectors and pre-validation hooks
// are cleared with the registry reset that follows.
var purgeOrder = []types.ModuleType{
	types.ModuleTypeValidator,
	types.ModuleTypeExecutor,
	types.ModuleTypeHook,
}

// checkImplementation compares the presented executable identity against the
// recorded commitment and, on mismatch, purges all module trust before
// adopting the new identity. Trust configured under one implementation never
// survives into another.
func (a *Account) checkImplementation(ctx context.Context, implID common.Hash) error {
	a.mu.Lock()
	current := a.implID
	a.mu.Unlock()

	if current == (common.Hash{}) || current == implID {
		a.mu.Lock()
		a.implID = implID
		a.mu.Unlock()
		return nil
	}
	return a.OnRedelegation(ctx, implID)
}

// OnRedelegation evicts every installed module and adopts the new executable
// identity. Eviction is best effort: a failing uninstall callback is logged
// and counted but never blocks the purge, because a module must not be able
// to hold the account hostage across an implementation change. Initialization
// state is deliberately left intact, so the bootstrap fallback stays closed.
func (a *Account) OnRedelegation(ctx context.Context, implID common.Hash) error {
	ctx, span := a.tracer.Start(ctx, "Account.OnRedelegation", trace.WithAttributes(
		attribute.String("implementation", implID.Hex())))
	defer span.End()

	purged, failures := 0, 0
	for _, mt := range purgeOrder {
		for _, entry := range a.registry.List(mt) {
			mod, ok := entry.Instance.(Module)
			if !ok {
				continue
			}
			if err := mod.OnUninstall(ctx, nil); err != nil {
				failures++
				metrics.RedelegationPurgeCounter.WithLabelValues(mt.String(), "failed").Inc()
				logger.Warn(ctx, "Module uninstall callback failed during re-delegation purge",
					zap.String("module_type", mt.String()),
					zap.String("address", entry.Address.Hex()),
					zap.Error(err))
				continue
			}
			purged++
			metrics.RedelegationPurgeCounter.WithLabelValues(mt.String(), "success").Inc()
		}
	}

	a.registry.Reset()

	a.mu.Lock()
	a.implID = implID
	a.fallbacks = make(map[[4]byte]common.Address)
	a.mu.Unlock()

	logger.Info(ctx, "Account re-delegated",
		zap.String("implementation", implID.Hex()),
		zap.Int("purged", purged), zap.Int("failures", failures))
	a.bus.Publish(ctx, RedelegatedEvent{Implementation: implID, Purged: purged, Failures: failures})
	return nil
}
