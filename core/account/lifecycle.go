package account

import (
	"context"
	"fmt"
	"math/big"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	errs "arbor/core/errors"
	"arbor/core/logger"
	"arbor/core/metrics"
	"arbor/core/types"
)

// InstallModule installs a module under a category. The caller must pass
// the module-management predicate; the operation is hook-wrapped and gated
// by the attestation registry. The module must self-report support for the
// requested category, checked before the attestation gate so a mismatch
// fails identically regardless of gate outcome.
func (a *Account) InstallModule(ctx context.Context, caller common.Address, mt types.ModuleType, mod Module, initData []byte) error {
	if !a.policy.CanManageModules(caller) {
		return fmt.Errorf("%w: %s may not install modules", errs.ErrUnauthorized, caller.Hex())
	}
	if !types.KnownModuleType(mt) {
		metrics.ModuleInstallCounter.WithLabelValues(mt.String(), "failed").Inc()
		return fmt.Errorf("%w: %s", errs.ErrUnsupportedModuleType, mt)
	}
	ctx, span := a.tracer.Start(ctx, "Account.InstallModule", trace.WithAttributes(
		attribute.String("module.type", mt.String()),
		attribute.String("module.address", mod.Address().Hex())))
	defer span.End()

	err := a.withHook(ctx, caller, big.NewInt(0), initData, func(ctx context.Context) (bool, error) {
		return true, a.installModule(ctx, mt, mod, initData)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.ModuleInstallCounter.WithLabelValues(mt.String(), "failed").Inc()
		return err
	}
	metrics.ModuleInstallCounter.WithLabelValues(mt.String(), "success").Inc()
	logger.Info(ctx, "Module installed",
		zap.String("module_type", mt.String()), zap.String("address", mod.Address().Hex()))
	a.bus.Publish(ctx, ModuleInstalledEvent{ModuleType: mt, Address: mod.Address()})
	return nil
}

func (a *Account) installModule(ctx context.Context, mt types.ModuleType, mod Module, initData []byte) error {
	if !mod.IsModuleType(mt) {
		return fmt.Errorf("%w: %s does not support %s", errs.ErrMismatchModuleType, mod.Address().Hex(), mt)
	}
	if _, err := semver.NewVersion(mod.Version()); err != nil {
		return fmt.Errorf("module %s has invalid version %q: %w", mod.Address().Hex(), mod.Version(), err)
	}
	if err := a.attester.Authorize(ctx, mod.Address(), mt); err != nil {
		return err
	}

	switch mt {
	case types.ModuleTypeValidator:
		if _, ok := mod.(Validator); !ok {
			return fmt.Errorf("%w: %s lacks the validator contract", errs.ErrMismatchModuleType, mod.Address().Hex())
		}
		return a.addAndInit(ctx, mt, mod, initData)

	case types.ModuleTypeExecutor:
		if _, ok := mod.(Executor); !ok {
			return fmt.Errorf("%w: %s lacks the executor contract", errs.ErrMismatchModuleType, mod.Address().Hex())
		}
		return a.addAndInit(ctx, mt, mod, initData)

	case types.ModuleTypeFallback:
		handler, ok := mod.(FallbackHandler)
		if !ok {
			return fmt.Errorf("%w: %s lacks the fallback contract", errs.ErrMismatchModuleType, mod.Address().Hex())
		}
		return a.installFallback(ctx, handler, initData)

	case types.ModuleTypeHook:
		if _, ok := mod.(Hook); !ok {
			return fmt.Errorf("%w: %s lacks the hook contract", errs.ErrMismatchModuleType, mod.Address().Hex())
		}
		return a.addAndInit(ctx, mt, mod, initData)

	default: // the two pre-validation hook categories
		if _, ok := mod.(PreValidationHook); !ok {
			return fmt.Errorf("%w: %s lacks the pre-validation hook contract", errs.ErrMismatchModuleType, mod.Address().Hex())
		}
		return a.addAndInit(ctx, mt, mod, initData)
	}
}

// addAndInit adds the module to the registry and runs its install callback,
// rolling the registry entry back if the callback fails.
func (a *Account) addAndInit(ctx context.Context, mt types.ModuleType, mod Module, initData []byte) error {
	if err := a.registry.Add(mt, mod.Address(), mod); err != nil {
		return err
	}
	if err := mod.OnInstall(ctx, initData); err != nil {
		if _, rerr := a.registry.Remove(mt, mod.Address()); rerr != nil {
			logger.Error(ctx, "Failed to roll back registry entry after install callback failure",
				zap.String("address", mod.Address().Hex()), zap.Error(rerr))
		}
		return errs.Wrap(err, "module install callback")
	}
	return nil
}

// installFallback registers a fallback handler for the selector carried in
// the first 4 bytes of initData; the remainder is handed to the module.
func (a *Account) installFallback(ctx context.Context, handler FallbackHandler, initData []byte) error {
	if len(initData) < 4 {
		return errs.New("fallback install data must start with a 4-byte selector")
	}
	var selector [4]byte
	copy(selector[:], initData[:4])

	a.mu.Lock()
	if owner, taken := a.fallbacks[selector]; taken {
		a.mu.Unlock()
		return fmt.Errorf("selector %x already served by %s", selector, owner.Hex())
	}
	a.mu.Unlock()

	if err := a.addAndInit(ctx, types.ModuleTypeFallback, handler, initData[4:]); err != nil {
		return err
	}
	a.mu.Lock()
	a.fallbacks[selector] = handler.Address()
	a.mu.Unlock()
	return nil
}

// UninstallModule removes a module from a category. Same authorization and
// hook wrapping as install; no attestation gate.
func (a *Account) UninstallModule(ctx context.Context, caller common.Address, mt types.ModuleType, addr common.Address, deinitData []byte) error {
	if !a.policy.CanManageModules(caller) {
		return fmt.Errorf("%w: %s may not uninstall modules", errs.ErrUnauthorized, caller.Hex())
	}
	if !types.KnownModuleType(mt) {
		metrics.ModuleUninstallCounter.WithLabelValues(mt.String(), "failed").Inc()
		return fmt.Errorf("%w: %s", errs.ErrUnsupportedModuleType, mt)
	}
	ctx, span := a.tracer.Start(ctx, "Account.UninstallModule", trace.WithAttributes(
		attribute.String("module.type", mt.String()),
		attribute.String("module.address", addr.Hex())))
	defer span.End()

	err := a.withHook(ctx, caller, big.NewInt(0), deinitData, func(ctx context.Context) (bool, error) {
		return true, a.uninstallModule(ctx, mt, addr, deinitData)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.ModuleUninstallCounter.WithLabelValues(mt.String(), "failed").Inc()
		return err
	}
	metrics.ModuleUninstallCounter.WithLabelValues(mt.String(), "success").Inc()
	logger.Info(ctx, "Module uninstalled",
		zap.String("module_type", mt.String()), zap.String("address", addr.Hex()))
	a.bus.Publish(ctx, ModuleUninstalledEvent{ModuleType: mt, Address: addr})
	return nil
}

func (a *Account) uninstallModule(ctx context.Context, mt types.ModuleType, addr common.Address, deinitData []byte) error {
	instance, err := a.registry.Remove(mt, addr)
	if err != nil {
		return err
	}
	mod := instance.(Module)

	callbackData := deinitData
	if mt == types.ModuleTypeFallback {
		if len(deinitData) < 4 {
			a.reinstate(ctx, mt, addr, instance)
			return errs.New("fallback uninstall data must start with a 4-byte selector")
		}
		var selector [4]byte
		copy(selector[:], deinitData[:4])
		a.mu.Lock()
		if a.fallbacks[selector] != addr {
			a.mu.Unlock()
			a.reinstate(ctx, mt, addr, instance)
			return fmt.Errorf("selector %x is not served by %s", selector, addr.Hex())
		}
		delete(a.fallbacks, selector)
		a.mu.Unlock()
		callbackData = deinitData[4:]
	}

	if err := mod.OnUninstall(ctx, callbackData); err != nil {
		a.reinstate(ctx, mt, addr, instance)
		if mt == types.ModuleTypeFallback {
			var selector [4]byte
			copy(selector[:], deinitData[:4])
			a.mu.Lock()
			a.fallbacks[selector] = addr
			a.mu.Unlock()
		}
		return errs.Wrap(err, "module uninstall callback")
	}
	return nil
}

func (a *Account) reinstate(ctx context.Context, mt types.ModuleType, addr common.Address, instance any) {
	if err := a.registry.Add(mt, addr, instance); err != nil {
		logger.Error(ctx, "Failed to reinstate registry entry after uninstall failure",
			zap.String("address", addr.Hex()), zap.Error(err))
	}
}

// IsModuleInstalled is the pure installation query. For the fallback
// category the context argument carries the queried 4-byte selector.
// Unknown categories return false rather than failing.
func (a *Account) IsModuleInstalled(mt types.ModuleType, addr common.Address, context []byte) bool {
	switch mt {
	case types.ModuleTypeValidator, types.ModuleTypeExecutor, types.ModuleTypeHook,
		types.ModuleTypePreValidationHookSig, types.ModuleTypePreValidationHookOp:
		return a.registry.Exists(mt, addr)
	case types.ModuleTypeFallback:
		if len(context) < 4 {
			return false
		}
		var selector [4]byte
		copy(selector[:], context[:4])
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.fallbacks[selector] == addr
	}
	return false
}
