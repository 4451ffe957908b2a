package account

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	errs "arbor/core/errors"
	"arbor/core/logger"
	"arbor/core/metrics"
	"arbor/core/sig"
	"arbor/core/types"
)

// ValidateUserOp is the transaction-authorization surface. The validator is
// selected by the high 160 bits of the operation nonce; when no validator is
// installed and the account is still uninitialized the bootstrap signature
// check against the deploy-time identity takes over. The returned verdict is
// the selected validator's raw value, never reinterpreted here.
//
// The coordinator's prefund is transferred before any validation work, and a
// failed transfer does not block validation.
func (a *Account) ValidateUserOp(ctx context.Context, caller common.Address, op *types.UserOperation, missingFunds *big.Int) (*big.Int, error) {
	if !a.policy.CanValidate(caller) {
		return nil, fmt.Errorf("%w: %s may not validate", errs.ErrUnauthorized, caller.Hex())
	}
	ctx, span := a.tracer.Start(ctx, "Account.ValidateUserOp", trace.WithAttributes(
		attribute.String("sender", op.Sender.Hex())))
	defer span.End()

	a.payPrefund(ctx, missingFunds)

	digest := op.Hash()
	validator := op.ValidatorFromNonce()

	if !a.registry.Exists(types.ModuleTypeValidator, validator) {
		if a.bootstrapReachable() {
			if a.bootstrapVerify(digest, op.Signature) {
				metrics.ValidationCounter.WithLabelValues("userop", "bootstrap_ok").Inc()
				return types.ValidationSucceeded, nil
			}
			metrics.ValidationCounter.WithLabelValues("userop", "bootstrap_failed").Inc()
			return types.ValidationFailed, nil
		}
		logger.Debug(ctx, "Selected validator is not installed",
			zap.String("validator", validator.Hex()))
		metrics.ValidationCounter.WithLabelValues("userop", "no_validator").Inc()
		return types.ValidationFailed, nil
	}

	digest, signature, err := a.runPreValidationHooks(ctx, types.ModuleTypePreValidationHookOp, caller, digest, op.Signature)
	if err != nil {
		metrics.ValidationCounter.WithLabelValues("userop", "hook_failed").Inc()
		return nil, err
	}
	hookedOp := *op
	hookedOp.Signature = signature

	instance, _ := a.registry.Get(types.ModuleTypeValidator, validator)
	verdict, err := instance.(Validator).ValidateUserOp(ctx, &hookedOp, digest)
	if err != nil {
		metrics.ValidationCounter.WithLabelValues("userop", "error").Inc()
		return nil, errs.Wrap(err, "validator")
	}
	if verdict != nil && verdict.Bit(0) == 1 {
		metrics.ValidationCounter.WithLabelValues("userop", "failed").Inc()
	} else {
		metrics.ValidationCounter.WithLabelValues("userop", "success").Inc()
	}
	return verdict, nil
}

// IsValidSignature is the read-only signature surface. The first 20 bytes of
// the signature select the validator; the remainder is the signature proper.
// Unlike the transaction surface, selecting a missing validator on an
// initialized account is an error rather than a failure verdict.
func (a *Account) IsValidSignature(ctx context.Context, caller common.Address, digest common.Hash, signature []byte) ([4]byte, error) {
	if len(signature) < common.AddressLength {
		return types.MagicValueFail, errs.New("signature shorter than the validator selector")
	}
	validator := common.BytesToAddress(signature[:common.AddressLength])
	payload := signature[common.AddressLength:]

	if !a.registry.Exists(types.ModuleTypeValidator, validator) {
		if a.bootstrapReachable() {
			if a.bootstrapVerify(digest, payload) {
				metrics.ValidationCounter.WithLabelValues("signature", "bootstrap_ok").Inc()
				return types.MagicValueOK, nil
			}
			metrics.ValidationCounter.WithLabelValues("signature", "bootstrap_failed").Inc()
			return types.MagicValueFail, nil
		}
		metrics.ValidationCounter.WithLabelValues("signature", "no_validator").Inc()
		return types.MagicValueFail, fmt.Errorf("%w: validator %s", errs.ErrInvalidModule, validator.Hex())
	}

	digest, payload, err := a.runPreValidationHooks(ctx, types.ModuleTypePreValidationHookSig, caller, digest, payload)
	if err != nil {
		metrics.ValidationCounter.WithLabelValues("signature", "hook_failed").Inc()
		return types.MagicValueFail, err
	}

	instance, _ := a.registry.Get(types.ModuleTypeValidator, validator)
	magic, err := instance.(Validator).ValidateSignature(ctx, caller, digest, payload)
	if err != nil {
		metrics.ValidationCounter.WithLabelValues("signature", "error").Inc()
		return types.MagicValueFail, errs.Wrap(err, "validator")
	}
	if magic == types.MagicValueOK {
		metrics.ValidationCounter.WithLabelValues("signature", "success").Inc()
	} else {
		metrics.ValidationCounter.WithLabelValues("signature", "failed").Inc()
	}
	return magic, nil
}

// runPreValidationHooks threads the (digest, signature) pair through the
// installed pre-validation hooks of the given category in installation
// order. Any hook failure aborts validation.
func (a *Account) runPreValidationHooks(ctx context.Context, mt types.ModuleType, caller common.Address, digest common.Hash, signature []byte) (common.Hash, []byte, error) {
	for _, entry := range a.registry.List(mt) {
		hook, ok := entry.Instance.(PreValidationHook)
		if !ok {
			continue
		}
		var err error
		digest, signature, err = hook.PreValidate(ctx, caller, digest, signature)
		if err != nil {
			return digest, signature, fmt.Errorf("pre-validation hook %s: %w", entry.Address.Hex(), err)
		}
	}
	return digest, signature, nil
}

// bootstrapReachable reports whether the deploy-time signature fallback is
// still live: no validator installed and initialization never completed.
// Either condition alone closes it forever.
func (a *Account) bootstrapReachable() bool {
	return !a.Initialized() && a.registry.Count(types.ModuleTypeValidator) == 0
}

// bootstrapVerify checks a 65-byte recoverable signature over the prefixed
// digest against the deploy-time identity.
func (a *Account) bootstrapVerify(digest common.Hash, signature []byte) bool {
	signer, err := sig.RecoverSigner(digest, signature)
	if err != nil {
		return false
	}
	return signer == a.identity
}

// payPrefund forwards the coordinator's missing prefund before validation.
// Transfer failure is logged and otherwise ignored; the coordinator enforces
// funding on its side.
func (a *Account) payPrefund(ctx context.Context, missingFunds *big.Int) {
	if missingFunds == nil || missingFunds.Sign() <= 0 {
		return
	}
	if _, err := a.invoker.Call(ctx, a.coordinator, missingFunds, nil); err != nil {
		logger.Warn(ctx, "Prefund transfer failed",
			zap.String("coordinator", a.coordinator.Hex()), zap.Error(err))
	}
}
