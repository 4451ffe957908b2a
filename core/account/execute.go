package account

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"arbor/core/codec"
	errs "arbor/core/errors"
	"arbor/core/logger"
	"arbor/core/metrics"
	"arbor/core/types"
)

// Execute runs an execution request on behalf of the coordinator or the
// account itself. The request is hook-wrapped; no per-unit results are
// returned.
func (a *Account) Execute(ctx context.Context, caller common.Address, mode types.ExecMode, payload []byte) error {
	if !a.policy.CanExecute(caller) {
		return fmt.Errorf("%w: %s may not execute", errs.ErrUnauthorized, caller.Hex())
	}
	ctx, span := a.tracer.Start(ctx, "Account.Execute", trace.WithAttributes(
		attribute.Int("mode.call_type", int(mode.CallType())),
		attribute.Int("mode.exec_type", int(mode.ExecType()))))
	defer span.End()
	start := time.Now()

	err := a.withHook(ctx, caller, big.NewInt(0), payload, func(ctx context.Context) (bool, error) {
		_, clean, err := a.dispatch(ctx, mode, payload, false)
		return clean, err
	})

	metrics.ExecutionDuration.WithLabelValues("execute").Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.ExecutionCounter.WithLabelValues("execute", "failed").Inc()
		return err
	}
	metrics.ExecutionCounter.WithLabelValues("execute", "success").Inc()
	return nil
}

// ExecuteFromExecutor runs an execution request submitted by an installed
// executor module. The caller must be installed under the executor category
// and pass the attestation gate; per-unit results are returned.
func (a *Account) ExecuteFromExecutor(ctx context.Context, caller common.Address, mode types.ExecMode, payload []byte) ([]types.ExecutionResult, error) {
	if !a.registry.Exists(types.ModuleTypeExecutor, caller) {
		return nil, fmt.Errorf("%w: %s is not an installed executor", errs.ErrUnauthorized, caller.Hex())
	}
	if err := a.attester.Authorize(ctx, caller, types.ModuleTypeExecutor); err != nil {
		return nil, err
	}
	ctx, span := a.tracer.Start(ctx, "Account.ExecuteFromExecutor", trace.WithAttributes(
		attribute.String("executor", caller.Hex())))
	defer span.End()
	start := time.Now()

	var results []types.ExecutionResult
	err := a.withHook(ctx, caller, big.NewInt(0), payload, func(ctx context.Context) (bool, error) {
		var clean bool
		var err error
		results, clean, err = a.dispatch(ctx, mode, payload, true)
		return clean, err
	})

	metrics.ExecutionDuration.WithLabelValues("executor").Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.ExecutionCounter.WithLabelValues("executor", "failed").Inc()
		return nil, err
	}
	metrics.ExecutionCounter.WithLabelValues("executor", "success").Inc()
	return results, nil
}

// ExecuteUserOp runs a coordinator-supplied payload against the account's
// own logic via self-delegation. There is no hook wrapping and no mode
// decoding; any failure surfaces as the generic execution-failure signal.
func (a *Account) ExecuteUserOp(ctx context.Context, caller common.Address, op *types.UserOperation) error {
	if !a.policy.CanValidate(caller) {
		return fmt.Errorf("%w: %s may not submit user operations", errs.ErrUnauthorized, caller.Hex())
	}
	if _, err := a.invoker.DelegateCall(ctx, a.self, op.CallData); err != nil {
		logger.Debug(ctx, "User operation payload failed", zap.Error(err))
		return fmt.Errorf("%w: %v", errs.ErrExecutionFailed, err)
	}
	return nil
}

// dispatch decodes the mode descriptor and routes to the matching execution
// shape. clean reports whether every unit succeeded; under try semantics a
// unit failure flips clean without failing the request.
func (a *Account) dispatch(ctx context.Context, mode types.ExecMode, payload []byte, collect bool) (results []types.ExecutionResult, clean bool, err error) {
	ct, et := mode.CallType(), mode.ExecType()
	if !types.KnownCallType(ct) {
		return nil, false, fmt.Errorf("%w: 0x%02x", errs.ErrUnsupportedCallType, byte(ct))
	}
	if !types.KnownExecType(et) {
		return nil, false, fmt.Errorf("%w: 0x%02x", errs.ErrUnsupportedExecType, byte(et))
	}

	switch ct {
	case types.CallTypeSingle:
		exec, derr := codec.DecodeSingle(payload)
		if derr != nil {
			return nil, false, derr
		}
		return a.runUnits(ctx, []types.Execution{exec}, et, collect)

	case types.CallTypeBatch:
		execs, derr := codec.DecodeBatch(payload)
		if derr != nil {
			return nil, false, derr
		}
		return a.runUnits(ctx, execs, et, collect)

	default: // types.CallTypeDelegate
		target, data, derr := codec.DecodeDelegate(payload)
		if derr != nil {
			return nil, false, derr
		}
		ret, cerr := a.invoker.DelegateCall(ctx, target, data)
		if cerr != nil {
			metrics.ExecutionUnitCounter.WithLabelValues("failed").Inc()
			if et == types.ExecTypeDefault {
				return nil, false, cerr
			}
			a.bus.Publish(ctx, TryExecuteFailedEvent{Index: 0, ReturnData: ret})
			logger.Warn(ctx, "Delegated execution failed under try semantics",
				zap.String("target", target.Hex()), zap.Error(cerr))
			return nil, false, nil
		}
		metrics.ExecutionUnitCounter.WithLabelValues("success").Inc()
		// No per-unit result collection for delegated execution.
		return nil, true, nil
	}
}

// runUnits executes an ordered sequence of triples. Default semantics abort
// on the first failure and propagate the underlying error; try semantics
// publish a failure event carrying the unit index and keep going.
func (a *Account) runUnits(ctx context.Context, execs []types.Execution, et types.ExecType, collect bool) ([]types.ExecutionResult, bool, error) {
	var results []types.ExecutionResult
	if collect {
		results = make([]types.ExecutionResult, 0, len(execs))
	}
	clean := true
	for i, e := range execs {
		ret, err := a.invoker.Call(ctx, e.Target, e.Value, e.CallData)
		if err != nil {
			metrics.ExecutionUnitCounter.WithLabelValues("failed").Inc()
			if et == types.ExecTypeDefault {
				return nil, false, err
			}
			clean = false
			a.bus.Publish(ctx, TryExecuteFailedEvent{Index: i, ReturnData: ret})
			logger.Warn(ctx, "Execution unit failed under try semantics",
				zap.Int("index", i), zap.String("target", e.Target.Hex()), zap.Error(err))
			if collect {
				results = append(results, types.ExecutionResult{Success: false, ReturnData: ret})
			}
			continue
		}
		metrics.ExecutionUnitCounter.WithLabelValues("success").Inc()
		if collect {
			results = append(results, types.ExecutionResult{Success: true, ReturnData: ret})
		}
	}
	return results, clean, nil
}
