// Package entrypoint is the in-process coordinator: it fronts one or more
// account kernels, maintains their prefund deposits, validates submitted
// user operations against the account's authorization engine and executes
// the ones that pass. A failed operation yields a failed receipt, never an
// aborted batch.
package entrypoint

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"arbor/core/jobs"
	"arbor/core/logger"
	"arbor/core/types"
)

// Kernel is the slice of the account surface the coordinator drives.
type Kernel interface {
	Address() common.Address
	ValidateUserOp(ctx context.Context, caller common.Address, op *types.UserOperation, missingFunds *big.Int) (*big.Int, error)
	ExecuteUserOp(ctx context.Context, caller common.Address, op *types.UserOperation) error
}

// Config holds the coordinator's settings, decoded from the gateway section
// of the application config.
type Config struct {
	// QueueDepth bounds the asynchronous submission queue.
	QueueDepth int `mapstructure:"queue_depth"`
}

// Receipt is the per-operation outcome of a batch.
type Receipt struct {
	ID      string
	Sender  common.Address
	OpHash  common.Hash
	Success bool
	Reason  string
	// Prefund is the amount charged against the sender's deposit.
	Prefund *big.Int
}

// jobTypeHandleOp identifies asynchronous submission jobs on the queue.
const jobTypeHandleOp = "entrypoint.handle_op"

// Entrypoint is the coordinator instance.
type Entrypoint struct {
	addr common.Address

	mu       sync.Mutex
	accounts map[common.Address]Kernel
	deposits map[common.Address]*big.Int
	receipts map[string]Receipt

	queue *jobs.InprocQueue
	now   func() time.Time
}

// New returns a coordinator at addr with the given raw config section.
func New(addr common.Address, raw map[string]any) (*Entrypoint, error) {
	var cfg Config
	if raw != nil {
		if err := mapstructure.Decode(raw, &cfg); err != nil {
			return nil, fmt.Errorf("entrypoint: decode config: %w", err)
		}
	}
	e := &Entrypoint{
		addr:     addr,
		accounts: make(map[common.Address]Kernel),
		deposits: make(map[common.Address]*big.Int),
		receipts: make(map[string]Receipt),
		queue:    jobs.NewInprocQueue(cfg.QueueDepth),
		now:      time.Now,
	}
	if err := e.queue.RegisterHandler(jobTypeHandleOp, jobs.HandlerFunc(e.handleJob)); err != nil {
		return nil, err
	}
	return e, nil
}

// Address returns the coordinator's own address, the one account policies
// must whitelist.
func (e *Entrypoint) Address() common.Address { return e.addr }

// Register fronts an account kernel.
func (e *Entrypoint) Register(k Kernel) {
	e.mu.Lock()
	e.accounts[k.Address()] = k
	e.mu.Unlock()
}

// DepositTo credits an account's prefund deposit.
func (e *Entrypoint) DepositTo(account common.Address, amount *big.Int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deposits[account] == nil {
		e.deposits[account] = new(big.Int)
	}
	e.deposits[account].Add(e.deposits[account], amount)
}

// BalanceOf returns a copy of an account's deposit.
func (e *Entrypoint) BalanceOf(account common.Address) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.deposits[account]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// HandleOps runs a batch of user operations. Each operation gets a receipt;
// a failed operation never aborts the rest of the batch.
func (e *Entrypoint) HandleOps(ctx context.Context, ops []*types.UserOperation) []Receipt {
	receipts := make([]Receipt, 0, len(ops))
	for _, op := range ops {
		r := e.handleOp(ctx, op)
		e.mu.Lock()
		e.receipts[r.ID] = r
		e.mu.Unlock()
		receipts = append(receipts, r)
	}
	return receipts
}

func (e *Entrypoint) handleOp(ctx context.Context, op *types.UserOperation) Receipt {
	r := Receipt{
		ID:      uuid.NewString(),
		Sender:  op.Sender,
		OpHash:  op.Hash(),
		Prefund: new(big.Int),
	}

	e.mu.Lock()
	kernel, ok := e.accounts[op.Sender]
	e.mu.Unlock()
	if !ok {
		r.Reason = fmt.Sprintf("unknown account %s", op.Sender.Hex())
		return r
	}

	prefund := op.RequiredPrefund()
	missing := e.charge(op.Sender, prefund)
	r.Prefund = prefund

	verdict, err := kernel.ValidateUserOp(ctx, e.addr, op, missing)
	if err != nil {
		r.Reason = fmt.Sprintf("validation error: %v", err)
		return r
	}
	if reason := e.interpret(verdict); reason != "" {
		r.Reason = reason
		return r
	}

	if err := kernel.ExecuteUserOp(ctx, e.addr, op); err != nil {
		r.Reason = fmt.Sprintf("execution failed: %v", err)
		return r
	}
	r.Success = true
	return r
}

// charge debits as much of the prefund as the deposit covers and returns
// the shortfall the account must pay directly.
func (e *Entrypoint) charge(account common.Address, prefund *big.Int) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	deposit := e.deposits[account]
	if deposit == nil {
		deposit = new(big.Int)
		e.deposits[account] = deposit
	}
	if deposit.Cmp(prefund) >= 0 {
		deposit.Sub(deposit, prefund)
		return new(big.Int)
	}
	missing := new(big.Int).Sub(prefund, deposit)
	deposit.SetInt64(0)
	return missing
}

// interpret maps a raw validation verdict to a rejection reason, enforcing
// the time bounds a validator may have packed into it. Empty means the
// operation passed.
func (e *Entrypoint) interpret(verdict *big.Int) string {
	sigFailed, validAfter, validUntil := types.UnpackValidationData(verdict)
	if sigFailed {
		return "signature validation failed"
	}
	now := uint64(e.now().Unix())
	if validAfter != 0 && now < validAfter {
		return fmt.Sprintf("operation not valid before %d", validAfter)
	}
	if validUntil != 0 && now > validUntil {
		return fmt.Sprintf("operation expired at %d", validUntil)
	}
	return ""
}

// SubmitOp enqueues an operation for asynchronous processing; the receipt
// becomes available under the returned id once the worker has run it.
func (e *Entrypoint) SubmitOp(ctx context.Context, op *types.UserOperation) (string, error) {
	id := uuid.NewString()
	job := &jobs.BaseJob{JobType: jobTypeHandleOp, Data: &submission{ID: id, Op: op}, Ctx: ctx}
	if err := e.queue.Enqueue(ctx, job); err != nil {
		return "", err
	}
	return id, nil
}

type submission struct {
	ID string
	Op *types.UserOperation
}

func (e *Entrypoint) handleJob(ctx context.Context, job jobs.Job) error {
	sub, ok := job.Payload().(*submission)
	if !ok {
		return fmt.Errorf("entrypoint: unexpected job payload %T", job.Payload())
	}
	r := e.handleOp(ctx, sub.Op)
	r.ID = sub.ID
	e.mu.Lock()
	e.receipts[r.ID] = r
	e.mu.Unlock()
	if !r.Success {
		logger.Debug(ctx, "Submitted operation failed",
			zap.String("receipt_id", r.ID), zap.String("reason", r.Reason))
	}
	return nil
}

// ReceiptFor returns the receipt stored under an id.
func (e *Entrypoint) ReceiptFor(id string) (Receipt, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.receipts[id]
	return r, ok
}

// Start begins draining the asynchronous submission queue.
func (e *Entrypoint) Start(ctx context.Context) error { return e.queue.Start(ctx) }

// Stop shuts the queue down, waiting for in-flight jobs.
func (e *Entrypoint) Stop(ctx context.Context) error { return e.queue.Stop(ctx) }
