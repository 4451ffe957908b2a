// Package hostenv is an in-memory host environment implementing the account
// kernel's execution primitive: addressable targets with programmable
// handlers and a balance ledger. It backs tests, the coordinator gateway
// and the CLI demo; a production deployment would substitute a real
// execution backend.
package hostenv

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrNoTarget is returned when calling an address with no handler.
	ErrNoTarget = errors.New("hostenv: no handler at target address")
	// ErrInsufficientBalance is returned when a call's value exceeds the
	// caller's ledger balance.
	ErrInsufficientBalance = errors.New("hostenv: insufficient balance")
)

// Handler reacts to a call against a target address.
type Handler func(ctx context.Context, caller common.Address, value *big.Int, data []byte) ([]byte, error)

// Env is the in-memory host environment.
type Env struct {
	mu       sync.Mutex
	handlers map[common.Address]Handler
	balances map[common.Address]*big.Int
}

// New returns an empty environment.
func New() *Env {
	return &Env{
		handlers: make(map[common.Address]Handler),
		balances: make(map[common.Address]*big.Int),
	}
}

// Register installs a handler at an address.
func (e *Env) Register(addr common.Address, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[addr] = h
}

// Fund credits an address's balance.
func (e *Env) Fund(addr common.Address, amount *big.Int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.credit(addr, amount)
}

// Balance returns a copy of an address's balance.
func (e *Env) Balance(addr common.Address) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// Call performs a value-bearing call from caller to target. Value moves
// before the handler runs and is rolled back if the handler fails.
func (e *Env) Call(ctx context.Context, caller, target common.Address, value *big.Int, data []byte) ([]byte, error) {
	h, err := e.transfer(caller, target, value)
	if err != nil {
		return nil, err
	}
	if h == nil {
		// Plain transfer to an address with no handler is fine.
		if value != nil && value.Sign() > 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrNoTarget, target.Hex())
	}
	ret, err := h(ctx, caller, value, data)
	if err != nil {
		e.mu.Lock()
		e.credit(caller, value)
		e.debit(target, value)
		e.mu.Unlock()
		return ret, err
	}
	return ret, nil
}

// DelegateCall runs the target's handler in the caller's identity: no value
// moves and the handler observes the caller as itself.
func (e *Env) DelegateCall(ctx context.Context, caller, target common.Address, data []byte) ([]byte, error) {
	e.mu.Lock()
	h := e.handlers[target]
	e.mu.Unlock()
	if h == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoTarget, target.Hex())
	}
	return h(ctx, caller, new(big.Int), data)
}

func (e *Env) transfer(caller, target common.Address, value *big.Int) (Handler, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if value != nil && value.Sign() > 0 {
		from := e.balances[caller]
		if from == nil || from.Cmp(value) < 0 {
			return nil, fmt.Errorf("%w: %s", ErrInsufficientBalance, caller.Hex())
		}
		e.debit(caller, value)
		e.credit(target, value)
	}
	return e.handlers[target], nil
}

// credit and debit assume e.mu is held.
func (e *Env) credit(addr common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() == 0 {
		return
	}
	if e.balances[addr] == nil {
		e.balances[addr] = new(big.Int)
	}
	e.balances[addr].Add(e.balances[addr], amount)
}

func (e *Env) debit(addr common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() == 0 {
		return
	}
	if e.balances[addr] == nil {
		e.balances[addr] = new(big.Int)
	}
	e.balances[addr].Sub(e.balances[addr], amount)
}

// Bind returns an Invoker view of the environment for one caller identity.
type BoundEnv struct {
	env    *Env
	caller common.Address
}

// Bind fixes the caller identity used for subsequent calls.
func (e *Env) Bind(caller common.Address) *BoundEnv {
	return &BoundEnv{env: e, caller: caller}
}

func (b *BoundEnv) Call(ctx context.Context, target common.Address, value *big.Int, data []byte) ([]byte, error) {
	return b.env.Call(ctx, b.caller, target, value, data)
}

func (b *BoundEnv) DelegateCall(ctx context.Context, target common.Address, data []byte) ([]byte, error) {
	return b.env.DelegateCall(ctx, b.caller, target, data)
}
