// Package account implements the control core of a programmable smart
// account: execution dispatch, module lifecycle routing, authorization with
// pluggable validators, hook wrapping around privileged operations, and the
// re-delegation guard. The account holds no authority scheme of its own;
// "who may act" and "what runs" are delegated to installed modules.
package account

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"arbor/core/attest"
	"arbor/core/auth"
	errs "arbor/core/errors"
	"arbor/core/events"
	"arbor/core/registry"
	"arbor/core/types"
)

// Module is the contract every installable module satisfies. A module
// self-reports which categories it supports; installation under a category
// the module does not report fails.
type Module interface {
	// Address returns the module's stable identity.
	Address() common.Address
	// Version returns the module's semantic version.
	Version() string
	// IsModuleType reports whether the module supports the given category.
	IsModuleType(mt types.ModuleType) bool
	// OnInstall is called once when the module is installed.
	OnInstall(ctx context.Context, data []byte) error
	// OnUninstall is called once when the module is uninstalled.
	OnUninstall(ctx context.Context, data []byte) error
}

// Validator decides authorization for both surfaces.
type Validator interface {
	Module
	// ValidateUserOp returns the raw verdict for a user operation: zero for
	// success, one for signature failure, or a module-specific encoding
	// (see types.PackValidationData).
	ValidateUserOp(ctx context.Context, op *types.UserOperation, digest common.Hash) (*big.Int, error)
	// ValidateSignature returns the 4-byte magic value when the signature
	// verifies for the given caller, types.MagicValueFail otherwise.
	ValidateSignature(ctx context.Context, caller common.Address, digest common.Hash, sig []byte) ([4]byte, error)
}

// Executor marks a module permitted to drive execution through the
// executor-gated entry point. The account does not call into executors; they
// call in, so the contract adds nothing beyond the module base.
type Executor interface {
	Module
}

// FallbackHandler serves selectors the account itself does not implement.
type FallbackHandler interface {
	Module
	HandleFallback(ctx context.Context, caller common.Address, selector [4]byte, data []byte) ([]byte, error)
}

// Hook brackets every privileged operation. PreCheck returns an opaque
// continuation token handed back to PostCheck with the outcome.
type Hook interface {
	Module
	PreCheck(ctx context.Context, caller common.Address, value *big.Int, data []byte) ([]byte, error)
	PostCheck(ctx context.Context, token []byte, success bool) error
}

// PreValidationHook rewrites the (digest, signature) pair before the
// selected validator sees it. Hooks apply in registration order.
type PreValidationHook interface {
	Module
	PreValidate(ctx context.Context, caller common.Address, digest common.Hash, sig []byte) (common.Hash, []byte, error)
}

// Invoker is the execution primitive the account treats as atomic: perform
// a call or a delegated call in the account's identity and report the
// outcome.
type Invoker interface {
	Call(ctx context.Context, target common.Address, value *big.Int, data []byte) ([]byte, error)
	DelegateCall(ctx context.Context, target common.Address, data []byte) ([]byte, error)
}

// Account is the kernel instance. All mutation of the module registry is
// funneled through the lifecycle router; the execution and authorization
// engines only read it.
type Account struct {
	self        common.Address
	identity    common.Address
	coordinator common.Address

	vendor  string
	variant string
	version string

	policy   auth.Policy
	registry registry.Registry
	attester attest.Attester
	invoker  Invoker
	bus      events.Bus
	tracer   trace.Tracer

	mu          sync.Mutex
	implID      common.Hash
	initialized bool
	fallbacks   map[[4]byte]common.Address
}

// Option configures an Account.
type Option func(*Account)

// WithRegistry substitutes the module registry.
func WithRegistry(r registry.Registry) Option { return func(a *Account) { a.registry = r } }

// WithAttester substitutes the attestation gate.
func WithAttester(at attest.Attester) Option { return func(a *Account) { a.attester = at } }

// WithBus substitutes the event bus.
func WithBus(b events.Bus) Option { return func(a *Account) { a.bus = b } }

// WithPolicy substitutes the access policy.
func WithPolicy(p auth.Policy) Option { return func(a *Account) { a.policy = p } }

// WithIdentity sets the vendor/variant/version triple reported by AccountID.
func WithIdentity(vendor, variant, version string) Option {
	return func(a *Account) {
		a.vendor, a.variant, a.version = vendor, variant, version
	}
}

// WithImplementation records the executable identity commitment checked by
// the re-delegation guard.
func WithImplementation(implID common.Hash) Option {
	return func(a *Account) { a.implID = implID }
}

// New creates an account kernel.
//
// self is the account's own address, identity its deploy-time signer used by
// the bootstrap fallback, coordinator the privileged external party, and
// invoker the execution primitive bound to the account's identity.
func New(self, identity, coordinator common.Address, invoker Invoker, opts ...Option) *Account {
	a := &Account{
		self:        self,
		identity:    identity,
		coordinator: coordinator,
		vendor:      "arbor",
		variant:     "kernel",
		version:     "1.0.0",
		registry:    registry.New(),
		attester:    attest.AllowAll{},
		invoker:     invoker,
		bus:         events.New(0),
		tracer:      otel.Tracer("arbor-account"),
		fallbacks:   make(map[[4]byte]common.Address),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.policy == nil {
		a.policy = auth.CoordinatorPolicy{Coordinator: coordinator, Self: self}
	}
	return a
}

// Address returns the account's own address.
func (a *Account) Address() common.Address { return a.self }

// Coordinator returns the privileged coordinator address.
func (a *Account) Coordinator() common.Address { return a.coordinator }

// Bus exposes the account's event bus for subscribers.
func (a *Account) Bus() events.Bus { return a.bus }

// AccountID reports the static vendor.variant.version identity string used
// by external tooling.
func (a *Account) AccountID() string {
	return fmt.Sprintf("%s.%s.%s", a.vendor, a.variant, a.version)
}

// SupportsModule reports whether the category belongs to the closed set the
// kernel routes.
func (a *Account) SupportsModule(mt types.ModuleType) bool {
	return types.KnownModuleType(mt)
}

// SupportsExecutionMode reports whether the descriptor names a supported
// (callType, execType) combination.
func (a *Account) SupportsExecutionMode(mode types.ExecMode) bool {
	return mode.Supported()
}

// Initialize completes the account's one-time initialization: it records
// the executable identity commitment and installs the root validator. After
// this returns, the bootstrap signature fallback is permanently
// unreachable.
func (a *Account) Initialize(ctx context.Context, caller common.Address, implID common.Hash, root Validator, initData []byte) error {
	if !a.policy.CanManageModules(caller) {
		return fmt.Errorf("%w: %s may not initialize", errs.ErrUnauthorized, caller.Hex())
	}
	a.mu.Lock()
	if a.initialized {
		a.mu.Unlock()
		return errs.New("account already initialized")
	}
	a.mu.Unlock()

	// A repointed implementation must not inherit trust configured under
	// the previous one; purge before installing anything.
	if err := a.checkImplementation(ctx, implID); err != nil {
		return err
	}
	if err := a.InstallModule(ctx, caller, types.ModuleTypeValidator, root, initData); err != nil {
		return errs.Wrap(err, "install root validator")
	}

	a.mu.Lock()
	a.initialized = true
	a.mu.Unlock()
	return nil
}

// Initialized reports whether one-time initialization has completed.
func (a *Account) Initialized() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.initialized
}
