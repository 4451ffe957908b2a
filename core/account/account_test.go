package account_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"arbor/core/account"
	"arbor/core/types"
)

var (
	selfAddr        = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	coordinatorAddr = common.HexToAddress("0x0000000000000000000000000000000000000e01")
	strangerAddr    = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	validatorAddr   = common.HexToAddress("0x0000000000000000000000000000000000000101")
	executorAddr    = common.HexToAddress("0x0000000000000000000000000000000000000102")
	fallbackAddr    = common.HexToAddress("0x0000000000000000000000000000000000000103")
	hookAddr        = common.HexToAddress("0x0000000000000000000000000000000000000104")
	targetAddr      = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

// invocation is one call recorded by the fake invoker.
type invocation struct {
	kind   string // "call" or "delegate"
	target common.Address
	value  *big.Int
	data   []byte
}

// fakeInvoker records invocations and fails for configured targets.
type fakeInvoker struct {
	mu     sync.Mutex
	calls  []invocation
	failOn map[common.Address]error
	ret    []byte
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{failOn: make(map[common.Address]error)}
}

func (f *fakeInvoker) Call(_ context.Context, target common.Address, value *big.Int, data []byte) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, invocation{kind: "call", target: target, value: value, data: data})
	err := f.failOn[target]
	f.mu.Unlock()
	if err != nil {
		return f.ret, err
	}
	return f.ret, nil
}

func (f *fakeInvoker) DelegateCall(_ context.Context, target common.Address, data []byte) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, invocation{kind: "delegate", target: target, data: data})
	err := f.failOn[target]
	f.mu.Unlock()
	if err != nil {
		return f.ret, err
	}
	return f.ret, nil
}

func (f *fakeInvoker) recorded() []invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]invocation, len(f.calls))
	copy(out, f.calls)
	return out
}

// fakeModule is the embeddable module base for test doubles.
type fakeModule struct {
	addr    common.Address
	version string
	mtypes  []types.ModuleType

	mu             sync.Mutex
	installErr     error
	uninstallErr   error
	installCount   int
	uninstallCount int
	lastInstall    []byte
}

func (m *fakeModule) Address() common.Address { return m.addr }

func (m *fakeModule) Version() string {
	if m.version == "" {
		return "1.0.0"
	}
	return m.version
}

func (m *fakeModule) IsModuleType(mt types.ModuleType) bool {
	for _, t := range m.mtypes {
		if t == mt {
			return true
		}
	}
	return false
}

func (m *fakeModule) OnInstall(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.installErr != nil {
		return m.installErr
	}
	m.installCount++
	m.lastInstall = data
	return nil
}

func (m *fakeModule) OnUninstall(context.Context, []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uninstallErr != nil {
		return m.uninstallErr
	}
	m.uninstallCount++
	return nil
}

func (m *fakeModule) uninstalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uninstallCount
}

// fakeValidator returns fixed verdicts.
type fakeValidator struct {
	fakeModule
	verdict    *big.Int
	verdictErr error
	magic      [4]byte
	magicErr   error

	mu        sync.Mutex
	gotDigest common.Hash
	gotSig    []byte
	gotCaller common.Address
}

func newFakeValidator(addr common.Address) *fakeValidator {
	return &fakeValidator{
		fakeModule: fakeModule{addr: addr, mtypes: []types.ModuleType{types.ModuleTypeValidator}},
		verdict:    types.ValidationSucceeded,
		magic:      types.MagicValueOK,
	}
}

func (v *fakeValidator) ValidateUserOp(_ context.Context, op *types.UserOperation, digest common.Hash) (*big.Int, error) {
	v.mu.Lock()
	v.gotDigest = digest
	v.gotSig = op.Signature
	v.mu.Unlock()
	return v.verdict, v.verdictErr
}

func (v *fakeValidator) ValidateSignature(_ context.Context, caller common.Address, digest common.Hash, sig []byte) ([4]byte, error) {
	v.mu.Lock()
	v.gotCaller = caller
	v.gotDigest = digest
	v.gotSig = sig
	v.mu.Unlock()
	return v.magic, v.magicErr
}

// fakeExecutor only carries the module base.
type fakeExecutor struct{ fakeModule }

func newFakeExecutor(addr common.Address) *fakeExecutor {
	return &fakeExecutor{fakeModule{addr: addr, mtypes: []types.ModuleType{types.ModuleTypeExecutor}}}
}

// fakeHook records bracketing.
type fakeHook struct {
	fakeModule
	preErr  error
	postErr error

	mu        sync.Mutex
	preCount  int
	outcomes  []bool
	lastValue *big.Int
}

func newFakeHook(addr common.Address) *fakeHook {
	return &fakeHook{fakeModule: fakeModule{addr: addr, mtypes: []types.ModuleType{types.ModuleTypeHook}}}
}

func (h *fakeHook) PreCheck(_ context.Context, _ common.Address, value *big.Int, _ []byte) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.preErr != nil {
		return nil, h.preErr
	}
	h.preCount++
	h.lastValue = value
	return []byte("token"), nil
}

func (h *fakeHook) PostCheck(_ context.Context, token []byte, success bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if string(token) != "token" {
		return errors.New("wrong continuation token")
	}
	h.outcomes = append(h.outcomes, success)
	return h.postErr
}

func (h *fakeHook) recordedOutcomes() []bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]bool, len(h.outcomes))
	copy(out, h.outcomes)
	return out
}

func (h *fakeHook) preChecks() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.preCount
}

// fakeFallback echoes the selector and data it was asked to serve.
type fakeFallback struct {
	fakeModule
}

func newFakeFallback(addr common.Address) *fakeFallback {
	return &fakeFallback{fakeModule{addr: addr, mtypes: []types.ModuleType{types.ModuleTypeFallback}}}
}

func (f *fakeFallback) HandleFallback(_ context.Context, _ common.Address, selector [4]byte, data []byte) ([]byte, error) {
	return append(selector[:], data...), nil
}

// fakePreValHook applies a fixed transform to the (digest, signature) pair.
type fakePreValHook struct {
	fakeModule
	transform func(common.Hash, []byte) (common.Hash, []byte, error)
}

func newFakePreValHook(addr common.Address, mt types.ModuleType, transform func(common.Hash, []byte) (common.Hash, []byte, error)) *fakePreValHook {
	return &fakePreValHook{
		fakeModule: fakeModule{addr: addr, mtypes: []types.ModuleType{mt}},
		transform:  transform,
	}
}

func (p *fakePreValHook) PreValidate(_ context.Context, _ common.Address, digest common.Hash, sig []byte) (common.Hash, []byte, error) {
	return p.transform(digest, sig)
}

func newTestAccount(t *testing.T, opts ...account.Option) (*account.Account, *fakeInvoker) {
	t.Helper()
	inv := newFakeInvoker()
	return account.New(selfAddr, strangerAddr, coordinatorAddr, inv, opts...), inv
}

func TestAccountID(t *testing.T) {
	acct, _ := newTestAccount(t)
	if got := acct.AccountID(); got != "arbor.kernel.1.0.0" {
		t.Errorf("AccountID = %q", got)
	}
	acct, _ = newTestAccount(t, account.WithIdentity("acme", "vault", "2.1.0"))
	if got := acct.AccountID(); got != "acme.vault.2.1.0" {
		t.Errorf("AccountID = %q", got)
	}
}

func TestSupportsModule(t *testing.T) {
	acct, _ := newTestAccount(t)
	if !acct.SupportsModule(types.ModuleTypeValidator) || !acct.SupportsModule(types.ModuleTypePreValidationHookOp) {
		t.Error("known categories must be supported")
	}
	if acct.SupportsModule(types.ModuleType(7)) {
		t.Error("unknown category must not be supported")
	}
}

func TestSupportsExecutionMode(t *testing.T) {
	acct, _ := newTestAccount(t)
	if !acct.SupportsExecutionMode(types.EncodeMode(types.CallTypeDelegate, types.ExecTypeTry)) {
		t.Error("delegate+try must be supported")
	}
	if acct.SupportsExecutionMode(types.EncodeMode(types.CallType(0x33), types.ExecTypeDefault)) {
		t.Error("unknown call type must not be supported")
	}
}

func TestInitialize(t *testing.T) {
	acct, _ := newTestAccount(t)
	v := newFakeValidator(validatorAddr)
	implID := crypto.Keccak256Hash([]byte("impl-1"))

	if acct.Initialized() {
		t.Fatal("fresh account reports initialized")
	}
	if err := acct.Initialize(context.Background(), coordinatorAddr, implID, v, []byte("init")); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if !acct.Initialized() {
		t.Error("Initialize did not flip the flag")
	}
	if !acct.IsModuleInstalled(types.ModuleTypeValidator, validatorAddr, nil) {
		t.Error("root validator not installed")
	}
}

func TestInitializeTwice(t *testing.T) {
	acct, _ := newTestAccount(t)
	implID := crypto.Keccak256Hash([]byte("impl-1"))
	if err := acct.Initialize(context.Background(), coordinatorAddr, implID, newFakeValidator(validatorAddr), nil); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	err := acct.Initialize(context.Background(), coordinatorAddr, implID, newFakeValidator(executorAddr), nil)
	if err == nil {
		t.Error("second Initialize must fail")
	}
}

func TestInitializeUnauthorized(t *testing.T) {
	acct, _ := newTestAccount(t)
	err := acct.Initialize(context.Background(), strangerAddr, common.Hash{1}, newFakeValidator(validatorAddr), nil)
	if err == nil {
		t.Error("stranger must not initialize the account")
	}
}
