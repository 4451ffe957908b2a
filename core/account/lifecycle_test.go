package account_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"arbor/core/account"
	"arbor/core/attest"
	errs "arbor/core/errors"
	"arbor/core/events"
	"arbor/core/types"
)

func TestInstallValidator(t *testing.T) {
	acct, _ := newTestAccount(t)
	v := newFakeValidator(validatorAddr)

	if err := acct.InstallModule(context.Background(), coordinatorAddr, types.ModuleTypeValidator, v, []byte("init")); err != nil {
		t.Fatalf("install: %v", err)
	}
	if !acct.IsModuleInstalled(types.ModuleTypeValidator, validatorAddr, nil) {
		t.Error("validator not reported installed")
	}
	if v.installCount != 1 || !bytes.Equal(v.lastInstall, []byte("init")) {
		t.Errorf("install callback: count=%d data=%q", v.installCount, v.lastInstall)
	}
}

func TestInstallUnauthorized(t *testing.T) {
	acct, _ := newTestAccount(t)
	err := acct.InstallModule(context.Background(), strangerAddr, types.ModuleTypeValidator, newFakeValidator(validatorAddr), nil)
	if !errs.Is(err, errs.ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

func TestInstallUnknownCategory(t *testing.T) {
	acct, _ := newTestAccount(t)
	err := acct.InstallModule(context.Background(), coordinatorAddr, types.ModuleType(7), newFakeValidator(validatorAddr), nil)
	if !errs.Is(err, errs.ErrUnsupportedModuleType) {
		t.Errorf("err = %v, want ErrUnsupportedModuleType", err)
	}
}

func TestInstallTypeMismatch(t *testing.T) {
	acct, _ := newTestAccount(t)
	// The module self-reports validator support only.
	err := acct.InstallModule(context.Background(), coordinatorAddr, types.ModuleTypeExecutor, newFakeValidator(validatorAddr), nil)
	if !errs.Is(err, errs.ErrMismatchModuleType) {
		t.Errorf("err = %v, want ErrMismatchModuleType", err)
	}
}

func TestMismatchCheckedBeforeAttestation(t *testing.T) {
	// The mismatch must fail identically whether the gate would approve or
	// deny the module.
	for _, gate := range []attest.Attester{attest.AllowAll{}, attest.NewRegistry()} {
		acct, _ := newTestAccount(t, account.WithAttester(gate))
		err := acct.InstallModule(context.Background(), coordinatorAddr, types.ModuleTypeExecutor, newFakeValidator(validatorAddr), nil)
		if !errs.Is(err, errs.ErrMismatchModuleType) {
			t.Errorf("gate %T: err = %v, want ErrMismatchModuleType", gate, err)
		}
	}
}

func TestInstallAttestationDenied(t *testing.T) {
	acct, _ := newTestAccount(t, account.WithAttester(attest.NewRegistry()))
	err := acct.InstallModule(context.Background(), coordinatorAddr, types.ModuleTypeValidator, newFakeValidator(validatorAddr), nil)
	if !errors.Is(err, attest.ErrNotAttested) {
		t.Errorf("err = %v, want ErrNotAttested", err)
	}
	if acct.IsModuleInstalled(types.ModuleTypeValidator, validatorAddr, nil) {
		t.Error("denied module was installed")
	}
}

func TestInstallBadVersion(t *testing.T) {
	acct, _ := newTestAccount(t)
	v := newFakeValidator(validatorAddr)
	v.version = "not-a-version"
	if err := acct.InstallModule(context.Background(), coordinatorAddr, types.ModuleTypeValidator, v, nil); err == nil {
		t.Error("module with a malformed version must be rejected")
	}
}

func TestInstallCallbackFailureRollsBack(t *testing.T) {
	acct, _ := newTestAccount(t)
	v := newFakeValidator(validatorAddr)
	v.installErr = errors.New("module init failed")

	if err := acct.InstallModule(context.Background(), coordinatorAddr, types.ModuleTypeValidator, v, nil); err == nil {
		t.Fatal("expected callback failure")
	}
	if acct.IsModuleInstalled(types.ModuleTypeValidator, validatorAddr, nil) {
		t.Error("failed install left a registry entry")
	}
	// A retry must succeed.
	v.installErr = nil
	if err := acct.InstallModule(context.Background(), coordinatorAddr, types.ModuleTypeValidator, v, nil); err != nil {
		t.Errorf("retry after rollback: %v", err)
	}
}

func TestInstallDuplicate(t *testing.T) {
	acct, _ := newTestAccount(t)
	if err := acct.InstallModule(context.Background(), coordinatorAddr, types.ModuleTypeValidator, newFakeValidator(validatorAddr), nil); err != nil {
		t.Fatalf("install: %v", err)
	}
	err := acct.InstallModule(context.Background(), coordinatorAddr, types.ModuleTypeValidator, newFakeValidator(validatorAddr), nil)
	if err == nil {
		t.Error("duplicate install must fail")
	}
}

func TestSecondHookFails(t *testing.T) {
	acct, _ := newTestAccount(t)
	if err := acct.InstallModule(context.Background(), coordinatorAddr, types.ModuleTypeHook, newFakeHook(hookAddr), nil); err != nil {
		t.Fatalf("install hook: %v", err)
	}
	other := newFakeHook(common.HexToAddress("0x0105"))
	if err := acct.InstallModule(context.Background(), coordinatorAddr, types.ModuleTypeHook, other, nil); err == nil {
		t.Error("second hook install must fail, not replace")
	}
	if !acct.IsModuleInstalled(types.ModuleTypeHook, hookAddr, nil) {
		t.Error("original hook displaced")
	}
}

func TestInstallFallbackSelector(t *testing.T) {
	acct, _ := newTestAccount(t)
	fb := newFakeFallback(fallbackAddr)
	selector := []byte{0xca, 0xfe, 0xba, 0xbe}

	if err := acct.InstallModule(context.Background(), coordinatorAddr, types.ModuleTypeFallback, fb, append(selector, []byte("extra")...)); err != nil {
		t.Fatalf("install fallback: %v", err)
	}
	// The selector prefix is stripped before the module's callback.
	if !bytes.Equal(fb.lastInstall, []byte("extra")) {
		t.Errorf("callback data = %q", fb.lastInstall)
	}
	if !acct.IsModuleInstalled(types.ModuleTypeFallback, fallbackAddr, selector) {
		t.Error("fallback not reported for its selector")
	}
	if acct.IsModuleInstalled(types.ModuleTypeFallback, fallbackAddr, []byte{0, 0, 0, 1}) {
		t.Error("fallback reported for a foreign selector")
	}
	if acct.IsModuleInstalled(types.ModuleTypeFallback, fallbackAddr, nil) {
		t.Error("fallback query without selector must be false")
	}

	ret, err := acct.HandleFallback(context.Background(), strangerAddr, [4]byte{0xca, 0xfe, 0xba, 0xbe}, []byte("args"))
	if err != nil {
		t.Fatalf("handle fallback: %v", err)
	}
	if !bytes.Equal(ret, append(selector, []byte("args")...)) {
		t.Errorf("fallback return = %x", ret)
	}
}

func TestInstallFallbackShortData(t *testing.T) {
	acct, _ := newTestAccount(t)
	err := acct.InstallModule(context.Background(), coordinatorAddr, types.ModuleTypeFallback, newFakeFallback(fallbackAddr), []byte{1, 2})
	if err == nil {
		t.Error("fallback install without a selector must fail")
	}
}

func TestFallbackSelectorConflict(t *testing.T) {
	acct, _ := newTestAccount(t)
	selector := []byte{1, 2, 3, 4}
	if err := acct.InstallModule(context.Background(), coordinatorAddr, types.ModuleTypeFallback, newFakeFallback(fallbackAddr), selector); err != nil {
		t.Fatalf("install: %v", err)
	}
	other := newFakeFallback(common.HexToAddress("0x0106"))
	if err := acct.InstallModule(context.Background(), coordinatorAddr, types.ModuleTypeFallback, other, selector); err == nil {
		t.Error("second handler for the same selector must fail")
	}
}

func TestUninstall(t *testing.T) {
	acct, _ := newTestAccount(t)
	v := newFakeValidator(validatorAddr)
	if err := acct.InstallModule(context.Background(), coordinatorAddr, types.ModuleTypeValidator, v, nil); err != nil {
		t.Fatalf("install: %v", err)
	}
	if err := acct.UninstallModule(context.Background(), coordinatorAddr, types.ModuleTypeValidator, validatorAddr, []byte("deinit")); err != nil {
		t.Fatalf("uninstall: %v", err)
	}
	if acct.IsModuleInstalled(types.ModuleTypeValidator, validatorAddr, nil) {
		t.Error("module still installed")
	}
	if v.uninstalls() != 1 {
		t.Errorf("uninstall callbacks = %d", v.uninstalls())
	}
}

func TestUninstallCallbackFailureReinstates(t *testing.T) {
	acct, _ := newTestAccount(t)
	v := newFakeValidator(validatorAddr)
	if err := acct.InstallModule(context.Background(), coordinatorAddr, types.ModuleTypeValidator, v, nil); err != nil {
		t.Fatalf("install: %v", err)
	}
	v.uninstallErr = errors.New("refusing to leave")

	if err := acct.UninstallModule(context.Background(), coordinatorAddr, types.ModuleTypeValidator, validatorAddr, nil); err == nil {
		t.Fatal("expected uninstall failure")
	}
	if !acct.IsModuleInstalled(types.ModuleTypeValidator, validatorAddr, nil) {
		t.Error("failed uninstall must leave the module installed")
	}
}

func TestUninstallFallbackSelector(t *testing.T) {
	acct, _ := newTestAccount(t)
	selector := []byte{9, 9, 9, 9}
	fb := newFakeFallback(fallbackAddr)
	if err := acct.InstallModule(context.Background(), coordinatorAddr, types.ModuleTypeFallback, fb, selector); err != nil {
		t.Fatalf("install: %v", err)
	}
	// Wrong selector leaves everything in place.
	if err := acct.UninstallModule(context.Background(), coordinatorAddr, types.ModuleTypeFallback, fallbackAddr, []byte{0, 0, 0, 1}); err == nil {
		t.Error("uninstall with a foreign selector must fail")
	}
	if !acct.IsModuleInstalled(types.ModuleTypeFallback, fallbackAddr, selector) {
		t.Error("failed uninstall removed the handler")
	}

	if err := acct.UninstallModule(context.Background(), coordinatorAddr, types.ModuleTypeFallback, fallbackAddr, selector); err != nil {
		t.Fatalf("uninstall: %v", err)
	}
	if acct.IsModuleInstalled(types.ModuleTypeFallback, fallbackAddr, selector) {
		t.Error("handler still reported after uninstall")
	}
}

func TestUninstallMissing(t *testing.T) {
	acct, _ := newTestAccount(t)
	if err := acct.UninstallModule(context.Background(), coordinatorAddr, types.ModuleTypeValidator, validatorAddr, nil); err == nil {
		t.Error("uninstalling an absent module must fail")
	}
}

func TestIsModuleInstalledUnknownCategory(t *testing.T) {
	acct, _ := newTestAccount(t)
	if acct.IsModuleInstalled(types.ModuleType(42), validatorAddr, nil) {
		t.Error("unknown category must report false, not fail")
	}
}

func TestLifecycleEvents(t *testing.T) {
	bus := events.New(8)
	acct, _ := newTestAccount(t, account.WithBus(bus))

	installed, cancelI, _ := bus.Subscribe(account.TopicModuleInstalled)
	defer cancelI()
	uninstalled, cancelU, _ := bus.Subscribe(account.TopicModuleUninstalled)
	defer cancelU()

	if err := acct.InstallModule(context.Background(), coordinatorAddr, types.ModuleTypeValidator, newFakeValidator(validatorAddr), nil); err != nil {
		t.Fatalf("install: %v", err)
	}
	select {
	case ev := <-installed:
		e := ev.(account.ModuleInstalledEvent)
		if e.ModuleType != types.ModuleTypeValidator || e.Address != validatorAddr {
			t.Errorf("install event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no install event")
	}

	if err := acct.UninstallModule(context.Background(), coordinatorAddr, types.ModuleTypeValidator, validatorAddr, nil); err != nil {
		t.Fatalf("uninstall: %v", err)
	}
	select {
	case ev := <-uninstalled:
		e := ev.(account.ModuleUninstalledEvent)
		if e.Address != validatorAddr {
			t.Errorf("uninstall event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no uninstall event")
	}
}
