package attest_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"arbor/core/attest"
	"arbor/core/types"
)

var modAddr = common.HexToAddress("0x0101")

func TestAllowAll(t *testing.T) {
	var gate attest.AllowAll
	if err := gate.Authorize(context.Background(), modAddr, types.ModuleTypeValidator); err != nil {
		t.Errorf("AllowAll denied: %v", err)
	}
}

func TestRegistryDeniesByDefault(t *testing.T) {
	reg := attest.NewRegistry()
	err := reg.Authorize(context.Background(), modAddr, types.ModuleTypeValidator)
	if !errors.Is(err, attest.ErrNotAttested) {
		t.Errorf("err = %v, want ErrNotAttested", err)
	}
}

func TestApproveRevoke(t *testing.T) {
	ctx := context.Background()
	reg := attest.NewRegistry()
	reg.Approve(modAddr, types.ModuleTypeExecutor)

	if err := reg.Authorize(ctx, modAddr, types.ModuleTypeExecutor); err != nil {
		t.Errorf("approved pair denied: %v", err)
	}
	// Approval is per category.
	if err := reg.Authorize(ctx, modAddr, types.ModuleTypeHook); !errors.Is(err, attest.ErrNotAttested) {
		t.Errorf("other category: err = %v, want ErrNotAttested", err)
	}

	reg.Revoke(modAddr, types.ModuleTypeExecutor)
	if err := reg.Authorize(ctx, modAddr, types.ModuleTypeExecutor); !errors.Is(err, attest.ErrNotAttested) {
		t.Errorf("revoked pair: err = %v, want ErrNotAttested", err)
	}
	if reg.IsApproved(modAddr, types.ModuleTypeExecutor) {
		t.Error("IsApproved after revoke")
	}
}
