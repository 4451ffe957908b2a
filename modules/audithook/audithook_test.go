package audithook_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"arbor/core/types"
	"arbor/modules/audithook"
)

var (
	moduleAddr = common.HexToAddress("0x0104")
	caller     = common.HexToAddress("0x0e01")
)

func TestModuleContract(t *testing.T) {
	h := audithook.New(moduleAddr)
	require.Equal(t, moduleAddr, h.Address())
	require.True(t, h.IsModuleType(types.ModuleTypeHook))
	require.False(t, h.IsModuleType(types.ModuleTypeValidator))
}

func TestBracketing(t *testing.T) {
	h := audithook.New(moduleAddr)
	require.NoError(t, h.OnInstall(context.Background(), nil))

	token, err := h.PreCheck(context.Background(), caller, big.NewInt(100), []byte("data"))
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.NoError(t, h.PostCheck(context.Background(), token, true))

	trail := h.Trail()
	require.Len(t, trail, 1)
	require.Equal(t, caller, trail[0].Caller)
	require.Zero(t, trail[0].Value.Cmp(big.NewInt(100)))
	require.True(t, trail[0].Completed)
	require.True(t, trail[0].Clean)
}

func TestDirtyOutcomeRecorded(t *testing.T) {
	h := audithook.New(moduleAddr)
	token, err := h.PreCheck(context.Background(), caller, nil, nil)
	require.NoError(t, err)
	require.NoError(t, h.PostCheck(context.Background(), token, false))

	trail := h.Trail()
	require.Len(t, trail, 1)
	require.True(t, trail[0].Completed)
	require.False(t, trail[0].Clean)
}

func TestValueCeiling(t *testing.T) {
	h := audithook.New(moduleAddr)
	h.SetCeiling(big.NewInt(50))

	_, err := h.PreCheck(context.Background(), caller, big.NewInt(51), nil)
	require.Error(t, err)
	require.Empty(t, h.Trail())

	token, err := h.PreCheck(context.Background(), caller, big.NewInt(50), nil)
	require.NoError(t, err)
	require.NoError(t, h.PostCheck(context.Background(), token, true))
}

func TestUnknownToken(t *testing.T) {
	h := audithook.New(moduleAddr)
	require.Error(t, h.PostCheck(context.Background(), []byte("bogus"), true))
}

func TestNewFromConfig(t *testing.T) {
	h, err := audithook.NewFromConfig(moduleAddr, map[string]any{
		"max_value":   "1000",
		"trail_depth": 2,
	})
	require.NoError(t, err)

	_, err = h.PreCheck(context.Background(), caller, big.NewInt(1001), nil)
	require.Error(t, err)

	// Depth bounds the trail.
	for i := 0; i < 3; i++ {
		token, err := h.PreCheck(context.Background(), caller, big.NewInt(int64(i)), nil)
		require.NoError(t, err)
		require.NoError(t, h.PostCheck(context.Background(), token, true))
	}
	require.Len(t, h.Trail(), 2)

	_, err = audithook.NewFromConfig(moduleAddr, map[string]any{"max_value": "not a number"})
	require.Error(t, err)
}

func TestInstallResetsTrail(t *testing.T) {
	h := audithook.New(moduleAddr)
	token, _ := h.PreCheck(context.Background(), caller, nil, nil)
	_ = h.PostCheck(context.Background(), token, true)
	require.NoError(t, h.OnInstall(context.Background(), nil))
	require.Empty(t, h.Trail())
}
