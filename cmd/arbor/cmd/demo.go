package cmd

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"arbor/cmd/arbor/internal/atteststore"
	"arbor/core/account"
	"arbor/core/attest"
	"arbor/core/codec"
	"arbor/core/config"
	"arbor/core/events"
	"arbor/core/hostenv"
	"arbor/core/logger"
	"arbor/core/sig"
	"arbor/core/types"
	"arbor/gateways/entrypoint"
	"arbor/modules/audithook"
	"arbor/modules/ecdsa"
	"arbor/modules/sweeper"
)

var (
	entryAddr     = common.HexToAddress("0x0000000000000000000000000000000000000e01")
	accountAddr   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	validatorAddr = common.HexToAddress("0x0000000000000000000000000000000000000101")
	hookAddr      = common.HexToAddress("0x0000000000000000000000000000000000000104")
	sweeperAddr   = common.HexToAddress("0x0000000000000000000000000000000000000102")
	merchantAddr  = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	treasuryAddr  = common.HexToAddress("0x00000000000000000000000000000000000000dd")
)

// demoCmd stands up an account in the in-memory host environment, installs
// the sample modules and pushes a few operations through every entry point.
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run an end-to-end account demo in an in-memory environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		logger.SetLevel(cfg.LogLevel)
		ctx := logger.WithComponentName(cmd.Context(), "demo")
		return runDemo(ctx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

func runDemo(ctx context.Context, cfg *config.Config) error {
	env := hostenv.New()
	env.Fund(accountAddr, big.NewInt(1_000_000_000))

	ownerKey, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	owner := crypto.PubkeyToAddress(ownerKey.PublicKey)

	attester, err := buildAttester(cfg)
	if err != nil {
		return err
	}

	bus := events.New(cfg.EventBuffer)
	acct := account.New(accountAddr, owner, entryAddr, env.Bind(accountAddr),
		account.WithAttester(attester),
		account.WithBus(bus),
		account.WithIdentity(cfg.Account.Vendor, cfg.Account.Variant, cfg.Account.Version),
	)
	fmt.Printf("account %s (%s), owner %s\n", accountAddr.Hex(), acct.AccountID(), owner.Hex())

	failures, cancel, err := bus.Subscribe(account.TopicTryExecuteFailed)
	if err != nil {
		return err
	}
	defer cancel()

	// The account's own logic: user-op calldata is a packed single execution.
	env.Register(accountAddr, func(ctx context.Context, caller common.Address, _ *big.Int, data []byte) ([]byte, error) {
		exec, err := codec.DecodeSingle(data)
		if err != nil {
			return nil, err
		}
		return env.Call(ctx, accountAddr, exec.Target, exec.Value, exec.CallData)
	})
	env.Register(merchantAddr, func(context.Context, common.Address, *big.Int, []byte) ([]byte, error) {
		return []byte("ok"), nil
	})

	// Initialize with the ECDSA root validator.
	rootValidator := ecdsa.New(validatorAddr)
	implID := crypto.Keccak256Hash([]byte("arbor/demo-implementation/v1"))
	if err := acct.Initialize(ctx, entryAddr, implID, rootValidator, owner.Bytes()); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	// Hook with a value ceiling.
	hook, err := audithook.NewFromConfig(hookAddr, cfg.Modules["audithook"])
	if err != nil {
		return err
	}
	if cfg.Modules["audithook"] == nil {
		hook.SetCeiling(big.NewInt(500_000))
	}
	if err := acct.InstallModule(ctx, entryAddr, types.ModuleTypeHook, hook, nil); err != nil {
		return fmt.Errorf("install hook: %w", err)
	}

	// A try-mode batch with one deliberately failing unit (value above the
	// account balance).
	batch, err := codec.EncodeBatch([]types.Execution{
		{Target: merchantAddr, Value: big.NewInt(1000), CallData: []byte("pay")},
		{Target: merchantAddr, Value: big.NewInt(2_000_000_000)},
		{Target: merchantAddr, Value: big.NewInt(2000), CallData: []byte("pay")},
	})
	if err != nil {
		return err
	}
	mode := types.EncodeMode(types.CallTypeBatch, types.ExecTypeTry)
	if err := acct.Execute(ctx, entryAddr, mode, batch); err != nil {
		return fmt.Errorf("execute batch: %w", err)
	}
	for len(failures) > 0 {
		ev := (<-failures).(account.TryExecuteFailedEvent)
		fmt.Printf("try-mode unit %d failed\n", ev.Index)
	}

	// A user operation through the coordinator.
	entry, err := entrypoint.New(entryAddr, cfg.Gateways["entrypoint"])
	if err != nil {
		return err
	}
	entry.Register(acct)
	entry.DepositTo(accountAddr, big.NewInt(10_000_000))

	opCallData, err := codec.EncodeSingle(types.Execution{
		Target: merchantAddr, Value: big.NewInt(4000), CallData: []byte("pay"),
	})
	if err != nil {
		return err
	}
	op := &types.UserOperation{
		Sender:               accountAddr,
		Nonce:                new(big.Int).Lsh(validatorAddr.Big(), 96),
		CallData:             opCallData,
		CallGasLimit:         100_000,
		VerificationGasLimit: 50_000,
		PreVerificationGas:   21_000,
		MaxFeePerGas:         big.NewInt(2),
	}
	op.Signature, err = sig.Sign(op.Hash(), ownerKey)
	if err != nil {
		return err
	}
	for _, r := range entry.HandleOps(ctx, []*types.UserOperation{op}) {
		fmt.Printf("receipt %s success=%t reason=%q prefund=%s\n", r.ID, r.Success, r.Reason, r.Prefund)
	}

	// Executor-driven sweep to the treasury.
	sweep := sweeper.New(sweeperAddr)
	if err := acct.InstallModule(ctx, entryAddr, types.ModuleTypeExecutor, sweep, treasuryAddr.Bytes()); err != nil {
		return fmt.Errorf("install sweeper: %w", err)
	}
	results, err := sweep.Sweep(ctx, acct, []*big.Int{big.NewInt(100_000), big.NewInt(200_000)})
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	for i, r := range results {
		fmt.Printf("sweep unit %d success=%t\n", i, r.Success)
	}
	fmt.Printf("treasury balance: %s\n", env.Balance(treasuryAddr))

	fmt.Println("\naudit trail:")
	for _, rec := range hook.Trail() {
		fmt.Printf("  %s caller=%s value=%s completed=%t clean=%t\n",
			rec.ID, rec.Caller.Hex(), rec.Value, rec.Completed, rec.Clean)
	}
	return nil
}

// buildAttester returns the approval registry from the YAML store when
// attestation is enabled, the allow-all gate otherwise. The demo modules are
// approved in-memory so the run succeeds either way.
func buildAttester(cfg *config.Config) (attest.Attester, error) {
	if !cfg.Attestation.Enabled {
		return attest.AllowAll{}, nil
	}
	path := cfg.Attestation.StorePath
	if path == "" {
		var err error
		path, err = atteststore.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	store, err := atteststore.Load(path)
	if err != nil {
		return nil, err
	}
	reg := store.Registry()
	reg.Approve(validatorAddr, types.ModuleTypeValidator)
	reg.Approve(hookAddr, types.ModuleTypeHook)
	reg.Approve(sweeperAddr, types.ModuleTypeExecutor)
	return reg, nil
}
