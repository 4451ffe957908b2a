package cmd

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"arbor/cmd/arbor/internal/atteststore"
	"arbor/core/types"
)

var attestStorePath string

var attestCmd = &cobra.Command{
	Use:   "attest",
	Short: "Manage the module attestation approval list",
}

var attestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List approved (module, category) pairs",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := loadStore()
		if err != nil {
			return err
		}
		if len(store.Approvals) == 0 {
			fmt.Println("no approvals")
			return nil
		}
		for _, e := range store.Approvals {
			fmt.Printf("%s  %s (%d)", e.Address, types.ModuleType(e.ModuleType), e.ModuleType)
			if e.Note != "" {
				fmt.Printf("  # %s", e.Note)
			}
			fmt.Println()
		}
		return nil
	},
}

var attestNote string

var attestApproveCmd = &cobra.Command{
	Use:   "approve <address> <module-type>",
	Short: "Approve a (module, category) pair",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, mt, err := parsePair(args)
		if err != nil {
			return err
		}
		store, path, err := loadStore()
		if err != nil {
			return err
		}
		if !store.Approve(addr, mt, attestNote) {
			fmt.Println("already approved")
			return nil
		}
		return atteststore.Save(store, path)
	},
}

var attestRevokeCmd = &cobra.Command{
	Use:   "revoke <address> <module-type>",
	Short: "Revoke a (module, category) pair",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, mt, err := parsePair(args)
		if err != nil {
			return err
		}
		store, path, err := loadStore()
		if err != nil {
			return err
		}
		if !store.Revoke(addr, mt) {
			fmt.Println("not approved")
			return nil
		}
		return atteststore.Save(store, path)
	},
}

func loadStore() (*atteststore.Store, string, error) {
	path := attestStorePath
	if path == "" {
		var err error
		path, err = atteststore.DefaultPath()
		if err != nil {
			return nil, "", err
		}
	}
	store, err := atteststore.Load(path)
	return store, path, err
}

func parsePair(args []string) (common.Address, types.ModuleType, error) {
	if !common.IsHexAddress(args[0]) {
		return common.Address{}, 0, fmt.Errorf("invalid address %q", args[0])
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return common.Address{}, 0, fmt.Errorf("invalid module type %q", args[1])
	}
	mt := types.ModuleType(n)
	if !types.KnownModuleType(mt) {
		return common.Address{}, 0, fmt.Errorf("unknown module type %d", n)
	}
	return common.HexToAddress(args[0]), mt, nil
}

func init() {
	attestCmd.PersistentFlags().StringVar(&attestStorePath, "store", "", "path to the attestation store (default: user config dir)")
	attestApproveCmd.Flags().StringVar(&attestNote, "note", "", "free-form note attached to the approval")
	attestCmd.AddCommand(attestListCmd, attestApproveCmd, attestRevokeCmd)
	rootCmd.AddCommand(attestCmd)
}
