package cmd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"arbor/core/account"
	"arbor/core/hostenv"
	"arbor/core/types"
)

// capsCmd prints the capability advertisement of a default-configured
// account: supported module categories and execution modes.
var capsCmd = &cobra.Command{
	Use:   "caps",
	Short: "Show account capabilities",
	RunE: func(cmd *cobra.Command, args []string) error {
		env := hostenv.New()
		self := common.HexToAddress("0x00000000000000000000000000000000000000aa")
		acct := account.New(self, self, self, env.Bind(self))

		fmt.Printf("account id: %s\n\n", acct.AccountID())

		fmt.Println("module categories:")
		for _, mt := range []types.ModuleType{
			types.ModuleTypeValidator,
			types.ModuleTypeExecutor,
			types.ModuleTypeFallback,
			types.ModuleTypeHook,
			types.ModuleTypePreValidationHookSig,
			types.ModuleTypePreValidationHookOp,
		} {
			fmt.Printf("  %-24s (%d) supported=%t\n", mt, int(mt), acct.SupportsModule(mt))
		}

		fmt.Println("\nexecution modes:")
		for _, ct := range []types.CallType{types.CallTypeSingle, types.CallTypeBatch, types.CallTypeDelegate} {
			for _, et := range []types.ExecType{types.ExecTypeDefault, types.ExecTypeTry} {
				mode := types.EncodeMode(ct, et)
				fmt.Printf("  callType=0x%02x execType=0x%02x supported=%t\n",
					byte(ct), byte(et), acct.SupportsExecutionMode(mode))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(capsCmd)
}
