package cmd

import (
	"fmt"

	"github.com/Mohsinsiddi/w3sale/internal/rpc"
	"github.com/Mohsinsiddi/w3sale/internal/ui"
	"github.com/spf13/cobra"
)

var initRPCStrategy string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration and show how to start",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(ui.Banner())

		if initRPCStrategy != "" {
			if _, err := rpc.ParseStrategy(initRPCStrategy); err != nil {
				return err
			}
			cfg.RPCStrategy = initRPCStrategy
		}
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}

		fmt.Println(ui.Success("Configuration written to " + cfg.Dir()))
		fmt.Println()
		fmt.Println(ui.Meta("  A local sale from scratch:"))
		steps := []string{
			"w3sale wallet add ops 0x…  &&  w3sale wallet add alice 0x…",
			"w3sale token create USDC --decimals 6 --from ops",
			"w3sale token create GOV --from ops",
			"w3sale sale init --from ops --token-in USDC --token-out GOV --start +1m --duration 1h --price 0.5 --recipient ops",
			"w3sale token mint USDC alice 1000 --from ops  &&  w3sale token approve USDC sale max --from alice",
			"w3sale buy 100 --from alice --beneficiary 1",
		}
		for i, s := range steps {
			fmt.Printf("  %s %s\n", ui.Meta(fmt.Sprintf("%d.", i+1)), s)
		}
		fmt.Println()
		fmt.Println(ui.Hint("Use --now <unix> on any command to step through the sale's lifecycle."))
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initRPCStrategy, "rpc-strategy", "", "how linked tokens pick an RPC: first, fastest or failover")
	rootCmd.AddCommand(initCmd)
}
