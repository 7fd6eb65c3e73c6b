package cmd

import (
	"fmt"
	"os"

	"github.com/Mohsinsiddi/w3sale/internal/config"
	"github.com/Mohsinsiddi/w3sale/internal/logging"
	"github.com/Mohsinsiddi/w3sale/internal/ui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is the current release. Overridable via build ldflags:
//
//	go build -ldflags "-X github.com/Mohsinsiddi/w3sale/cmd.Version=1.2.3" .
var Version = "0.1.0"

// ConfigDirEnv overrides the --config flag default.
const ConfigDirEnv = "W3SALE_CONFIG_DIR"

var (
	cfgDir    string
	cfg       *config.Config
	logger    *zap.Logger
	verbose   bool
	nowFlag   int64
	fromFlag  string
	assumeYes bool
)

// rootCmd is the top-level command.
var rootCmd = &cobra.Command{
	Use:   "w3sale",
	Short: "Run fixed-price token sales",
	Long: `w3sale runs a fixed-price token sale: buyers deposit token-in during a
time window, receive a token-out entitlement at the configured price, and claim
it once the operator has finalized the sale.

Every command is one transaction against the state file in the config
directory. Accounts are wallet names or hex addresses (--from).

Use --now <unix> to run a command at a fixed point in time, which makes it
possible to walk a sale through its whole lifecycle from a script.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		var err error
		cfg, err = config.Load(cfgDir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		logger, err = logging.New(cfg.LogLevel, verbose)
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync() //nolint:errcheck
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.Err(err.Error()))
		os.Exit(1)
	}
}

func init() {
	if envDir := os.Getenv(ConfigDirEnv); envDir != "" {
		cfgDir = envDir
	}

	rootCmd.PersistentFlags().StringVar(&cfgDir, "config", cfgDir, "config directory (default: ~/.w3sale)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "human-readable debug logging")
	rootCmd.PersistentFlags().Int64Var(&nowFlag, "now", 0, "run at this unix time instead of the wall clock")
	rootCmd.PersistentFlags().StringVar(&fromFlag, "from", "", "acting account: wallet name or hex address (default: default wallet)")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "skip confirmation prompts")

	rootCmd.AddCommand(
		walletCmd,
		tokenCmd,
		guestlistCmd,
		saleCmd,
		buyCmd,
		claimCmd,
		eventsCmd,
		watchCmd,
		serveCmd,
		networkCmd,
		configCmd,
	)
}
