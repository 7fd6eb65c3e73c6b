package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Mohsinsiddi/w3sale/internal/api"
	"github.com/Mohsinsiddi/w3sale/internal/config"
	"github.com/Mohsinsiddi/w3sale/internal/ui"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveAddrFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the sale over HTTP",
	Long: `Serve the sale over a JSON API. Reads are open. Buy, claim, finalize and
sweep require an EIP-191 signature of the request's canonical message by the
acting account (see: w3sale wallet sign).

The server owns the state file while it runs; stop it before using the
state-changing CLI commands.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()
		if _, err := s.sale(); err != nil {
			return err
		}

		addr := cfg.ListenAddr
		if serveAddrFlag != "" {
			addr = serveAddrFlag
		}
		if !verbose {
			gin.SetMode(gin.ReleaseMode)
		}
		srv := api.NewServer(s.world, s.events,
			api.WithJournal(s.journal),
			api.WithClock(clock()),
			api.WithRequestTTL(config.SignedRequestTTL),
			api.WithLogger(logger.Named("api")),
		)
		fmt.Println(ui.Info("Serving sale API on " + ui.Val(addr) + " (Ctrl+C to stop)"))
		logger.Debug("serve", zap.String("state", s.world.Path()), zap.String("journal", cfg.JournalPath()))
		return srv.ListenAndServe(ctx, addr, config.ReadHeaderTimeout, config.ShutdownTimeout)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddrFlag, "addr", "", "listen address (default: listen_addr from config)")
}
