package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Mohsinsiddi/w3sale/internal/journal"
	"github.com/Mohsinsiddi/w3sale/internal/ui"
	"github.com/spf13/cobra"
)

const watchEvents = 10

var watchIntervalFlag int

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live dashboard of the sale's phase, totals and events",
	Long: `Open a terminal dashboard that re-reads the state file and journal on every
tick, so it follows changes made by other w3sale commands or the API server.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval := cfg.WatchInterval
		if watchIntervalFlag > 0 {
			interval = watchIntervalFlag
		}
		ctx := cmd.Context()
		fetch := func() (*ui.SaleView, error) { return fetchSaleView(ctx) }
		if _, err := fetch(); err != nil {
			return err
		}
		_, err := ui.NewDashboard(time.Duration(interval)*time.Second, fetch).Run()
		return err
	},
}

// fetchSaleView reloads the world and the most recent journal entries.
func fetchSaleView(ctx context.Context) (*ui.SaleView, error) {
	s, err := openSession(ctx)
	if err != nil {
		return nil, err
	}
	defer s.close()

	sl, err := s.sale()
	if err != nil {
		return nil, err
	}
	st := sl.Status()
	view := &ui.SaleView{
		Status:   st,
		TokenIn:  s.tokenInfo(st.Config.TokenIn),
		TokenOut: s.tokenInfo(st.Config.TokenOut),
	}

	counts, err := s.journal.Count(ctx, sl.Address())
	if err != nil {
		return nil, err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	// Seq is global across sales, so page from the start and keep the tail.
	entries, err := s.journal.List(ctx, journal.Filter{Sale: sl.Address(), Limit: total + 1})
	if err != nil {
		return nil, err
	}
	if len(entries) > watchEvents {
		entries = entries[len(entries)-watchEvents:]
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		view.Events = append(view.Events, ui.EventLine{
			Seq:     e.Seq,
			Name:    e.Name,
			At:      e.At,
			Summary: truncate(compactJSON(e.Payload), 72),
		})
	}
	return view, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s…", s[:n-1])
}

func init() {
	watchCmd.Flags().IntVarP(&watchIntervalFlag, "interval", "i", 0, "refresh interval in seconds (default: watch_interval from config)")
}
