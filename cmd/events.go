package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Mohsinsiddi/w3sale/internal/journal"
	"github.com/Mohsinsiddi/w3sale/internal/ui"
	"github.com/spf13/cobra"
)

var (
	eventsName  string
	eventsAfter int64
	eventsLimit int
	eventsJSON  bool
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List the sale's journaled events in commit order",
	Example: `  w3sale events
  w3sale events --name Sale --limit 20
  w3sale events --after 42 --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()

		sl, err := s.sale()
		if err != nil {
			return err
		}
		entries, err := s.journal.List(ctx, journal.Filter{
			Sale:     sl.Address(),
			Name:     eventsName,
			AfterSeq: eventsAfter,
			Limit:    eventsLimit,
		})
		if err != nil {
			return err
		}
		if eventsJSON {
			return printJSON(entries)
		}
		if len(entries) == 0 {
			fmt.Println(ui.Info("No events."))
			return nil
		}

		t := ui.NewTable([]ui.Column{
			{Title: "Seq", Width: 6},
			{Title: "Event", Width: 22},
			{Title: "At (UTC)", Width: 20},
			{Title: "Payload", Width: 80},
		})
		for _, e := range entries {
			t.AddRow(ui.Row{fmt.Sprint(e.Seq), e.Name, e.At.Format("2006-01-02 15:04:05"), compactJSON(e.Payload)})
		}
		fmt.Println(t.Render())
		return nil
	},
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	eventsCmd.Flags().StringVar(&eventsName, "name", "", "only events with this name (e.g. Sale, Claim)")
	eventsCmd.Flags().Int64Var(&eventsAfter, "after", 0, "only events after this sequence number")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", journal.DefaultLimit, "maximum events to list")
	eventsCmd.Flags().BoolVar(&eventsJSON, "json", false, "print entries as JSON")
}
