package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/Mohsinsiddi/w3sale/internal/rpc"
	"github.com/Mohsinsiddi/w3sale/internal/ui"
	"github.com/spf13/cobra"
)

const pingTimeout = 10 * time.Second

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Inspect the EVM networks linked tokens can live on",
}

var networkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known networks and their RPCs",
	RunE: func(cmd *cobra.Command, args []string) error {
		t := ui.NewTable([]ui.Column{
			{Title: "Name", Width: 12},
			{Title: "Network", Width: 14},
			{Title: "Chain ID", Width: 10},
			{Title: "RPC", Width: 48},
		})
		for _, n := range chain.NewRegistry(cfg.CustomRPCs).All() {
			id := "-"
			if n.ChainID != 0 {
				id = fmt.Sprint(n.ChainID)
			}
			rpc := "-"
			if len(n.RPCs) > 0 {
				rpc = n.RPCs[0]
				if len(n.RPCs) > 1 {
					rpc += fmt.Sprintf(" (+%d)", len(n.RPCs)-1)
				}
			}
			t.AddRow(ui.Row{n.Name, n.DisplayName, id, rpc})
		}
		fmt.Println(t.Render())
		return nil
	},
}

var networkPingCmd = &cobra.Command{
	Use:   "ping <network>",
	Short: "Check that a network's RPCs answer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		net, err := chain.NewRegistry(cfg.CustomRPCs).GetByName(args[0])
		if err != nil {
			return fmt.Errorf("%w: %s", err, args[0])
		}
		if len(net.RPCs) == 0 {
			return fmt.Errorf("no RPC configured for %s\n  Add one with: w3sale config add-rpc %s <url>", net.Name, net.Name)
		}
		sp := ui.NewSpinner(cmd.ErrOrStderr(), fmt.Sprintf("pinging %d endpoint(s)", len(net.RPCs)))
		sp.Start()
		probes := rpc.ProbeAll(cmd.Context(), net.RPCs, pingTimeout)
		sp.Stop()

		best, ok := rpc.Fastest(probes)
		if !ok {
			for _, p := range probes {
				fmt.Println(ui.Warn(fmt.Sprintf("%s  %s", p.URL, firstLine(p.Err.Error()))))
			}
			return fmt.Errorf("no RPC for %s answered", net.Name)
		}
		for _, p := range probes {
			if !p.OK() {
				fmt.Println(ui.Warn(fmt.Sprintf("%s  %s", p.URL, firstLine(p.Err.Error()))))
				continue
			}
			line := fmt.Sprintf("%s  block %d  %s", p.URL, p.Block, p.Latency.Round(time.Millisecond))
			if p.URL == best.URL {
				line += "  " + ui.Meta("(fastest)")
			}
			fmt.Println(ui.Success(line))
		}
		return nil
	},
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func init() {
	networkCmd.AddCommand(networkListCmd, networkPingCmd)
}
