// check-rpcs: probes every RPC of every known network in parallel and prints
// which endpoint a linked token would use under the "fastest" strategy.
//
// Run from the module root:
//
//	go run ./scripts/check-rpcs [network...]
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/Mohsinsiddi/w3sale/internal/rpc"
)

const probeTimeout = 12 * time.Second

// ── types ─────────────────────────────────────────────────────────────────────

type result struct {
	network string
	chainID int64
	probes  []rpc.Probe
	best    string
}

// ── main ──────────────────────────────────────────────────────────────────────

func main() {
	reg := chain.NewRegistry(nil)

	var networks []chain.Network
	if len(os.Args) > 1 {
		for _, name := range os.Args[1:] {
			n, err := reg.GetByName(name)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
				os.Exit(1)
			}
			networks = append(networks, *n)
		}
	} else {
		networks = reg.All()
	}

	results := make([]result, len(networks))
	var wg sync.WaitGroup
	for i, n := range networks {
		wg.Add(1)
		go func(idx int, n chain.Network) {
			defer wg.Done()
			probes := rpc.ProbeAll(context.Background(), n.RPCs, probeTimeout)
			r := result{network: n.Name, chainID: n.ChainID, probes: probes}
			if best, ok := rpc.Fastest(probes); ok {
				r.best = best.URL
			}
			results[idx] = r
		}(i, n)
	}
	wg.Wait()

	printTable(results)
}

// ── output ────────────────────────────────────────────────────────────────────

func printTable(results []result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "NETWORK\tCHAIN ID\tRPC\tBLOCK\tLATENCY\tNOTE")
	fmt.Fprintln(w, strings.Repeat("-", 10)+"\t"+
		strings.Repeat("-", 8)+"\t"+
		strings.Repeat("-", 40)+"\t"+
		strings.Repeat("-", 10)+"\t"+
		strings.Repeat("-", 8)+"\t"+
		strings.Repeat("-", 12))

	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(w, "\t\t\t\t\t") // blank separator between networks
		}
		for _, p := range r.probes {
			block, latency, note := "—", "—", ""
			switch {
			case !p.OK():
				note = shortErr(p.Err)
			default:
				block = fmt.Sprint(p.Block)
				latency = p.Latency.Round(time.Millisecond).String()
				if p.URL == r.best {
					note = "fastest"
				}
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n", r.network, r.chainID, p.URL, block, latency, note)
		}
	}
	w.Flush()
}

// ── helpers ───────────────────────────────────────────────────────────────────

func shortErr(err error) string {
	s := err.Error()
	if len(s) > 30 {
		return s[:30] + "…"
	}
	return s
}
