// Package rpc picks which RPC endpoint a chain-linked token talks to.
package rpc

import (
	"context"
	"sync"
	"time"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
)

// DefaultProbeTimeout bounds a single endpoint probe.
const DefaultProbeTimeout = 5 * time.Second

// Probe is the outcome of pinging one endpoint.
type Probe struct {
	URL     string
	Latency time.Duration
	Block   uint64
	Err     error
}

// OK reports whether the endpoint answered.
func (p Probe) OK() bool { return p.Err == nil }

// ProbeAll pings every url in parallel. Results keep the order of urls.
func ProbeAll(ctx context.Context, urls []string, timeout time.Duration) []Probe {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	out := make([]Probe, len(urls))
	var wg sync.WaitGroup
	for i, url := range urls {
		wg.Add(1)
		go func(idx int, u string) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			latency, block, err := chain.NewEVMClient(u).Ping(pctx)
			out[idx] = Probe{URL: u, Latency: latency, Block: block, Err: err}
		}(i, url)
	}
	wg.Wait()
	return out
}
