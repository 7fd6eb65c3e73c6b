package rpc

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoHealthyRPC is returned when no endpoint can be used.
var ErrNoHealthyRPC = errors.New("no healthy RPC endpoint available")

// Strategy decides how an endpoint is chosen.
type Strategy string

const (
	// StrategyFastest probes every endpoint and takes the lowest latency
	// among those within staleBlocks of the highest block seen.
	StrategyFastest Strategy = "fastest"
	// StrategyFailover takes the first endpoint that answers, in order.
	StrategyFailover Strategy = "failover"
	// StrategyFirst takes the first endpoint without probing.
	StrategyFirst Strategy = "first"

	staleBlocks = 3
)

// ParseStrategy accepts the names above; empty means StrategyFirst.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyFirst:
		return StrategyFirst, nil
	case StrategyFastest, StrategyFailover:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown rpc strategy %q (want first, fastest or failover)", s)
}

// Select returns the endpoint to use from urls.
func Select(ctx context.Context, urls []string, strategy Strategy, timeout time.Duration) (string, error) {
	if len(urls) == 0 {
		return "", ErrNoHealthyRPC
	}
	if len(urls) == 1 || strategy == StrategyFirst || strategy == "" {
		return urls[0], nil
	}
	probes := ProbeAll(ctx, urls, timeout)
	if strategy == StrategyFailover {
		for _, p := range probes {
			if p.OK() {
				return p.URL, nil
			}
		}
		return "", ErrNoHealthyRPC
	}
	best, ok := Fastest(probes)
	if !ok {
		return "", ErrNoHealthyRPC
	}
	return best.URL, nil
}

// Fastest picks the lowest-latency healthy probe that is not lagging.
func Fastest(probes []Probe) (Probe, bool) {
	var top uint64
	for _, p := range probes {
		if p.OK() && p.Block > top {
			top = p.Block
		}
	}
	var (
		best  Probe
		found bool
	)
	for _, p := range probes {
		if !p.OK() || top-p.Block > staleBlocks {
			continue
		}
		if !found || p.Latency < best.Latency {
			best, found = p, true
		}
	}
	return best, found
}
