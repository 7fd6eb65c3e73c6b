package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// node serves eth_blockNumber with the given block after delay.
func node(t *testing.T, block uint64, delay time.Duration) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(delay)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{ //nolint:errcheck
			"jsonrpc": "2.0",
			"id":      1,
			"result":  fmt.Sprintf("0x%x", block),
		})
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

// deadNode returns a URL nothing listens on.
func deadNode(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

// ---------------------------------------------------------------------------
// ParseStrategy
// ---------------------------------------------------------------------------

func TestParseStrategy(t *testing.T) {
	for in, want := range map[string]Strategy{
		"":         StrategyFirst,
		"first":    StrategyFirst,
		"fastest":  StrategyFastest,
		"failover": StrategyFailover,
	} {
		got, err := ParseStrategy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseStrategy("random")
	assert.ErrorContains(t, err, "unknown rpc strategy")
}

// ---------------------------------------------------------------------------
// Fastest
// ---------------------------------------------------------------------------

func TestFastestPrefersLowLatency(t *testing.T) {
	best, ok := Fastest([]Probe{
		{URL: "a", Latency: 50 * time.Millisecond, Block: 100},
		{URL: "b", Latency: 10 * time.Millisecond, Block: 100},
		{URL: "c", Latency: 30 * time.Millisecond, Block: 99},
	})
	require.True(t, ok)
	assert.Equal(t, "b", best.URL)
}

func TestFastestSkipsLaggingAndFailed(t *testing.T) {
	best, ok := Fastest([]Probe{
		{URL: "stale", Latency: time.Millisecond, Block: 90},
		{URL: "down", Err: errors.New("refused")},
		{URL: "ok", Latency: 80 * time.Millisecond, Block: 100},
	})
	require.True(t, ok)
	assert.Equal(t, "ok", best.URL)
}

func TestFastestWithinStaleWindow(t *testing.T) {
	best, ok := Fastest([]Probe{
		{URL: "tip", Latency: 40 * time.Millisecond, Block: 100},
		{URL: "near", Latency: 5 * time.Millisecond, Block: 100 - staleBlocks},
	})
	require.True(t, ok)
	assert.Equal(t, "near", best.URL)
}

func TestFastestNoneHealthy(t *testing.T) {
	_, ok := Fastest([]Probe{{URL: "x", Err: errors.New("boom")}})
	assert.False(t, ok)
	_, ok = Fastest(nil)
	assert.False(t, ok)
}

// ---------------------------------------------------------------------------
// ProbeAll / Select
// ---------------------------------------------------------------------------

func TestProbeAllKeepsOrder(t *testing.T) {
	urls := []string{node(t, 7, 0), deadNode(t), node(t, 9, 0)}
	probes := ProbeAll(context.Background(), urls, time.Second)
	require.Len(t, probes, 3)
	for i, p := range probes {
		assert.Equal(t, urls[i], p.URL)
	}
	assert.True(t, probes[0].OK())
	assert.Equal(t, uint64(7), probes[0].Block)
	assert.False(t, probes[1].OK())
	assert.Equal(t, uint64(9), probes[2].Block)
}

func TestProbeAllTimeout(t *testing.T) {
	probes := ProbeAll(context.Background(), []string{node(t, 1, 200*time.Millisecond)}, 20*time.Millisecond)
	assert.False(t, probes[0].OK())
}

func TestSelectFirstDoesNotProbe(t *testing.T) {
	dead := deadNode(t)
	got, err := Select(context.Background(), []string{dead, node(t, 1, 0)}, StrategyFirst, time.Second)
	require.NoError(t, err)
	assert.Equal(t, dead, got)
}

func TestSelectFailoverSkipsDead(t *testing.T) {
	live := node(t, 5, 0)
	got, err := Select(context.Background(), []string{deadNode(t), live}, StrategyFailover, time.Second)
	require.NoError(t, err)
	assert.Equal(t, live, got)
}

func TestSelectFastest(t *testing.T) {
	slow := node(t, 10, 100*time.Millisecond)
	fast := node(t, 10, 0)
	got, err := Select(context.Background(), []string{slow, fast}, StrategyFastest, time.Second)
	require.NoError(t, err)
	assert.Equal(t, fast, got)
}

func TestSelectNoHealthy(t *testing.T) {
	_, err := Select(context.Background(), nil, StrategyFastest, time.Second)
	assert.ErrorIs(t, err, ErrNoHealthyRPC)

	urls := []string{deadNode(t), deadNode(t)}
	_, err = Select(context.Background(), urls, StrategyFailover, time.Second)
	assert.ErrorIs(t, err, ErrNoHealthyRPC)
	_, err = Select(context.Background(), urls, StrategyFastest, time.Second)
	assert.ErrorIs(t, err, ErrNoHealthyRPC)
}
