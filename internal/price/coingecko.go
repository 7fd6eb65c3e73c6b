// Package price quotes tokens in USD so a sale price can be derived from
// market rates.
package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public CoinGecko API.
const DefaultBaseURL = "https://api.coingecko.com/api/v3"

// Scale is the fixed-point scale of USD quotes returned by Quote (8 decimals).
var Scale = big.NewInt(100_000_000)

// Fetcher retrieves token prices from CoinGecko.
type Fetcher struct {
	client   *http.Client
	baseURL  string
	currency string
}

// NewFetcher creates a fetcher quoting in currency (default "usd").
func NewFetcher(currency string) *Fetcher {
	if currency == "" {
		currency = "usd"
	}
	return &Fetcher{
		client:   &http.Client{Timeout: 10 * time.Second},
		baseURL:  DefaultBaseURL,
		currency: strings.ToLower(currency),
	}
}

// WithBaseURL points the fetcher at another CoinGecko-compatible API.
func (f *Fetcher) WithBaseURL(u string) *Fetcher {
	f.baseURL = strings.TrimRight(u, "/")
	return f
}

// Prices returns the price of each CoinGecko coin id. Ids the API does not
// know are absent from the result.
func (f *Fetcher) Prices(ctx context.Context, ids ...string) (map[string]float64, error) {
	if len(ids) == 0 {
		return map[string]float64{}, nil
	}
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", f.currency)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/simple/price?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching prices: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading price response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	// {"usd-coin":{"usd":1.0001}, ...}
	var raw map[string]map[string]float64
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parsing price response: %w", err)
	}
	prices := make(map[string]float64, len(raw))
	for id, quotes := range raw {
		if p, ok := quotes[f.currency]; ok {
			prices[id] = p
		}
	}
	return prices, nil
}

// Quote returns the price of one coin as a fixed-point integer at Scale.
func (f *Fetcher) Quote(ctx context.Context, id string) (*big.Int, error) {
	prices, err := f.Prices(ctx, id)
	if err != nil {
		return nil, err
	}
	p, ok := prices[id]
	if !ok {
		return nil, fmt.Errorf("price not available for %q", id)
	}
	return ToFixed(p)
}

// ToFixed converts a positive float price to an integer at Scale.
func ToFixed(p float64) (*big.Int, error) {
	if !(p > 0) || math.IsInf(p, 1) {
		return nil, fmt.Errorf("price must be positive, got %v", p)
	}
	v, _ := new(big.Float).Mul(big.NewFloat(p), new(big.Float).SetInt(Scale)).Int(nil)
	if v.Sign() == 0 {
		return nil, fmt.Errorf("price %v is below the quote resolution", p)
	}
	return v, nil
}
