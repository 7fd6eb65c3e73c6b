package ui

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/Mohsinsiddi/w3sale/internal/sale"
	"github.com/Mohsinsiddi/w3sale/internal/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

// TokenInfo describes one side of the sale for display.
type TokenInfo struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
}

// Amount renders raw base units with the token symbol.
func (t TokenInfo) Amount(raw *big.Int) string {
	return token.FormatUnits(raw, t.Decimals) + " " + t.Symbol
}

// SaleStatusBlock renders the read surface of a sale.
func SaleStatusBlock(st sale.Status, in, out TokenInfo) string {
	cfg := st.Config
	limit := "unlimited"
	left := "unlimited"
	if cfg.TokenInLimit != nil && cfg.TokenInLimit.Cmp(math.MaxBig256) != 0 {
		limit = in.Amount(cfg.TokenInLimit)
		left = in.Amount(st.TokenInLimitLeft)
	}
	guestlist := "open"
	if cfg.Guestlist != (common.Address{}) {
		guestlist = cfg.Guestlist.Hex()
	}
	paused := "no"
	if st.Paused {
		paused = StyleWarning.Render("yes")
	}

	pairs := [][2]string{
		{"Sale", st.Address.Hex()},
		{"Phase", PhaseBadge(st.Phase)},
		{"Owner", st.Owner.Hex()},
		{"Paused", paused},
		{"Token in", in.Symbol + "  " + in.Address.Hex()},
		{"Token out", out.Symbol + "  " + out.Address.Hex()},
		{"Price", fmt.Sprintf("%s per %s", in.Amount(cfg.TokenOutPrice), out.Symbol)},
		{"Starts", formatUnix(cfg.SaleStart) + countdown(st.SecondsUntilStart)},
		{"Ends", formatUnix(cfg.SaleEnd()) + countdown(st.SecondsUntilEnd)},
		{"Recipient", cfg.SaleRecipient.Hex()},
		{"Guestlist", guestlist},
		{"Limit", limit},
		{"Limit left", left},
		{"Deposited", in.Amount(st.Totals.TokenIn)},
		{"Sold", out.Amount(st.Totals.TokenOutBought)},
		{"Claimed", out.Amount(st.Totals.TokenOutClaimed)},
		{"Depositors", fmt.Sprintf("%d", st.Depositors)},
	}
	return KeyValueBlock("Token Sale", pairs)
}

// CommitmentsTable lists per-beneficiary commitments by id.
func CommitmentsTable(commitments map[sale.BeneficiaryID]*big.Int, out TokenInfo) string {
	ids := make([]sale.BeneficiaryID, 0, len(commitments))
	for id := range commitments {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	t := NewTable([]Column{
		{Title: "BENEFICIARY", Width: 12},
		{Title: "COMMITTED", Width: 32},
	})
	for _, id := range ids {
		t.AddRow(Row{fmt.Sprintf("%d", id), out.Amount(commitments[id])})
	}
	return t.Render()
}

// FormatSeconds renders a duration in seconds as "1d 2h 3m 4s".
func FormatSeconds(secs int64) string {
	if secs <= 0 {
		return "0s"
	}
	var parts []string
	units := []struct {
		suffix string
		size   int64
	}{{"d", 86400}, {"h", 3600}, {"m", 60}, {"s", 1}}
	for _, u := range units {
		if n := secs / u.size; n > 0 {
			parts = append(parts, fmt.Sprintf("%d%s", n, u.suffix))
			secs -= n * u.size
		}
	}
	return strings.Join(parts, " ")
}

func formatUnix(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01-02 15:04:05 UTC")
}

func countdown(secs int64) string {
	if secs <= 0 {
		return ""
	}
	return StyleMeta.Render("  (in " + FormatSeconds(secs) + ")")
}
