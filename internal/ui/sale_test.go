package ui

import (
	"math/big"
	"strings"
	"testing"

	"github.com/Mohsinsiddi/w3sale/internal/sale"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/stretchr/testify/assert"
)

var (
	usdc = TokenInfo{Address: common.HexToAddress("0x1111111111111111111111111111111111111111"), Symbol: "USDC", Decimals: 6}
	gov  = TokenInfo{Address: common.HexToAddress("0x2222222222222222222222222222222222222222"), Symbol: "GOV", Decimals: 18}
)

func testStatus(limit *big.Int) sale.Status {
	return sale.Status{
		Address: common.HexToAddress("0x3333333333333333333333333333333333333333"),
		Phase:   sale.PhaseActive,
		Owner:   common.HexToAddress("0x4444444444444444444444444444444444444444"),
		Config: sale.Config{
			TokenIn:       usdc.Address,
			TokenOut:      gov.Address,
			SaleStart:     1_700_000_000,
			SaleDuration:  3600,
			TokenOutPrice: big.NewInt(2_000_000),
			SaleRecipient: common.HexToAddress("0x5555555555555555555555555555555555555555"),
			TokenInLimit:  limit,
		},
		Totals: sale.Totals{
			TokenIn:         big.NewInt(5_000_000),
			TokenOutBought:  new(big.Int).Mul(big.NewInt(25), big.NewInt(1e17)),
			TokenOutClaimed: new(big.Int),
		},
		TokenInLimitLeft: big.NewInt(5_000_000),
		SecondsUntilEnd:  90,
		Depositors:       2,
		At:               1_700_000_100,
	}
}

// ---------------------------------------------------------------------------
// TokenInfo.Amount
// ---------------------------------------------------------------------------

func TestTokenInfoAmount(t *testing.T) {
	assert.Equal(t, "1.5 USDC", usdc.Amount(big.NewInt(1_500_000)))
	assert.Equal(t, "0 GOV", gov.Amount(nil))
}

// ---------------------------------------------------------------------------
// SaleStatusBlock
// ---------------------------------------------------------------------------

func TestSaleStatusBlockUnlimited(t *testing.T) {
	out := SaleStatusBlock(testStatus(math.MaxBig256), usdc, gov)
	assert.Contains(t, out, "unlimited")
	assert.Contains(t, out, "open")
	assert.Contains(t, out, "2 USDC per GOV")
	assert.Contains(t, out, "5 USDC")
	assert.Contains(t, out, "2.5 GOV")
}

func TestSaleStatusBlockWithLimit(t *testing.T) {
	out := SaleStatusBlock(testStatus(big.NewInt(10_000_000)), usdc, gov)
	assert.Contains(t, out, "10 USDC")
	assert.NotContains(t, out, "unlimited")
	assert.Contains(t, out, "in 1m 30s")
}

func TestSaleStatusBlockShowsGuestlistAndPause(t *testing.T) {
	st := testStatus(math.MaxBig256)
	st.Config.Guestlist = common.HexToAddress("0x6666666666666666666666666666666666666666")
	st.Paused = true
	out := SaleStatusBlock(st, usdc, gov)
	assert.Contains(t, out, st.Config.Guestlist.Hex())
	assert.Contains(t, out, "yes")
}

// ---------------------------------------------------------------------------
// CommitmentsTable
// ---------------------------------------------------------------------------

func TestCommitmentsTableSortedByID(t *testing.T) {
	out := CommitmentsTable(map[sale.BeneficiaryID]*big.Int{
		7: new(big.Int).Mul(big.NewInt(3), big.NewInt(1e18)),
		1: big.NewInt(5e17),
	}, gov)
	assert.Contains(t, out, "3 GOV")
	assert.Contains(t, out, "0.5 GOV")
	assert.Less(t, strings.Index(out, "0.5 GOV"), strings.Index(out, "3 GOV"))
}

// ---------------------------------------------------------------------------
// FormatSeconds
// ---------------------------------------------------------------------------

func TestFormatSeconds(t *testing.T) {
	cases := map[int64]string{
		-5:     "0s",
		0:      "0s",
		59:     "59s",
		60:     "1m",
		3661:   "1h 1m 1s",
		90061:  "1d 1h 1m 1s",
		172800: "2d",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatSeconds(in), "FormatSeconds(%d)", in)
	}
}
