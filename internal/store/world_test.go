package store

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/Mohsinsiddi/w3sale/internal/sale"
	"github.com/Mohsinsiddi/w3sale/internal/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	operator  = common.HexToAddress("0x0900000000000000000000000000000000000001")
	alice     = common.HexToAddress("0xa11ce00000000000000000000000000000000001")
	recipient = common.HexToAddress("0x7ec1000000000000000000000000000000000001")
)

const start = int64(1_700_000_000)

func statePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "state", "sale.json")
}

// newSaleWorld creates two tokens and an open sale at price 1 with the clock
// inside the window.
func newSaleWorld(t *testing.T, path string) (*World, *token.Ledger, *token.Ledger) {
	t.Helper()
	w := New(path, WithLogger(zaptest.NewLogger(t)), WithSaleOptions(sale.WithClock(sale.FixedClock(start+10))))
	in := w.CreateToken(operator, "USD Coin", "USDC", 6)
	out := w.CreateToken(operator, "Governance", "GOV", 6)
	_, err := w.CreateSale(context.Background(), operator, in.Address(), out.Address(), sale.Params{
		SaleStart:     start,
		SaleDuration:  3600,
		TokenOutPrice: big.NewInt(1_000_000),
		SaleRecipient: recipient,
	})
	require.NoError(t, err)
	return w, in, out
}

func TestOpenMissingFileGivesEmptyWorld(t *testing.T) {
	w, err := Open(statePath(t))
	require.NoError(t, err)
	_, err = w.Sale()
	assert.ErrorIs(t, err, ErrNoSale)
	assert.Empty(t, w.Ledgers())
}

func TestOpenRejectsCorruptAndNewerState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, err := Open(path)
	assert.ErrorContains(t, err, "parsing state")

	require.NoError(t, os.WriteFile(path, []byte(`{"version": 99}`), 0o600))
	_, err = Open(path)
	assert.ErrorContains(t, err, "newer")
}

func TestAddressesFollowCreatorNonce(t *testing.T) {
	w := New(statePath(t))
	a := w.CreateToken(operator, "A", "A", 18)
	b := w.CreateToken(operator, "B", "B", 18)
	g := w.CreateGuestlist(operator)

	assert.Equal(t, crypto.CreateAddress(operator, 0), a.Address())
	assert.Equal(t, crypto.CreateAddress(operator, 1), b.Address())
	assert.Equal(t, crypto.CreateAddress(operator, 2), g.Address())
}

func TestCreateSaleOnlyOnce(t *testing.T) {
	w, in, out := newSaleWorld(t, statePath(t))
	s, err := w.Sale()
	require.NoError(t, err)
	assert.Equal(t, crypto.CreateAddress(operator, 2), s.Address())
	assert.Equal(t, operator, s.Owner())

	_, err = w.CreateSale(context.Background(), operator, in.Address(), out.Address(), sale.Params{})
	assert.ErrorIs(t, err, ErrSaleExists)
}

func TestCreateSaleFailureKeepsNonce(t *testing.T) {
	w := New(statePath(t))
	in := w.CreateToken(operator, "In", "IN", 18)
	out := w.CreateToken(operator, "Out", "OUT", 18)

	_, err := w.CreateSale(context.Background(), operator, in.Address(), out.Address(), sale.Params{SaleDuration: 1})
	assert.ErrorIs(t, err, sale.ErrZeroPrice)
	_, err = w.Sale()
	assert.ErrorIs(t, err, ErrNoSale)

	g := w.CreateGuestlist(operator)
	assert.Equal(t, crypto.CreateAddress(operator, 2), g.Address(), "a rejected sale does not burn a nonce")

	_, err = w.CreateSale(context.Background(), operator, common.HexToAddress("0x01"), out.Address(), sale.Params{})
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestSaveAndReopenRoundTrip(t *testing.T) {
	path := statePath(t)
	w, in, out := newSaleWorld(t, path)
	s, err := w.Sale()
	require.NoError(t, err)
	ctx := context.Background()

	g := w.CreateGuestlist(operator)
	require.NoError(t, g.SetGuests(operator, []common.Address{alice}, []bool{true}))
	require.NoError(t, s.SetGuestlist(operator, g))

	require.NoError(t, in.Mint(operator, alice, big.NewInt(5_000_000)))
	require.NoError(t, in.Approve(alice, s.Address(), big.NewInt(5_000_000)))
	_, err = s.Buy(ctx, alice, big.NewInt(2_000_000), 4, nil)
	require.NoError(t, err)
	require.NoError(t, w.Save())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	re, err := Open(path, WithSaleOptions(sale.WithClock(sale.FixedClock(start+10))))
	require.NoError(t, err)
	rs, err := re.Sale()
	require.NoError(t, err)

	want, got := s.Status(), rs.Status()
	assert.Equal(t, want.Address, got.Address)
	assert.Equal(t, want.Owner, got.Owner)
	assert.Equal(t, want.Phase, got.Phase)
	assert.Equal(t, want.Config.Guestlist, got.Config.Guestlist)
	assert.Equal(t, 0, want.Totals.TokenIn.Cmp(got.Totals.TokenIn))
	assert.Equal(t, 0, want.Config.TokenInLimit.Cmp(got.Config.TokenInLimit))
	assert.Equal(t, 0, got.Commitments[4].Cmp(big.NewInt(2_000_000)))
	assert.Equal(t, big.NewInt(2_000_000), rs.Depositor(alice).Bought)
	assert.Equal(t, g.Address(), rs.Guestlist().Address())

	rin, err := re.Ledger(in.Address())
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(3_000_000), rin.BalanceOf(alice))
	assert.Equal(t, big.NewInt(2_000_000), rin.BalanceOf(recipient))
	assert.Equal(t, big.NewInt(3_000_000), rin.Allowance(alice, s.Address()))

	rg, err := re.Guestlist(g.Address())
	require.NoError(t, err)
	assert.True(t, rg.IsGuest(alice))

	// Nonces survive, so the next deployment does not collide.
	next := re.CreateToken(operator, "Next", "NXT", 18)
	assert.NotEqual(t, out.Address(), next.Address())
	assert.Equal(t, crypto.CreateAddress(operator, 4), next.Address())
}

func TestResetDiscardsLaterChanges(t *testing.T) {
	w, in, _ := newSaleWorld(t, statePath(t))
	s, err := w.Sale()
	require.NoError(t, err)
	require.NoError(t, in.Mint(operator, alice, big.NewInt(5_000_000)))
	require.NoError(t, in.Approve(alice, s.Address(), big.NewInt(5_000_000)))
	before := w.Snapshot()

	_, err = s.Buy(context.Background(), alice, big.NewInt(2_000_000), 1, nil)
	require.NoError(t, err)
	w.CreateToken(operator, "Extra", "XTR", 18)

	require.NoError(t, w.Reset(before))

	rs, err := w.Sale()
	require.NoError(t, err)
	assert.Equal(t, 0, rs.Totals().TokenIn.Sign())
	assert.Nil(t, rs.Depositor(alice).VotedFor)
	rin, err := w.Ledger(in.Address())
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5_000_000), rin.BalanceOf(alice))
	assert.Equal(t, 0, rin.BalanceOf(recipient).Sign())
	_, err = w.LedgerBySymbol("XTR")
	assert.ErrorIs(t, err, ErrUnknownToken)

	// The rebuilt sale moves the rebuilt ledger.
	_, err = rs.Buy(context.Background(), alice, big.NewInt(1_000_000), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(4_000_000), rin.BalanceOf(alice))
}

func TestRestoreFailsOnMissingGuestlist(t *testing.T) {
	path := statePath(t)
	w, _, _ := newSaleWorld(t, path)
	s, err := w.Sale()
	require.NoError(t, err)
	g := w.CreateGuestlist(operator)
	require.NoError(t, s.SetGuestlist(operator, g))

	snap := w.Snapshot()
	snap.Guestlists = nil
	broken := New(path)
	assert.ErrorIs(t, broken.restore(snap), ErrUnknownList)
}

func TestLookups(t *testing.T) {
	w, in, _ := newSaleWorld(t, statePath(t))

	l, err := w.LedgerBySymbol("USDC")
	require.NoError(t, err)
	assert.Equal(t, in.Address(), l.Address())
	_, err = w.LedgerBySymbol("usdc")
	assert.ErrorIs(t, err, ErrUnknownToken)

	d, err := w.Decimals(in.Address())
	require.NoError(t, err)
	assert.Equal(t, uint8(6), d)
	assert.Equal(t, "USDC", w.Symbol(in.Address()))

	unknown := common.HexToAddress("0x0000000000000000000000000000000000000abc")
	assert.Equal(t, unknown.Hex(), w.Symbol(unknown))
	_, err = w.Decimals(unknown)
	assert.ErrorIs(t, err, ErrUnknownToken)
	_, err = w.Guestlist(unknown)
	assert.ErrorIs(t, err, ErrUnknownList)
}

// ---------------------------------------------------------------------------
// Linked tokens
// ---------------------------------------------------------------------------

func TestLinkedTokenNeedsResolver(t *testing.T) {
	w := New(statePath(t))
	link := &token.Link{Address: common.HexToAddress("0xcafe000000000000000000000000000000000001"), Symbol: "WETH", Decimals: 18}
	require.NoError(t, w.LinkToken(link))

	_, err := w.Asset(link.Address, operator)
	assert.ErrorIs(t, err, ErrNoLinkResolver)

	d, err := w.Decimals(link.Address)
	require.NoError(t, err)
	assert.Equal(t, uint8(18), d)
	assert.Equal(t, "WETH", w.Symbol(link.Address))
	require.Len(t, w.Links(), 1)
}

func TestLinkedTokenUsesResolver(t *testing.T) {
	backing := token.NewLedger(common.HexToAddress("0xcafe000000000000000000000000000000000001"), "Wrapped", "WETH", 18, operator)
	var gotHolder common.Address
	w := New(statePath(t), WithLinkResolver(func(link *token.Link, holder common.Address) (sale.Asset, error) {
		gotHolder = holder
		return backing.As(holder), nil
	}))
	require.NoError(t, w.LinkToken(&token.Link{Address: backing.Address(), Symbol: "WETH", Decimals: 18}))

	a, err := w.Asset(backing.Address(), alice)
	require.NoError(t, err)
	assert.Equal(t, backing.Address(), a.Address())
	assert.Equal(t, alice, gotHolder)
}

func TestLinkTokenRejectsLocalAddress(t *testing.T) {
	w := New(statePath(t))
	l := w.CreateToken(operator, "A", "A", 18)
	assert.ErrorIs(t, w.LinkToken(&token.Link{Address: l.Address()}), ErrTokenRegistered)
}

func TestSaleAssetActsAsSale(t *testing.T) {
	w, _, out := newSaleWorld(t, statePath(t))
	s, err := w.Sale()
	require.NoError(t, err)
	require.NoError(t, out.Mint(operator, s.Address(), big.NewInt(10)))

	a, err := w.SaleAsset(out.Address())
	require.NoError(t, err)
	require.NoError(t, a.Transfer(context.Background(), alice, big.NewInt(4)))
	assert.Equal(t, big.NewInt(4), out.BalanceOf(alice))
	assert.Equal(t, big.NewInt(6), out.BalanceOf(s.Address()))
}
