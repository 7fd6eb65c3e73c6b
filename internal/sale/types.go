package sale

import (
	"context"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// BeneficiaryID identifies the DAO a depositor commits to.
type BeneficiaryID uint8

// Asset is the fungible-token surface the sale needs. Transfer and
// TransferFrom are executed with the sale as the acting account.
type Asset interface {
	Address() common.Address
	Decimals(ctx context.Context) (uint8, error)
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
	Transfer(ctx context.Context, to common.Address, amount *big.Int) error
	TransferFrom(ctx context.Context, from, to common.Address, amount *big.Int) error
}

// Guestlist decides whether a caller may deposit.
type Guestlist interface {
	Address() common.Address
	Authorized(ctx context.Context, guest common.Address, proof []common.Hash) (bool, error)
}

// Clock supplies the current time to the phase computations.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// FixedClock always reports the same unix second.
func FixedClock(unix int64) Clock {
	return ClockFunc(func() time.Time { return time.Unix(unix, 0) })
}

// Config is the operator-tunable sale configuration.
type Config struct {
	TokenIn          common.Address `json:"token_in"`
	TokenOut         common.Address `json:"token_out"`
	TokenOutDecimals uint8          `json:"token_out_decimals"`
	SaleStart        int64          `json:"sale_start"`
	SaleDuration     int64          `json:"sale_duration"`
	TokenOutPrice    *big.Int       `json:"token_out_price"`
	SaleRecipient    common.Address `json:"sale_recipient"`
	Guestlist        common.Address `json:"guestlist"`
	TokenInLimit     *big.Int       `json:"token_in_limit"`
}

// SaleEnd is the first second at which the window is closed. It saturates
// at the largest unix time instead of wrapping.
func (c Config) SaleEnd() int64 {
	if c.SaleStart > 0 && c.SaleDuration > math.MaxInt64-c.SaleStart {
		return math.MaxInt64
	}
	return c.SaleStart + c.SaleDuration
}

func (c Config) clone() Config {
	c.TokenOutPrice = cloneInt(c.TokenOutPrice)
	c.TokenInLimit = cloneInt(c.TokenInLimit)
	return c
}

// Params are the values supplied to Initialize. A nil TokenInLimit means
// unlimited and a nil Guestlist opens the sale to everybody.
type Params struct {
	SaleStart     int64
	SaleDuration  int64
	TokenOutPrice *big.Int
	SaleRecipient common.Address
	Guestlist     Guestlist
	TokenInLimit  *big.Int
}

// Totals are the aggregate counters of the sale.
type Totals struct {
	TokenIn         *big.Int `json:"total_token_in"`
	TokenOutBought  *big.Int `json:"total_token_out_bought"`
	TokenOutClaimed *big.Int `json:"total_token_out_claimed"`
}

func zeroTotals() Totals {
	return Totals{TokenIn: new(big.Int), TokenOutBought: new(big.Int), TokenOutClaimed: new(big.Int)}
}

func (t Totals) clone() Totals {
	return Totals{
		TokenIn:         cloneInt(t.TokenIn),
		TokenOutBought:  cloneInt(t.TokenOutBought),
		TokenOutClaimed: cloneInt(t.TokenOutClaimed),
	}
}

// Depositor is the per-address record. VotedFor stays nil until the first deposit.
type Depositor struct {
	Bought     *big.Int       `json:"bought"`
	VotedFor   *BeneficiaryID `json:"voted_for,omitempty"`
	HasClaimed bool           `json:"has_claimed"`
}

func (d *Depositor) clone() *Depositor {
	out := &Depositor{Bought: cloneInt(d.Bought), HasClaimed: d.HasClaimed}
	if d.VotedFor != nil {
		v := *d.VotedFor
		out.VotedFor = &v
	}
	return out
}

// Phase is the lifecycle stage of the sale.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseNotStarted
	PhaseActive
	PhaseEnded
	PhaseFinalized
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not started"
	case PhaseActive:
		return "active"
	case PhaseEnded:
		return "ended"
	case PhaseFinalized:
		return "finalized"
	default:
		return "uninitialized"
	}
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
