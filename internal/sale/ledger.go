package sale

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AmountOut converts amountIn at the current price, truncating toward zero.
func (s *Sale) AmountOut(amountIn *big.Int) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized || amountIn == nil || amountIn.Sign() <= 0 {
		return new(big.Int)
	}
	return convert(amountIn, s.cfg.TokenOutDecimals, s.cfg.TokenOutPrice)
}

func convert(amountIn *big.Int, decimals uint8, price *big.Int) *big.Int {
	out := new(big.Int).Mul(amountIn, pow10(decimals))
	return out.Quo(out, price)
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

// PriceFromUSD derives a token-out price expressed in token-in units:
// tokenOutUSD * 10^tokenInDecimals / tokenInUSD. Both USD values share the
// same fixed-point scale.
func PriceFromUSD(tokenOutUSD, tokenInUSD *big.Int, tokenInDecimals uint8) (*big.Int, error) {
	if tokenOutUSD == nil || tokenOutUSD.Sign() <= 0 || tokenInUSD == nil || tokenInUSD.Sign() <= 0 {
		return nil, ErrZeroPrice
	}
	p := new(big.Int).Mul(tokenOutUSD, pow10(tokenInDecimals))
	p.Quo(p, tokenInUSD)
	if p.Sign() == 0 {
		return nil, ErrZeroPrice
	}
	return p, nil
}

// entry is a staged deposit, applied only after the token-in transfer succeeded.
type entry struct {
	buyer       common.Address
	beneficiary BeneficiaryID
	amountIn    *big.Int
	amountOut   *big.Int
	firstVote   bool
}

func (s *Sale) prepare(buyer common.Address, beneficiary BeneficiaryID, amountIn *big.Int) (*entry, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	d := s.depositors[buyer]
	if d != nil && d.VotedFor != nil && *d.VotedFor != beneficiary {
		return nil, ErrBeneficiaryConflict
	}
	total := new(big.Int).Add(s.totals.TokenIn, amountIn)
	if total.Cmp(s.cfg.TokenInLimit) > 0 {
		return nil, ErrLimitExceeded
	}
	return &entry{
		buyer:       buyer,
		beneficiary: beneficiary,
		amountIn:    new(big.Int).Set(amountIn),
		amountOut:   convert(amountIn, s.cfg.TokenOutDecimals, s.cfg.TokenOutPrice),
		firstVote:   d == nil || d.VotedFor == nil,
	}, nil
}

func (s *Sale) apply(e *entry) {
	d, ok := s.depositors[e.buyer]
	if !ok {
		d = &Depositor{Bought: new(big.Int)}
		s.depositors[e.buyer] = d
	}
	if e.firstVote {
		v := e.beneficiary
		d.VotedFor = &v
	}
	d.Bought.Add(d.Bought, e.amountOut)

	c, ok := s.commitments[e.beneficiary]
	if !ok {
		c = new(big.Int)
		s.commitments[e.beneficiary] = c
	}
	c.Add(c, e.amountOut)

	s.totals.TokenIn.Add(s.totals.TokenIn, e.amountIn)
	s.totals.TokenOutBought.Add(s.totals.TokenOutBought, e.amountOut)
}

// Buy deposits amountIn of token-in from caller on behalf of beneficiary.
// The token-in moves straight to the sale recipient. It returns the
// token-out entitlement added by this deposit.
func (s *Sale) Buy(ctx context.Context, caller common.Address, amountIn *big.Int, beneficiary BeneficiaryID, proof []common.Hash) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInitialized(); err != nil {
		return nil, s.reject("buy", caller, err)
	}
	if err := s.authorize(ctx, caller, proof); err != nil {
		return nil, s.reject("buy", caller, err)
	}
	e, err := s.prepare(caller, beneficiary, amountIn)
	if err != nil {
		return nil, s.reject("buy", caller, err)
	}
	if err := s.tokenIn.TransferFrom(ctx, caller, s.cfg.SaleRecipient, e.amountIn); err != nil {
		return nil, s.reject("buy", caller, fmt.Errorf("token in transfer: %w", err))
	}

	s.apply(e)
	s.emit(Purchase{
		Buyer:       caller,
		Beneficiary: beneficiary,
		AmountIn:    new(big.Int).Set(e.amountIn),
		AmountOut:   new(big.Int).Set(e.amountOut),
	})
	return new(big.Int).Set(e.amountOut), nil
}
