package sale

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Finalize locks the sale once it has ended and the sale holds enough
// token-out to honour every entitlement.
func (s *Sale) Finalize(ctx context.Context, caller common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwner(caller); err != nil {
		return s.reject("finalize", caller, err)
	}
	if s.finalized {
		return s.reject("finalize", caller, ErrAlreadyFinalized)
	}
	if !s.saleEnded(s.now()) {
		return s.reject("finalize", caller, ErrNotFinished)
	}
	bal, err := s.tokenOut.BalanceOf(ctx, s.address)
	if err != nil {
		return fmt.Errorf("token out balance: %w", err)
	}
	if bal.Cmp(s.totals.TokenOutBought) < 0 {
		return s.reject("finalize", caller, ErrNotEnoughBalance)
	}

	s.finalized = true
	s.emit(Finalized{TotalTokenOutBought: new(big.Int).Set(s.totals.TokenOutBought)})
	return nil
}

// Claim pays out the caller's whole entitlement. Each depositor claims once.
func (s *Sale) Claim(ctx context.Context, caller common.Address) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInitialized(); err != nil {
		return nil, s.reject("claim", caller, err)
	}
	if s.paused {
		return nil, s.reject("claim", caller, ErrPaused)
	}
	if !s.finalized {
		return nil, s.reject("claim", caller, ErrNotFinalized)
	}
	d := s.depositors[caller]
	if d != nil && d.HasClaimed {
		return nil, s.reject("claim", caller, ErrAlreadyClaimed)
	}
	if d == nil || d.Bought.Sign() == 0 {
		return nil, s.reject("claim", caller, ErrNothingToClaim)
	}

	amount := new(big.Int).Set(d.Bought)
	if err := s.tokenOut.Transfer(ctx, caller, amount); err != nil {
		return nil, s.reject("claim", caller, fmt.Errorf("token out transfer: %w", err))
	}

	d.HasClaimed = true
	s.totals.TokenOutClaimed.Add(s.totals.TokenOutClaimed, amount)
	s.emit(Claimed{Claimer: caller, Amount: new(big.Int).Set(amount)})
	return amount, nil
}

// Sweep sends surplus tokens held by the sale to the owner. For token-out the
// outstanding entitlements (bought minus claimed) stay behind; any other
// asset is swept in full. A zero sweep still emits Swept but moves nothing.
func (s *Sale) Sweep(ctx context.Context, caller common.Address, asset Asset) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwner(caller); err != nil {
		return nil, s.reject("sweep", caller, err)
	}
	if asset == nil {
		return nil, s.reject("sweep", caller, ErrMissingAsset)
	}
	token := asset.Address()
	if token == s.tokenOut.Address() {
		asset = s.tokenOut
	}
	bal, err := asset.BalanceOf(ctx, s.address)
	if err != nil {
		return nil, fmt.Errorf("sweep balance: %w", err)
	}

	amount := new(big.Int).Set(bal)
	if token == s.tokenOut.Address() {
		owed := new(big.Int).Sub(s.totals.TokenOutBought, s.totals.TokenOutClaimed)
		amount.Sub(amount, owed)
		if amount.Sign() < 0 {
			amount.SetInt64(0)
		}
	}

	if amount.Sign() > 0 {
		if err := asset.Transfer(ctx, s.owner, amount); err != nil {
			return nil, s.reject("sweep", caller, fmt.Errorf("sweep transfer: %w", err))
		}
	}
	s.emit(Swept{Token: token, Amount: new(big.Int).Set(amount)})
	return amount, nil
}
