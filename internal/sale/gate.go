package sale

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// authorize admits a depositor. Checks run in a fixed order: pause,
// finalization, window start, window end, guestlist. The cap is enforced by the ledger so that a
// deposit overflowing the limit reports CapacityExceeded.
func (s *Sale) authorize(ctx context.Context, caller common.Address, proof []common.Hash) error {
	if s.paused {
		return ErrPaused
	}
	if s.finalized {
		return ErrAlreadyFinalized
	}
	now := s.now()
	if !s.started(now) {
		return ErrNotStarted
	}
	if s.windowClosed(now) {
		return ErrAlreadyEnded
	}
	if s.guestlist == nil {
		return nil
	}
	ok, err := s.guestlist.Authorized(ctx, caller, proof)
	if err != nil {
		return fmt.Errorf("guestlist lookup: %w", err)
	}
	if !ok {
		return ErrNotAuthorized
	}
	return nil
}

// CanBuy runs the access gate without depositing. It is a dry run for clients.
func (s *Sale) CanBuy(ctx context.Context, caller common.Address, proof []common.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInitialized(); err != nil {
		return err
	}
	return s.authorize(ctx, caller, proof)
}

// SetGuestlist replaces the guestlist. A nil guestlist opens the sale.
func (s *Sale) SetGuestlist(caller common.Address, g Guestlist) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOwner(caller); err != nil {
		return s.reject("set guestlist", caller, err)
	}
	s.guestlist = g
	s.cfg.Guestlist = guestlistAddress(g)
	s.emit(GuestlistUpdated{Guestlist: s.cfg.Guestlist})
	return nil
}
