package sale

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SetSaleStart moves the opening of the window.
func (s *Sale) SetSaleStart(caller common.Address, start int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOwner(caller); err != nil {
		return s.reject("set sale start", caller, err)
	}
	s.cfg.SaleStart = start
	s.emit(SaleStartUpdated{SaleStart: start})
	return nil
}

func (s *Sale) SetSaleDuration(caller common.Address, duration int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOwner(caller); err != nil {
		return s.reject("set sale duration", caller, err)
	}
	if duration <= 0 {
		return s.reject("set sale duration", caller, ErrZeroDuration)
	}
	s.cfg.SaleDuration = duration
	s.emit(SaleDurationUpdated{SaleDuration: duration})
	return nil
}

// SetTokenOutPrice changes the price for future deposits only.
func (s *Sale) SetTokenOutPrice(caller common.Address, price *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOwner(caller); err != nil {
		return s.reject("set token out price", caller, err)
	}
	if err := validatePrice(price); err != nil {
		return s.reject("set token out price", caller, err)
	}
	s.cfg.TokenOutPrice = new(big.Int).Set(price)
	s.emit(TokenOutPriceUpdated{TokenOutPrice: new(big.Int).Set(price)})
	return nil
}

func (s *Sale) SetSaleRecipient(caller common.Address, recipient common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOwner(caller); err != nil {
		return s.reject("set sale recipient", caller, err)
	}
	if recipient == (common.Address{}) {
		return s.reject("set sale recipient", caller, ErrZeroRecipient)
	}
	s.cfg.SaleRecipient = recipient
	s.emit(SaleRecipientUpdated{SaleRecipient: recipient})
	return nil
}

// SetTokenInLimit changes the cap. A limit at or below the current total
// ends the sale immediately.
func (s *Sale) SetTokenInLimit(caller common.Address, limit *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOwner(caller); err != nil {
		return s.reject("set token in limit", caller, err)
	}
	if limit == nil || limit.Sign() < 0 {
		return s.reject("set token in limit", caller, ErrNegativeLimit)
	}
	s.cfg.TokenInLimit = new(big.Int).Set(limit)
	s.emit(TokenInLimitUpdated{TokenInLimit: new(big.Int).Set(limit)})
	return nil
}

// Pause blocks deposits and claims until Unpause.
func (s *Sale) Pause(caller common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOwner(caller); err != nil {
		return s.reject("pause", caller, err)
	}
	if s.paused {
		return s.reject("pause", caller, ErrPaused)
	}
	s.paused = true
	s.emit(Paused{Account: caller})
	return nil
}

func (s *Sale) Unpause(caller common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOwner(caller); err != nil {
		return s.reject("unpause", caller, err)
	}
	if !s.paused {
		return s.reject("unpause", caller, ErrNotPaused)
	}
	s.paused = false
	s.emit(Unpaused{Account: caller})
	return nil
}

// TransferOwnership hands every operator permission to newOwner.
func (s *Sale) TransferOwnership(caller, newOwner common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOwner(caller); err != nil {
		return s.reject("transfer ownership", caller, err)
	}
	if newOwner == (common.Address{}) {
		return s.reject("transfer ownership", caller, ErrZeroOwner)
	}
	prev := s.owner
	s.owner = newOwner
	s.emit(OwnershipTransferred{PreviousOwner: prev, NewOwner: newOwner})
	return nil
}
