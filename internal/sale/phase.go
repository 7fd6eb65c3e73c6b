package sale

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// CurrentlyActive reports whether the window is open and capacity remains.
func (s *Sale) CurrentlyActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentlyActive(s.now())
}

// SaleEnded reports whether the window has closed or the limit is reached.
func (s *Sale) SaleEnded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saleEnded(s.now())
}

// Phase combines the clock, the limit and the finalized flag.
func (s *Sale) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase(s.now())
}

// TokenInLimitLeft is the token-in still accepted before the limit is hit.
func (s *Sale) TokenInLimitLeft() *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return new(big.Int)
	}
	left := new(big.Int).Sub(s.cfg.TokenInLimit, s.totals.TokenIn)
	if left.Sign() < 0 {
		return new(big.Int)
	}
	return left
}

// SecondsUntilStart returns 0 once the sale has started.
func (s *Sale) SecondsUntilStart() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.cfg.SaleStart - s.now(); d > 0 {
		return d
	}
	return 0
}

// SecondsUntilEnd returns 0 once the window has closed.
func (s *Sale) SecondsUntilEnd() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.cfg.SaleEnd() - s.now(); d > 0 {
		return d
	}
	return 0
}

func (s *Sale) started(now int64) bool { return now >= s.cfg.SaleStart }

func (s *Sale) windowClosed(now int64) bool { return now >= s.cfg.SaleEnd() }

func (s *Sale) limitReached() bool {
	return s.totals.TokenIn.Cmp(s.cfg.TokenInLimit) >= 0
}

func (s *Sale) currentlyActive(now int64) bool {
	if !s.initialized {
		return false
	}
	return s.started(now) && !s.windowClosed(now) && !s.limitReached()
}

func (s *Sale) saleEnded(now int64) bool {
	if !s.initialized {
		return false
	}
	return s.windowClosed(now) || s.limitReached()
}

func (s *Sale) phase(now int64) Phase {
	switch {
	case !s.initialized:
		return PhaseUninitialized
	case s.finalized:
		return PhaseFinalized
	case s.saleEnded(now):
		return PhaseEnded
	case !s.started(now):
		return PhaseNotStarted
	default:
		return PhaseActive
	}
}

// MarshalText renders the phase by name.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Status is a point-in-time view of the sale, read under one lock.
type Status struct {
	Address           common.Address             `json:"address"`
	Phase             Phase                      `json:"phase"`
	Owner             common.Address             `json:"owner"`
	Paused            bool                       `json:"paused"`
	Finalized         bool                       `json:"finalized"`
	Config            Config                     `json:"config"`
	Totals            Totals                     `json:"totals"`
	TokenInLimitLeft  *big.Int                   `json:"token_in_limit_left"`
	SecondsUntilStart int64                      `json:"seconds_until_start"`
	SecondsUntilEnd   int64                      `json:"seconds_until_end"`
	Depositors        int                        `json:"depositors"`
	Commitments       map[BeneficiaryID]*big.Int `json:"commitments"`
	At                int64                      `json:"at"`
}

// Status captures the whole read surface at the current clock reading.
func (s *Sale) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	st := Status{
		Address:          s.address,
		Phase:            s.phase(now),
		Owner:            s.owner,
		Paused:           s.paused,
		Finalized:        s.finalized,
		Config:           s.cfg.clone(),
		Totals:           s.totals.clone(),
		TokenInLimitLeft: new(big.Int),
		Depositors:       len(s.depositors),
		Commitments:      make(map[BeneficiaryID]*big.Int, len(s.commitments)),
		At:               now,
	}
	if s.initialized {
		if left := new(big.Int).Sub(s.cfg.TokenInLimit, s.totals.TokenIn); left.Sign() > 0 {
			st.TokenInLimitLeft = left
		}
		if d := s.cfg.SaleStart - now; d > 0 {
			st.SecondsUntilStart = d
		}
		if d := s.cfg.SaleEnd() - now; d > 0 {
			st.SecondsUntilEnd = d
		}
	}
	for id, v := range s.commitments {
		st.Commitments[id] = cloneInt(v)
	}
	return st
}
