package sale

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// StateVersion is bumped whenever a field is appended to State.
const StateVersion = 1

// State is the persisted form of a sale. New fields are only ever appended so
// that older snapshots keep loading.
type State struct {
	Version     int                        `json:"version"`
	Address     common.Address             `json:"address"`
	Initialized bool                       `json:"initialized"`
	Owner       common.Address             `json:"owner"`
	Paused      bool                       `json:"paused"`
	Finalized   bool                       `json:"finalized"`
	Config      Config                     `json:"config"`
	Totals      Totals                     `json:"totals"`
	Depositors  map[string]*Depositor      `json:"depositors"`
	Commitments map[BeneficiaryID]*big.Int `json:"commitments"`
}

// Snapshot captures the full state of the sale.
func (s *Sale) Snapshot() *State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &State{
		Version:     StateVersion,
		Address:     s.address,
		Initialized: s.initialized,
		Owner:       s.owner,
		Paused:      s.paused,
		Finalized:   s.finalized,
		Config:      s.cfg.clone(),
		Totals:      s.totals.clone(),
		Depositors:  make(map[string]*Depositor, len(s.depositors)),
		Commitments: make(map[BeneficiaryID]*big.Int, len(s.commitments)),
	}
	for addr, d := range s.depositors {
		st.Depositors[addr.Hex()] = d.clone()
	}
	for id, v := range s.commitments {
		st.Commitments[id] = cloneInt(v)
	}
	return st
}

// Restore replaces the in-memory state with st. The guestlist must be the
// live object behind st.Config.Guestlist, or nil for an open sale.
func (s *Sale) Restore(st *State, g Guestlist) error {
	if st == nil {
		return fmt.Errorf("restore: nil state")
	}
	if st.Version > StateVersion {
		return fmt.Errorf("restore: state version %d is newer than %d", st.Version, StateVersion)
	}
	if st.Initialized {
		if st.Config.TokenIn != s.tokenIn.Address() || st.Config.TokenOut != s.tokenOut.Address() {
			return ErrTokenMismatch
		}
		if guestlistAddress(g) != st.Config.Guestlist {
			return fmt.Errorf("restore: guestlist %s does not match %s", guestlistAddress(g).Hex(), st.Config.Guestlist.Hex())
		}
	}

	depositors := make(map[common.Address]*Depositor, len(st.Depositors))
	for hex, d := range st.Depositors {
		if d == nil {
			continue
		}
		if !common.IsHexAddress(hex) {
			return fmt.Errorf("restore: invalid depositor address %q", hex)
		}
		depositors[common.HexToAddress(hex)] = d.clone()
	}
	commitments := make(map[BeneficiaryID]*big.Int, len(st.Commitments))
	for id, v := range st.Commitments {
		commitments[id] = cloneInt(v)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = st.Initialized
	s.owner = st.Owner
	s.paused = st.Paused
	s.finalized = st.Finalized
	s.cfg = st.Config.clone()
	s.totals = st.Totals.clone()
	s.depositors = depositors
	s.commitments = commitments
	s.guestlist = g
	return nil
}

// Check verifies the accounting invariants: commitments and per-depositor
// purchases both sum to the bought total, and claims never exceed it.
func (s *Sale) Check() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sumBought := new(big.Int)
	sumClaimed := new(big.Int)
	for _, d := range s.depositors {
		sumBought.Add(sumBought, d.Bought)
		if d.HasClaimed {
			sumClaimed.Add(sumClaimed, d.Bought)
		}
	}
	sumCommitted := new(big.Int)
	for _, v := range s.commitments {
		sumCommitted.Add(sumCommitted, v)
	}

	switch {
	case sumBought.Cmp(s.totals.TokenOutBought) != 0:
		return fmt.Errorf("depositors hold %s but %s was bought", sumBought, s.totals.TokenOutBought)
	case sumCommitted.Cmp(s.totals.TokenOutBought) != 0:
		return fmt.Errorf("commitments hold %s but %s was bought", sumCommitted, s.totals.TokenOutBought)
	case sumClaimed.Cmp(s.totals.TokenOutClaimed) != 0:
		return fmt.Errorf("claimed records hold %s but total claimed is %s", sumClaimed, s.totals.TokenOutClaimed)
	case s.totals.TokenOutClaimed.Cmp(s.totals.TokenOutBought) > 0:
		return fmt.Errorf("claimed %s exceeds bought %s", s.totals.TokenOutClaimed, s.totals.TokenOutBought)
	}
	return nil
}
