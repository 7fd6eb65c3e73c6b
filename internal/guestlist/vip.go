// Package guestlist decides who may deposit into a sale. A VIP list admits
// explicitly invited guests, and everybody else either freely (no root set)
// or with a merkle proof against the configured root.
package guestlist

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Errors.
var (
	ErrNotOwner       = errors.New("caller is not the guestlist owner")
	ErrLengthMismatch = errors.New("guests and invited flags differ in length")
)

// VIP is an in-memory guestlist.
type VIP struct {
	mu      sync.RWMutex
	address common.Address
	owner   common.Address
	root    common.Hash
	guests  map[common.Address]bool
}

// New creates an empty list owned by owner. With no root and no guests it
// admits everybody.
func New(address, owner common.Address) *VIP {
	return &VIP{
		address: address,
		owner:   owner,
		guests:  make(map[common.Address]bool),
	}
}

func (v *VIP) Address() common.Address { return v.address }
func (v *VIP) Owner() common.Address   { return v.owner }

// Root is the merkle root unlisted callers must prove membership against.
func (v *VIP) Root() common.Hash {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.root
}

// IsGuest reports whether addr was explicitly invited.
func (v *VIP) IsGuest(addr common.Address) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.guests[addr]
}

// Guests lists the invited addresses in hex order.
func (v *VIP) Guests() []common.Address {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]common.Address, 0, len(v.guests))
	for a := range v.guests {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hex() < out[j].Hex() })
	return out
}

// SetGuests invites (true) or uninvites (false) each address.
func (v *VIP) SetGuests(caller common.Address, guests []common.Address, invited []bool) error {
	if caller != v.owner {
		return ErrNotOwner
	}
	if len(guests) != len(invited) {
		return ErrLengthMismatch
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, g := range guests {
		if invited[i] {
			v.guests[g] = true
		} else {
			delete(v.guests, g)
		}
	}
	return nil
}

// SetGuestRoot replaces the merkle root. The zero hash removes the proof
// requirement and admits everybody.
func (v *VIP) SetGuestRoot(caller common.Address, root common.Hash) error {
	if caller != v.owner {
		return ErrNotOwner
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.root = root
	return nil
}

// Authorized implements the sale's guestlist check.
func (v *VIP) Authorized(_ context.Context, guest common.Address, proof []common.Hash) (bool, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.guests[guest] {
		return true, nil
	}
	if v.root == (common.Hash{}) {
		return true, nil
	}
	return Verify(proof, v.root, Leaf(guest)), nil
}

// State is the persisted form of a VIP list.
type State struct {
	Address common.Address   `json:"address"`
	Owner   common.Address   `json:"owner"`
	Root    common.Hash      `json:"root"`
	Guests  []common.Address `json:"guests"`
}

// State captures the list.
func (v *VIP) State() *State {
	return &State{
		Address: v.address,
		Owner:   v.owner,
		Root:    v.Root(),
		Guests:  v.Guests(),
	}
}

// Load rebuilds a list from its persisted form.
func Load(st *State) (*VIP, error) {
	if st == nil {
		return nil, fmt.Errorf("load guestlist: nil state")
	}
	v := New(st.Address, st.Owner)
	v.root = st.Root
	for _, g := range st.Guests {
		v.guests[g] = true
	}
	return v, nil
}
