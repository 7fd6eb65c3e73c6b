package token

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// LedgerState is the persisted form of a Ledger. Maps are keyed by hex address.
type LedgerState struct {
	Address     common.Address                 `json:"address"`
	Name        string                         `json:"name"`
	Symbol      string                         `json:"symbol"`
	Decimals    uint8                          `json:"decimals"`
	Owner       common.Address                 `json:"owner"`
	TotalSupply *big.Int                       `json:"total_supply"`
	Balances    map[string]*big.Int            `json:"balances"`
	Allowances  map[string]map[string]*big.Int `json:"allowances,omitempty"`
}

// State captures the ledger.
func (l *Ledger) State() *LedgerState {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := &LedgerState{
		Address:     l.address,
		Name:        l.name,
		Symbol:      l.symbol,
		Decimals:    l.decimals,
		Owner:       l.owner,
		TotalSupply: new(big.Int).Set(l.totalSupply),
		Balances:    make(map[string]*big.Int, len(l.balances)),
		Allowances:  make(map[string]map[string]*big.Int, len(l.allowances)),
	}
	for a, v := range l.balances {
		if v.Sign() == 0 {
			continue
		}
		st.Balances[a.Hex()] = new(big.Int).Set(v)
	}
	for owner, m := range l.allowances {
		inner := make(map[string]*big.Int, len(m))
		for spender, v := range m {
			if v.Sign() == 0 {
				continue
			}
			inner[spender.Hex()] = new(big.Int).Set(v)
		}
		if len(inner) > 0 {
			st.Allowances[owner.Hex()] = inner
		}
	}
	return st
}

// LoadLedger rebuilds a ledger from its persisted form.
func LoadLedger(st *LedgerState) (*Ledger, error) {
	if st == nil {
		return nil, fmt.Errorf("load ledger: nil state")
	}
	l := NewLedger(st.Address, st.Name, st.Symbol, st.Decimals, st.Owner)
	if st.TotalSupply != nil {
		l.totalSupply.Set(st.TotalSupply)
	}
	for hex, v := range st.Balances {
		addr, err := parseAddress(hex)
		if err != nil {
			return nil, err
		}
		l.balances[addr] = new(big.Int).Set(v)
	}
	for ownerHex, m := range st.Allowances {
		owner, err := parseAddress(ownerHex)
		if err != nil {
			return nil, err
		}
		inner := make(map[common.Address]*big.Int, len(m))
		for spenderHex, v := range m {
			spender, err := parseAddress(spenderHex)
			if err != nil {
				return nil, err
			}
			inner[spender] = new(big.Int).Set(v)
		}
		l.allowances[owner] = inner
	}
	return l, nil
}

func parseAddress(hex string) (common.Address, error) {
	if !common.IsHexAddress(hex) {
		return common.Address{}, fmt.Errorf("invalid address %q", hex)
	}
	return common.HexToAddress(hex), nil
}
