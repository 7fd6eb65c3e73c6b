// Package token provides the fungible assets a sale trades: an in-memory
// ERC-20 ledger for local sales and an adapter for ERC-20 contracts on an
// EVM chain.
package token

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Errors.
var (
	ErrInsufficientBalance   = errors.New("transfer amount exceeds balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrZeroAddress           = errors.New("zero address")
	ErrNegativeAmount        = errors.New("negative amount")
)

// Ledger is an in-memory ERC-20 token.
type Ledger struct {
	mu sync.Mutex

	address  common.Address
	name     string
	symbol   string
	decimals uint8
	owner    common.Address

	totalSupply *big.Int
	balances    map[common.Address]*big.Int
	allowances  map[common.Address]map[common.Address]*big.Int
}

// NewLedger creates an empty token. Only owner may mint.
func NewLedger(address common.Address, name, symbol string, decimals uint8, owner common.Address) *Ledger {
	return &Ledger{
		address:     address,
		name:        name,
		symbol:      symbol,
		decimals:    decimals,
		owner:       owner,
		totalSupply: new(big.Int),
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[common.Address]map[common.Address]*big.Int),
	}
}

func (l *Ledger) Address() common.Address { return l.address }
func (l *Ledger) Name() string            { return l.name }
func (l *Ledger) Symbol() string          { return l.symbol }
func (l *Ledger) Decimals() uint8         { return l.decimals }
func (l *Ledger) Owner() common.Address   { return l.owner }

func (l *Ledger) TotalSupply() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.totalSupply)
}

func (l *Ledger) BalanceOf(account common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(account)
}

func (l *Ledger) Allowance(owner, spender common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m, ok := l.allowances[owner]; ok {
		if v, ok := m[spender]; ok {
			return new(big.Int).Set(v)
		}
	}
	return new(big.Int)
}

// Mint creates amount new tokens for to.
func (l *Ledger) Mint(caller, to common.Address, amount *big.Int) error {
	if caller != l.owner {
		return fmt.Errorf("mint %s: caller %s is not the token owner", l.symbol, caller.Hex())
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return fmt.Errorf("mint: %w", ErrZeroAddress)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.totalSupply.Add(l.totalSupply, amount)
	l.credit(to, amount)
	return nil
}

// Approve sets the amount spender may move out of owner's balance.
func (l *Ledger) Approve(owner, spender common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if spender == (common.Address{}) {
		return fmt.Errorf("approve: %w", ErrZeroAddress)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.allowances[owner]
	if !ok {
		m = make(map[common.Address]*big.Int)
		l.allowances[owner] = m
	}
	m[spender] = new(big.Int).Set(amount)
	return nil
}

// Transfer moves amount from from to to.
func (l *Ledger) Transfer(from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return fmt.Errorf("transfer: %w", ErrZeroAddress)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(from, to, amount)
}

// TransferFrom moves amount from from to to using spender's allowance.
func (l *Ledger) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return fmt.Errorf("transfer from: %w", ErrZeroAddress)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	allowed := new(big.Int)
	if m, ok := l.allowances[from]; ok && m[spender] != nil {
		allowed = m[spender]
	}
	if allowed.Cmp(amount) < 0 {
		return fmt.Errorf("%s: %w (have %s, need %s)", l.symbol, ErrInsufficientAllowance, allowed, amount)
	}
	if err := l.move(from, to, amount); err != nil {
		return err
	}
	if m, ok := l.allowances[from]; ok {
		m[spender] = new(big.Int).Sub(allowed, amount)
	}
	return nil
}

// As returns a view of the ledger acting on behalf of holder. The view
// satisfies the asset interface the sale consumes.
func (l *Ledger) As(holder common.Address) *Account {
	return &Account{ledger: l, holder: holder}
}

func (l *Ledger) balance(account common.Address) *big.Int {
	if v, ok := l.balances[account]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (l *Ledger) credit(account common.Address, amount *big.Int) {
	v, ok := l.balances[account]
	if !ok {
		v = new(big.Int)
		l.balances[account] = v
	}
	v.Add(v, amount)
}

func (l *Ledger) move(from, to common.Address, amount *big.Int) error {
	bal := l.balance(from)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%s: %w (have %s, need %s)", l.symbol, ErrInsufficientBalance, bal, amount)
	}
	l.balances[from] = bal.Sub(bal, amount)
	l.credit(to, amount)
	return nil
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	return nil
}

// Account is a Ledger bound to the account that signs its transfers.
type Account struct {
	ledger *Ledger
	holder common.Address
}

func (a *Account) Address() common.Address { return a.ledger.address }

// Holder is the account that Transfer and TransferFrom act as.
func (a *Account) Holder() common.Address { return a.holder }

func (a *Account) Decimals(context.Context) (uint8, error) { return a.ledger.decimals, nil }

func (a *Account) BalanceOf(_ context.Context, account common.Address) (*big.Int, error) {
	return a.ledger.BalanceOf(account), nil
}

func (a *Account) Transfer(_ context.Context, to common.Address, amount *big.Int) error {
	return a.ledger.Transfer(a.holder, to, amount)
}

func (a *Account) TransferFrom(_ context.Context, from, to common.Address, amount *big.Int) error {
	return a.ledger.TransferFrom(a.holder, from, to, amount)
}
