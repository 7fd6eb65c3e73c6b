package token

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/Mohsinsiddi/w3sale/internal/contract"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultConfirmTimeout bounds how long a transfer waits to be mined.
const DefaultConfirmTimeout = 2 * time.Minute

// Link records an ERC-20 contract on an EVM network that a sale uses.
// Custodian is the wallet whose key signs the sale's transfers.
type Link struct {
	Address   common.Address `json:"address"`
	Network   string         `json:"network"`
	RPC       string         `json:"rpc"`
	ChainID   int64          `json:"chain_id"`
	Symbol    string         `json:"symbol"`
	Decimals  uint8          `json:"decimals"`
	Custodian string         `json:"custodian"`
}

// ERC20 is an ERC-20 contract reached over JSON-RPC. Writes are signed by
// the custodian account, which stands in for the sale on chain.
type ERC20 struct {
	address        common.Address
	client         *chain.EVMClient
	caller         *contract.Caller
	sender         *contract.Sender
	confirmTimeout time.Duration
}

// NewERC20 binds an ERC-20 at address. signer may be nil for read-only use.
func NewERC20(client *chain.EVMClient, address common.Address, signer contract.TxSigner, chainID *big.Int) *ERC20 {
	abi := contract.ERC20ABI()
	e := &ERC20{
		address:        address,
		client:         client,
		caller:         contract.NewCaller(client, abi),
		confirmTimeout: DefaultConfirmTimeout,
	}
	if signer != nil {
		e.sender = contract.NewSender(client, abi, signer, chainID)
	}
	return e
}

// WithConfirmTimeout overrides how long writes wait for a receipt.
func (e *ERC20) WithConfirmTimeout(d time.Duration) *ERC20 {
	e.confirmTimeout = d
	return e
}

func (e *ERC20) Address() common.Address { return e.address }

// Holder returns the account writes are signed by, or the zero address for
// a read-only binding.
func (e *ERC20) Holder() common.Address {
	if e.sender == nil {
		return common.Address{}
	}
	return e.sender.From()
}

func (e *ERC20) Decimals(ctx context.Context) (uint8, error) {
	out, err := e.caller.Call(ctx, e.address, "decimals")
	if err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("decimals: empty result")
	}
	d, err := strconv.ParseUint(out[0], 10, 8)
	if err != nil {
		return 0, fmt.Errorf("decimals: %w", err)
	}
	return uint8(d), nil
}

// Symbol reads the token symbol.
func (e *ERC20) Symbol(ctx context.Context) (string, error) {
	out, err := e.caller.Call(ctx, e.address, "symbol")
	if err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "", nil
	}
	return out[0], nil
}

func (e *ERC20) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	return e.caller.CallBig(ctx, e.address, "balanceOf", account.Hex())
}

func (e *ERC20) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return e.caller.CallBig(ctx, e.address, "allowance", owner.Hex(), spender.Hex())
}

func (e *ERC20) Transfer(ctx context.Context, to common.Address, amount *big.Int) error {
	return e.send(ctx, "transfer", to.Hex(), amount.String())
}

func (e *ERC20) TransferFrom(ctx context.Context, from, to common.Address, amount *big.Int) error {
	return e.send(ctx, "transferFrom", from.Hex(), to.Hex(), amount.String())
}

func (e *ERC20) send(ctx context.Context, fn string, args ...string) error {
	if e.sender == nil {
		return fmt.Errorf("%s on %s: no signing account configured", fn, e.address.Hex())
	}
	hash, err := e.sender.Send(ctx, e.address, fn, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", fn, err)
	}
	ctx, cancel := context.WithTimeout(ctx, e.confirmTimeout)
	defer cancel()
	if _, err := e.client.WaitForReceipt(ctx, hash); err != nil {
		return fmt.Errorf("%s: %w", fn, err)
	}
	return nil
}
