package contract

import (
	"context"
	"fmt"
	"math/big"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// fallbackGas is used when the node cannot estimate a call.
const fallbackGas = 100000

// TxSigner signs transactions for one account.
type TxSigner interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) ([]byte, error)
}

// Sender sends write transactions to contracts.
type Sender struct {
	client  *chain.EVMClient
	abi     []ABIEntry
	signer  TxSigner
	chainID *big.Int
}

// NewSender creates a Sender.
func NewSender(client *chain.EVMClient, abi []ABIEntry, signer TxSigner, chainID *big.Int) *Sender {
	return &Sender{
		client:  client,
		abi:     abi,
		signer:  signer,
		chainID: chainID,
	}
}

// From returns the account transactions are sent from.
func (s *Sender) From() common.Address { return s.signer.Address() }

// Send calls a write function and broadcasts the transaction.
// Returns the transaction hash.
func (s *Sender) Send(ctx context.Context, contractAddr common.Address, funcName string, args ...string) (common.Hash, error) {
	fn := findFunction(s.abi, funcName)
	if fn == nil {
		return common.Hash{}, fmt.Errorf("function %q not found in ABI", funcName)
	}
	if !fn.IsWriteFunction() {
		return common.Hash{}, fmt.Errorf("function %q is not a write function", funcName)
	}

	calldata, err := encodeCall(fn, args)
	if err != nil {
		return common.Hash{}, fmt.Errorf("encoding call: %w", err)
	}

	from := s.signer.Address()

	gas, err := s.client.EstimateGas(ctx, from, contractAddr, calldata)
	if err != nil {
		gas = fallbackGas
	}

	gasPrice, err := s.client.GasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("getting gas price: %w", err)
	}

	nonce, err := s.client.PendingNonce(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("getting nonce: %w", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.chainID,
		Nonce:     nonce,
		GasTipCap: gasPrice,
		GasFeeCap: new(big.Int).Mul(gasPrice, big.NewInt(2)),
		Gas:       gas,
		To:        &contractAddr,
		Value:     big.NewInt(0),
		Data:      calldata,
	})

	raw, err := s.signer.SignTx(tx, s.chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("signing transaction: %w", err)
	}

	hash, err := s.client.SendRawTransaction(ctx, raw)
	if err != nil {
		return common.Hash{}, fmt.Errorf("broadcasting transaction: %w", err)
	}

	return hash, nil
}
