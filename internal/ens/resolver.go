// Package ens resolves ENS names so accounts can be given as "alice.eth".
package ens

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// RegistryAddress is the ENS registry, the same on mainnet and Sepolia.
var RegistryAddress = common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")

// Selectors.
var (
	selResolver = common.FromHex("0x0178b8bf") // resolver(bytes32)
	selAddr     = common.FromHex("0x3b3b57de") // addr(bytes32)
)

// ErrNotFound is returned when a name has no resolver or no address record.
var ErrNotFound = errors.New("ens name not found")

// Caller is the read surface of an EVM client.
type Caller interface {
	CallContract(ctx context.Context, to common.Address, calldata []byte) ([]byte, error)
}

var _ Caller = (*chain.EVMClient)(nil)

// IsName reports whether s looks like an ENS name rather than an address
// or wallet name.
func IsName(s string) bool {
	return strings.Contains(s, ".") && !strings.HasPrefix(s, "0x") && !strings.HasSuffix(s, ".")
}

// Resolve looks up the address record of name.
func Resolve(ctx context.Context, c Caller, name string) (common.Address, error) {
	node := Namehash(name)

	out, err := c.CallContract(ctx, RegistryAddress, append(append([]byte{}, selResolver...), node[:]...))
	if err != nil {
		return common.Address{}, fmt.Errorf("querying ENS registry: %w", err)
	}
	resolver, ok := wordAddress(out)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: no resolver for %q", ErrNotFound, name)
	}

	out, err = c.CallContract(ctx, resolver, append(append([]byte{}, selAddr...), node[:]...))
	if err != nil {
		return common.Address{}, fmt.Errorf("querying ENS resolver: %w", err)
	}
	addr, ok := wordAddress(out)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: no address record for %q", ErrNotFound, name)
	}
	return addr, nil
}

// Namehash implements EIP-137. Labels are lower-cased; full UTS-46
// normalization is not applied.
func Namehash(name string) common.Hash {
	var node common.Hash
	if name == "" {
		return node
	}
	labels := strings.Split(strings.ToLower(name), ".")
	for i := len(labels) - 1; i >= 0; i-- {
		label := keccak256([]byte(labels[i]))
		node = common.BytesToHash(keccak256(node[:], label))
	}
	return node
}

func keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// wordAddress reads an address from the first ABI word; the zero address
// counts as absent.
func wordAddress(out []byte) (common.Address, bool) {
	if len(out) < 32 {
		return common.Address{}, false
	}
	addr := common.BytesToAddress(out[12:32])
	return addr, addr != (common.Address{})
}
