package ens

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCaller answers calls by target address.
type fakeCaller struct {
	answers map[common.Address][]byte
	err     error
	calls   [][]byte
}

func (f *fakeCaller) CallContract(_ context.Context, to common.Address, calldata []byte) ([]byte, error) {
	f.calls = append(f.calls, calldata)
	if f.err != nil {
		return nil, f.err
	}
	return f.answers[to], nil
}

func addrWord(a common.Address) []byte { return common.LeftPadBytes(a.Bytes(), 32) }

var (
	resolverAddr = common.HexToAddress("0x4976fb03C32e5B8cfe2b6cCB31c09Ba78EBaBa41")
	aliceAddr    = common.HexToAddress("0xa11ce00000000000000000000000000000000001")
)

func TestNamehash(t *testing.T) {
	assert.Equal(t, common.Hash{}, Namehash(""))
	assert.Equal(t,
		common.HexToHash("0x93cdeb708b7545dc668eb9280176169d1c33cfd8ed6f04690a0bcc88a93fc4ae"),
		Namehash("eth"))
	assert.Equal(t,
		common.HexToHash("0xde9b09fd7c5f901e23a3f19fecc54828e9c848539801e86591bd9801b019f84f"),
		Namehash("foo.eth"))
	assert.Equal(t, Namehash("foo.eth"), Namehash("FOO.eth"))
}

func TestIsName(t *testing.T) {
	assert.True(t, IsName("alice.eth"))
	assert.True(t, IsName("pay.alice.eth"))
	assert.False(t, IsName("alice"))
	assert.False(t, IsName("alice."))
	assert.False(t, IsName(aliceAddr.Hex()))
}

func TestResolve(t *testing.T) {
	c := &fakeCaller{answers: map[common.Address][]byte{
		RegistryAddress: addrWord(resolverAddr),
		resolverAddr:    addrWord(aliceAddr),
	}}
	got, err := Resolve(context.Background(), c, "alice.eth")
	require.NoError(t, err)
	assert.Equal(t, aliceAddr, got)

	node := Namehash("alice.eth")
	require.Len(t, c.calls, 2)
	assert.Equal(t, append(common.FromHex("0x0178b8bf"), node[:]...), c.calls[0])
	assert.Equal(t, append(common.FromHex("0x3b3b57de"), node[:]...), c.calls[1])
}

func TestResolveNotFound(t *testing.T) {
	c := &fakeCaller{answers: map[common.Address][]byte{RegistryAddress: make([]byte, 32)}}
	_, err := Resolve(context.Background(), c, "nobody.eth")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorContains(t, err, "no resolver")

	c.answers[RegistryAddress] = addrWord(resolverAddr)
	_, err = Resolve(context.Background(), c, "nobody.eth")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorContains(t, err, "no address record")
}

func TestResolveCallError(t *testing.T) {
	_, err := Resolve(context.Background(), &fakeCaller{err: errors.New("timeout")}, "alice.eth")
	assert.ErrorContains(t, err, "querying ENS registry: timeout")
}
