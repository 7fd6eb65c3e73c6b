package guestlist

import (
	"context"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	listAddr = common.HexToAddress("0x6e57000000000000000000000000000000000001")
	owner    = common.HexToAddress("0x0900000000000000000000000000000000000001")
	alice    = common.HexToAddress("0xa11ce00000000000000000000000000000000001")
	bob      = common.HexToAddress("0xb0b0000000000000000000000000000000000001")
	carol    = common.HexToAddress("0xca20100000000000000000000000000000000001")
)

func addrs(n int) []common.Address {
	out := make([]common.Address, n)
	for i := range out {
		out[i] = common.HexToAddress(fmt.Sprintf("0x%040x", i+1))
	}
	return out
}

// ---------------------------------------------------------------------------
// merkle
// ---------------------------------------------------------------------------

func TestLeafIsKeccakOfAddress(t *testing.T) {
	assert.Equal(t, crypto.Keccak256Hash(alice.Bytes()), Leaf(alice))
}

func TestTreeProofsVerifyForEverySize(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 5, 7, 8, 13, 32} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			guests := addrs(n)
			tree := NewTree(guests)
			assert.Equal(t, n, tree.Len())
			for _, g := range guests {
				proof, err := tree.Proof(g)
				require.NoError(t, err)
				assert.True(t, Verify(proof, tree.Root(), Leaf(g)), "guest %s", g.Hex())
			}
		})
	}
}

func TestSingleLeafTreeRootIsLeaf(t *testing.T) {
	tree := NewTree([]common.Address{alice})
	assert.Equal(t, Leaf(alice), tree.Root())
	proof, err := tree.Proof(alice)
	require.NoError(t, err)
	assert.Empty(t, proof)
}

func TestTreeRootIndependentOfOrderAndDuplicates(t *testing.T) {
	a := NewTree([]common.Address{alice, bob, carol})
	b := NewTree([]common.Address{carol, alice, bob, alice})
	assert.Equal(t, a.Root(), b.Root())
	assert.Equal(t, 3, b.Len())
}

func TestTreeTwoLeavesMatchesSortedPairHash(t *testing.T) {
	tree := NewTree([]common.Address{alice, bob})
	la, lb := Leaf(alice), Leaf(bob)
	assert.Equal(t, hashPair(la, lb), tree.Root())
	assert.Equal(t, hashPair(lb, la), tree.Root(), "pairs are hashed in sorted order")
}

func TestProofRejections(t *testing.T) {
	tree := NewTree([]common.Address{alice, bob, carol})

	_, err := tree.Proof(owner)
	assert.ErrorIs(t, err, ErrNotInTree)

	proof, err := tree.Proof(alice)
	require.NoError(t, err)
	assert.False(t, Verify(proof, tree.Root(), Leaf(owner)))
	assert.False(t, Verify(proof, common.Hash{}, Leaf(alice)))
}

func TestEmptyTree(t *testing.T) {
	tree := NewTree(nil)
	assert.Equal(t, common.Hash{}, tree.Root())
	assert.Equal(t, 0, tree.Len())
}

// ---------------------------------------------------------------------------
// VIP
// ---------------------------------------------------------------------------

func TestVIPOpenWithoutRoot(t *testing.T) {
	v := New(listAddr, owner)
	ok, err := v.Authorized(context.Background(), carol, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVIPRootRequiresProofUnlessInvited(t *testing.T) {
	ctx := context.Background()
	tree := NewTree([]common.Address{alice, bob})
	v := New(listAddr, owner)
	require.NoError(t, v.SetGuestRoot(owner, tree.Root()))
	require.NoError(t, v.SetGuests(owner, []common.Address{carol}, []bool{true}))

	proof, err := tree.Proof(alice)
	require.NoError(t, err)
	ok, err := v.Authorized(ctx, alice, proof)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = v.Authorized(ctx, alice, nil)
	assert.False(t, ok, "missing proof")

	ok, _ = v.Authorized(ctx, carol, nil)
	assert.True(t, ok, "invited guest")

	ok, _ = v.Authorized(ctx, owner, proof)
	assert.False(t, ok, "someone else's proof")
}

func TestVIPUninvite(t *testing.T) {
	v := New(listAddr, owner)
	require.NoError(t, v.SetGuestRoot(owner, NewTree([]common.Address{alice}).Root()))
	require.NoError(t, v.SetGuests(owner, []common.Address{bob, carol}, []bool{true, true}))
	require.NoError(t, v.SetGuests(owner, []common.Address{bob}, []bool{false}))

	assert.False(t, v.IsGuest(bob))
	assert.True(t, v.IsGuest(carol))
	assert.Equal(t, []common.Address{carol}, v.Guests())
	ok, _ := v.Authorized(context.Background(), bob, nil)
	assert.False(t, ok)
}

func TestVIPOwnerOnly(t *testing.T) {
	v := New(listAddr, owner)
	assert.ErrorIs(t, v.SetGuests(alice, []common.Address{alice}, []bool{true}), ErrNotOwner)
	assert.ErrorIs(t, v.SetGuestRoot(alice, common.Hash{1}), ErrNotOwner)
	assert.ErrorIs(t, v.SetGuests(owner, []common.Address{alice}, nil), ErrLengthMismatch)
	assert.Empty(t, v.Guests())
	assert.Equal(t, common.Hash{}, v.Root())
}

func TestVIPStateRoundTrip(t *testing.T) {
	v := New(listAddr, owner)
	require.NoError(t, v.SetGuestRoot(owner, common.Hash{7}))
	require.NoError(t, v.SetGuests(owner, []common.Address{bob, alice}, []bool{true, true}))

	re, err := Load(v.State())
	require.NoError(t, err)
	assert.Equal(t, listAddr, re.Address())
	assert.Equal(t, owner, re.Owner())
	assert.Equal(t, common.Hash{7}, re.Root())
	assert.Equal(t, v.Guests(), re.Guests())

	_, err = Load(nil)
	assert.Error(t, err)
}
