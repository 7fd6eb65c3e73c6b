package guestlist

import (
	"bytes"
	"errors"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrNotInTree is returned when a proof is requested for an absent address.
var ErrNotInTree = errors.New("address is not in the tree")

// Leaf is the merkle leaf of a guest: keccak256 of the 20 address bytes.
func Leaf(addr common.Address) common.Hash {
	return crypto.Keccak256Hash(addr.Bytes())
}

// Verify checks a proof built from sorted pairs, the layout produced by
// Tree and by OpenZeppelin's MerkleProof.
func Verify(proof []common.Hash, root, leaf common.Hash) bool {
	computed := leaf
	for _, p := range proof {
		computed = hashPair(computed, p)
	}
	return computed == root
}

func hashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return crypto.Keccak256Hash(a[:], b[:])
}

// Tree is a merkle tree over guest addresses.
type Tree struct {
	layers [][]common.Hash
	index  map[common.Hash]int
}

// NewTree builds a tree over addrs. Duplicates are dropped and leaves are
// sorted so that the root does not depend on input order.
func NewTree(addrs []common.Address) *Tree {
	seen := make(map[common.Hash]bool, len(addrs))
	leaves := make([]common.Hash, 0, len(addrs))
	for _, a := range addrs {
		l := Leaf(a)
		if seen[l] {
			continue
		}
		seen[l] = true
		leaves = append(leaves, l)
	}
	sort.Slice(leaves, func(i, j int) bool { return bytes.Compare(leaves[i][:], leaves[j][:]) < 0 })

	t := &Tree{index: make(map[common.Hash]int, len(leaves))}
	for i, l := range leaves {
		t.index[l] = i
	}
	t.layers = append(t.layers, leaves)
	for layer := leaves; len(layer) > 1; {
		next := make([]common.Hash, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			if i+1 == len(layer) {
				// An odd node is promoted unchanged.
				next = append(next, layer[i])
				continue
			}
			next = append(next, hashPair(layer[i], layer[i+1]))
		}
		t.layers = append(t.layers, next)
		layer = next
	}
	return t
}

// Root returns the tree root, or the zero hash for an empty tree.
func (t *Tree) Root() common.Hash {
	top := t.layers[len(t.layers)-1]
	if len(top) == 0 {
		return common.Hash{}
	}
	return top[0]
}

// Len is the number of distinct guests in the tree.
func (t *Tree) Len() int { return len(t.layers[0]) }

// Proof returns the sibling path for addr.
func (t *Tree) Proof(addr common.Address) ([]common.Hash, error) {
	i, ok := t.index[Leaf(addr)]
	if !ok {
		return nil, ErrNotInTree
	}
	var proof []common.Hash
	for _, layer := range t.layers[:len(t.layers)-1] {
		sibling := i ^ 1
		if sibling < len(layer) {
			proof = append(proof, layer[sibling])
		}
		i /= 2
	}
	return proof, nil
}
