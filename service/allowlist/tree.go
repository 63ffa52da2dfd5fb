package allowlist

import (
	"bytes"
	"sort"

	"github.com/SplitFi/go-drops/service/persist"
	"github.com/ethereum/go-ethereum/common"
)

// Tree is an in-memory Merkle tree over a committed set of addresses, used
// to produce roots and inclusion proofs for allow-lists. Level 0 holds the
// leaf hashes; the last level holds the root. Odd nodes are promoted to the
// next level unchanged.
type Tree struct {
	levels  [][]common.Hash
	leafIdx map[common.Hash]int
}

// NewTree builds a tree over the given addresses. Duplicates are dropped
// and leaves are sorted so the root is independent of input order. An empty
// set yields a zero root.
func NewTree(addrs []persist.EthereumAddress) *Tree {
	seen := map[common.Hash]struct{}{}
	leaves := make([]common.Hash, 0, len(addrs))
	for _, addr := range addrs {
		leaf := LeafHash(addr)
		if _, ok := seen[leaf]; ok {
			continue
		}
		seen[leaf] = struct{}{}
		leaves = append(leaves, leaf)
	}
	sort.Slice(leaves, func(i, j int) bool {
		return bytes.Compare(leaves[i][:], leaves[j][:]) < 0
	})

	t := &Tree{leafIdx: make(map[common.Hash]int, len(leaves))}
	for i, leaf := range leaves {
		t.leafIdx[leaf] = i
	}
	if len(leaves) == 0 {
		return t
	}

	level := leaves
	t.levels = append(t.levels, level)
	for len(level) > 1 {
		next := make([]common.Hash, 0, (len(level)+1)/2)
		for i := 0; i+1 < len(level); i += 2 {
			next = append(next, hashPair(level[i], level[i+1]))
		}
		if len(level)%2 != 0 {
			next = append(next, level[len(level)-1])
		}
		level = next
		t.levels = append(t.levels, level)
	}
	return t
}

// Root returns the committed root of the set, or the zero hash for an empty set
func (t *Tree) Root() common.Hash {
	if len(t.levels) == 0 {
		return common.Hash{}
	}
	return t.levels[len(t.levels)-1][0]
}

// Proof returns the inclusion proof for addr, bottom-up. The second return
// is false when addr is not in the committed set.
func (t *Tree) Proof(addr persist.EthereumAddress) ([]common.Hash, bool) {
	idx, ok := t.leafIdx[LeafHash(addr)]
	if !ok {
		return nil, false
	}

	proof := []common.Hash{}
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := idx ^ 1
		if sibling < len(level) {
			proof = append(proof, level[sibling])
		}
		idx /= 2
	}
	return proof, true
}
