package allowlist

import (
	"bytes"

	"github.com/SplitFi/go-drops/service/persist"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// LeafHash computes the domain-separated leaf hash for an address:
// keccak256(keccak256(address left-padded to 32 bytes)). The double hash
// guards the inclusion proof against second-preimage and extension attacks.
func LeafHash(addr persist.EthereumAddress) common.Hash {
	inner := crypto.Keccak256(common.LeftPadBytes(addr.Address().Bytes(), 32))
	return crypto.Keccak256Hash(inner)
}

// Verify recomputes the Merkle root from the address leaf and the sibling
// hashes in proof, combining each pair in sorted order, and compares it to
// root. A zero root means "no allow-list configured" and must be
// special-cased by the caller, never passed here.
func Verify(proof []common.Hash, root common.Hash, addr persist.EthereumAddress) bool {
	computed := LeafHash(addr)
	for _, sibling := range proof {
		computed = hashPair(computed, sibling)
	}
	return computed == root
}

func hashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return crypto.Keccak256Hash(a[:], b[:])
	}
	return crypto.Keccak256Hash(b[:], a[:])
}
