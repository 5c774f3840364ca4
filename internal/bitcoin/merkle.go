package bitcoin

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// hashNodes double-hashes the 64-byte concatenation of two tree nodes.
func hashNodes(left, right *chainhash.Hash) chainhash.Hash {
	var combined [chainhash.HashSize * 2]byte
	copy(combined[:chainhash.HashSize], left[:])
	copy(combined[chainhash.HashSize:], right[:])
	return chainhash.DoubleHashH(combined[:])
}

// ComputeMerkleRoot recomputes a merkle root from a leaf hash, the leaf's
// position in the block and the sibling hashes along the path to the root,
// bottom level first. At level i the sibling sits on the left exactly when
// bit i of pos is set. All hashes are in internal byte order.
func ComputeMerkleRoot(leaf chainhash.Hash, pos uint32, siblings []chainhash.Hash) chainhash.Hash {
	hash := leaf
	for i := range siblings {
		if (pos>>uint(i))&1 == 0 {
			hash = hashNodes(&hash, &siblings[i])
		} else {
			hash = hashNodes(&siblings[i], &hash)
		}
	}
	return hash
}

// VerifyMerkleProof reports whether (leaf, pos, siblings) recomputes to the
// expected merkle root. A confirmed transaction's proof must verify against
// the header of the block it is reported confirmed in.
func VerifyMerkleProof(leaf chainhash.Hash, pos uint32, siblings []chainhash.Hash, root chainhash.Hash) bool {
	return ComputeMerkleRoot(leaf, pos, siblings) == root
}
