package bitcoin

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

func mustHash(t *testing.T, s string) chainhash.Hash {
	t.Helper()
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		t.Fatal(err)
	}
	return *h
}

// Block 170 has exactly two transactions, so its merkle root is a single
// pair hash. Pins the node combination (concatenation order and double
// hashing) against mainnet data.
func TestHashNodesBlock170(t *testing.T) {
	coinbase := mustHash(t, "b1fea52486ce0c62bb442b530a3f0132b826c74e473d1f2c220bfa78111c5082")
	payment := mustHash(t, "f4184fc596403b9d638783cf57adfe4c75c605f6356fbc91338530e9831e9e16")
	root := mustHash(t, "7dac2c5666815c17a3b36427de37bb9d2e2c5ccec3f8633eb91a4205cb4c10ff")

	if got := hashNodes(&coinbase, &payment); got != root {
		t.Fatalf("hashNodes() = %s, want %s", got, root)
	}
}

// testLeaves derives n distinct deterministic leaf hashes.
func testLeaves(n int) []chainhash.Hash {
	leaves := make([]chainhash.Hash, n)
	for i := range leaves {
		leaves[i] = chainhash.DoubleHashH([]byte{byte(i)})
	}
	return leaves
}

// buildTree computes every level of a block merkle tree, duplicating the
// final node of odd-length levels as consensus does.
func buildTree(leaves []chainhash.Hash) [][]chainhash.Hash {
	levels := [][]chainhash.Hash{leaves}
	for level := leaves; len(level) > 1; {
		next := make([]chainhash.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			right := &level[i]
			if i+1 < len(level) {
				right = &level[i+1]
			}
			next = append(next, hashNodes(&level[i], right))
		}
		levels = append(levels, next)
		level = next
	}
	return levels
}

func TestVerifyMerkleProofAllPositions(t *testing.T) {
	for _, n := range []int{1, 2, 3, 7, 8, 11} {
		leaves := testLeaves(n)
		levels := buildTree(leaves)
		root := levels[len(levels)-1][0]

		for pos := 0; pos < n; pos++ {
			var siblings []chainhash.Hash
			idx := pos
			for _, level := range levels[:len(levels)-1] {
				sibling := idx ^ 1
				if sibling >= len(level) {
					sibling = idx
				}
				siblings = append(siblings, level[sibling])
				idx /= 2
			}

			if !VerifyMerkleProof(leaves[pos], uint32(pos), siblings, root) {
				t.Errorf("n=%d pos=%d: valid proof rejected", n, pos)
			}
			if n > 1 {
				wrongPos := uint32(pos) ^ 1
				if VerifyMerkleProof(leaves[pos], wrongPos, siblings, root) && wrongPos < uint32(n) {
					t.Errorf("n=%d pos=%d: proof accepted at wrong position", n, pos)
				}
			}
		}
	}
}

func TestVerifyMerkleProofRejectsTampering(t *testing.T) {
	leaves := testLeaves(4)
	levels := buildTree(leaves)
	root := levels[len(levels)-1][0]
	siblings := []chainhash.Hash{levels[0][1], levels[1][1]}

	if !VerifyMerkleProof(leaves[0], 0, siblings, root) {
		t.Fatal("valid proof rejected")
	}

	tampered := siblings[0]
	tampered[0] ^= 0xff
	if VerifyMerkleProof(leaves[0], 0, []chainhash.Hash{tampered, siblings[1]}, root) {
		t.Error("proof with corrupted sibling accepted")
	}
	if VerifyMerkleProof(leaves[1], 0, siblings, root) {
		t.Error("proof accepted for the wrong leaf")
	}
	if VerifyMerkleProof(leaves[0], 0, siblings[:1], root) {
		t.Error("proof with missing sibling accepted")
	}
}

func TestComputeMerkleRootSingleLeaf(t *testing.T) {
	leaf := testLeaves(1)[0]
	if got := ComputeMerkleRoot(leaf, 0, nil); got != leaf {
		t.Fatalf("single-transaction root = %s, want the txid itself", got)
	}
}
