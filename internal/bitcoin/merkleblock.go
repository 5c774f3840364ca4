package bitcoin

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// MerkleBlock is a block header plus a partial merkle tree proving that a
// subset of the block's transactions are committed to by the header's
// merkle root (BIP-37 encoding, as served by /tx/{txid}/merkleblock-proof).
type MerkleBlock struct {
	Header BlockHeader
	Total  uint32
	Hashes []chainhash.Hash
	Flags  []byte
}

// DecodeMerkleBlock decodes a consensus-serialized merkle block and requires
// the input to contain exactly one.
func DecodeMerkleBlock(b []byte) (*MerkleBlock, error) {
	r := newReader(b)

	header, err := decodeBlockHeader(r)
	if err != nil {
		return nil, err
	}

	total, err := r.readUint32()
	if err != nil {
		return nil, fmt.Errorf("merkle block transaction count: %w", err)
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: merkle block with no transactions", ErrBadEncoding)
	}

	hashCount, err := r.readCount(chainhash.HashSize)
	if err != nil {
		return nil, fmt.Errorf("merkle block hash count: %w", err)
	}
	hashes := make([]chainhash.Hash, hashCount)
	for i := range hashes {
		raw, err := r.readBytes(chainhash.HashSize)
		if err != nil {
			return nil, fmt.Errorf("merkle block hash %d: %w", i, err)
		}
		copy(hashes[i][:], raw)
	}

	flags, err := r.readVarBytes()
	if err != nil {
		return nil, fmt.Errorf("merkle block flags: %w", err)
	}

	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d bytes after merkle block", ErrTrailingBytes, r.remaining())
	}

	return &MerkleBlock{
		Header: *header,
		Total:  total,
		Hashes: hashes,
		Flags:  flags,
	}, nil
}

// treeWidth returns the node count of the partial merkle tree at the given
// height (height 0 is the leaves).
func (m *MerkleBlock) treeWidth(height uint32) uint32 {
	return (m.Total + (1 << height) - 1) >> height
}

// treeHeight returns the height of the tree's root.
func (m *MerkleBlock) treeHeight() uint32 {
	var height uint32
	for m.treeWidth(height) > 1 {
		height++
	}
	return height
}

type merkleTraversal struct {
	m       *MerkleBlock
	hashIdx int
	flagIdx int
	matches []chainhash.Hash
	indices []uint32
}

func (t *merkleTraversal) nextFlag() (bool, error) {
	if t.flagIdx >= len(t.m.Flags)*8 {
		return false, fmt.Errorf("%w: merkle flag bits exhausted", ErrBadEncoding)
	}
	set := t.m.Flags[t.flagIdx/8]>>(uint(t.flagIdx)%8)&1 == 1
	t.flagIdx++
	return set, nil
}

func (t *merkleTraversal) nextHash() (chainhash.Hash, error) {
	if t.hashIdx >= len(t.m.Hashes) {
		return chainhash.Hash{}, fmt.Errorf("%w: merkle hashes exhausted", ErrBadEncoding)
	}
	h := t.m.Hashes[t.hashIdx]
	t.hashIdx++
	return h, nil
}

func (t *merkleTraversal) walk(height, pos uint32) (chainhash.Hash, error) {
	parentOfMatch, err := t.nextFlag()
	if err != nil {
		return chainhash.Hash{}, err
	}

	if height == 0 || !parentOfMatch {
		hash, err := t.nextHash()
		if err != nil {
			return chainhash.Hash{}, err
		}
		if height == 0 && parentOfMatch {
			t.matches = append(t.matches, hash)
			t.indices = append(t.indices, pos)
		}
		return hash, nil
	}

	left, err := t.walk(height-1, pos*2)
	if err != nil {
		return chainhash.Hash{}, err
	}
	right := left
	if pos*2+1 < t.m.treeWidth(height-1) {
		if right, err = t.walk(height-1, pos*2+1); err != nil {
			return chainhash.Hash{}, err
		}
		// Identical children allow forging a second preimage for the
		// same root (CVE-2012-2459), so reject them outright.
		if right == left {
			return chainhash.Hash{}, fmt.Errorf("%w: duplicate merkle tree nodes", ErrBadEncoding)
		}
	}
	return hashNodes(&left, &right), nil
}

// ExtractMatches traverses the partial merkle tree, checks the recomputed
// root against the header's merkle root and returns the matched transaction
// hashes with their positions in the block.
func (m *MerkleBlock) ExtractMatches() ([]chainhash.Hash, []uint32, error) {
	t := &merkleTraversal{m: m}

	root, err := t.walk(m.treeHeight(), 0)
	if err != nil {
		return nil, nil, err
	}

	if t.hashIdx != len(m.Hashes) {
		return nil, nil, fmt.Errorf("%w: %d unconsumed merkle hashes", ErrBadEncoding, len(m.Hashes)-t.hashIdx)
	}
	// Unused bits in the final flag byte must be zero.
	for i := t.flagIdx; i < len(m.Flags)*8; i++ {
		if m.Flags[i/8]>>(uint(i)%8)&1 == 1 {
			return nil, nil, fmt.Errorf("%w: non-zero padding in merkle flag bits", ErrBadEncoding)
		}
	}

	if root != m.Header.MerkleRoot {
		return nil, nil, fmt.Errorf("%w: partial merkle tree root does not match header", ErrBadEncoding)
	}

	return t.matches, t.indices, nil
}
