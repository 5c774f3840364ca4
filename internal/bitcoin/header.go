package bitcoin

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// HeaderSize is the fixed consensus size of a block header.
const HeaderSize = 80

// BlockHeader is the fixed 80-byte consensus block header.
type BlockHeader struct {
	Version    int32
	PrevBlock  chainhash.Hash
	MerkleRoot chainhash.Hash
	Timestamp  uint32
	Bits       uint32
	Nonce      uint32
}

// BlockHash returns the double-SHA256 of the serialized header.
func (h *BlockHeader) BlockHash() chainhash.Hash {
	return chainhash.DoubleHashH(EncodeBlockHeader(h))
}

// DecodeBlockHeader decodes exactly one 80-byte block header.
func DecodeBlockHeader(b []byte) (*BlockHeader, error) {
	if len(b) < HeaderSize {
		return nil, fmt.Errorf("%w: header needs %d bytes, have %d", ErrTruncated, HeaderSize, len(b))
	}
	if len(b) > HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes after header", ErrTrailingBytes, len(b)-HeaderSize)
	}
	r := newReader(b)
	return decodeBlockHeader(r)
}

func decodeBlockHeader(r *reader) (*BlockHeader, error) {
	h := &BlockHeader{}

	version, err := r.readUint32()
	if err != nil {
		return nil, fmt.Errorf("header version: %w", err)
	}
	h.Version = int32(version)

	prev, err := r.readBytes(chainhash.HashSize)
	if err != nil {
		return nil, fmt.Errorf("previous block hash: %w", err)
	}
	copy(h.PrevBlock[:], prev)

	root, err := r.readBytes(chainhash.HashSize)
	if err != nil {
		return nil, fmt.Errorf("merkle root: %w", err)
	}
	copy(h.MerkleRoot[:], root)

	if h.Timestamp, err = r.readUint32(); err != nil {
		return nil, fmt.Errorf("timestamp: %w", err)
	}
	if h.Bits, err = r.readUint32(); err != nil {
		return nil, fmt.Errorf("bits: %w", err)
	}
	if h.Nonce, err = r.readUint32(); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	return h, nil
}

// EncodeBlockHeader serializes the header into its 80-byte consensus form.
func EncodeBlockHeader(h *BlockHeader) []byte {
	buf := make([]byte, 0, HeaderSize)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(h.Version))
	buf = append(buf, h.PrevBlock[:]...)
	buf = append(buf, h.MerkleRoot[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, h.Timestamp)
	buf = binary.LittleEndian.AppendUint32(buf, h.Bits)
	return binary.LittleEndian.AppendUint32(buf, h.Nonce)
}
