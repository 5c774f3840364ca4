// Package esplora is a typed client for Esplora-style block explorer HTTP
// APIs (electrs, Blockstream.info and compatible servers).
//
// The API mixes three response encodings: structured JSON summaries, plain
// text numbers and hashes, and raw consensus-serialized bytes. Every
// operation decodes its body into an immutable typed value; malformed
// responses fail with an error naming the offending field instead of a
// generic parse error. The client holds no mutable state and is safe for
// concurrent use.
package esplora

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// TxStatus is a transaction's confirmation status. For an unconfirmed
// transaction the block fields are nil, never zero-valued, so "unconfirmed"
// can not be conflated with "confirmed in block 0".
type TxStatus struct {
	Confirmed   bool
	BlockHeight *uint32
	BlockHash   *chainhash.Hash
	BlockTime   *time.Time
}

// TxOutInfo is an output as summarized by the JSON endpoints.
type TxOutInfo struct {
	Value      uint64
	PkScript   []byte
	ScriptType string
	Address    string
}

// TxInInfo is an input as summarized by the JSON endpoints, including the
// server-resolved previous output when available.
type TxInInfo struct {
	PrevTxID        chainhash.Hash
	PrevIndex       uint32
	PrevOut         *TxOutInfo
	SignatureScript []byte
	Witness         [][]byte
	Sequence        uint32
	IsCoinbase      bool
}

// Tx is the structured JSON representation of a transaction. Input and
// output order is the server's order, which matches consensus order.
type Tx struct {
	TxID     chainhash.Hash
	Version  int32
	LockTime uint32
	Size     uint32
	Weight   uint32
	Fee      uint64
	Inputs   []TxInInfo
	Outputs  []TxOutInfo
	Status   TxStatus
}

// BlockStatus describes where a block sits relative to the best chain.
type BlockStatus struct {
	InBestChain bool
	Height      *uint32
	NextBest    *chainhash.Hash
}

// BlockSummary is an immutable snapshot of a block as listed by /blocks.
type BlockSummary struct {
	Hash       chainhash.Hash
	Height     uint32
	Version    int32
	Timestamp  time.Time
	TxCount    uint32
	Size       uint32
	Weight     uint32
	MerkleRoot chainhash.Hash
	PrevBlock  *chainhash.Hash
	Nonce      uint32
	Bits       uint32
	Difficulty float64
}

// MerkleProof is an inclusion proof for one transaction: the sibling hashes
// along the path to the root (bottom level first, internal byte order) and
// the transaction's position among the block's leaves.
type MerkleProof struct {
	BlockHeight uint32
	Siblings    []chainhash.Hash
	Pos         uint32
}

// OutputStatus reports whether an output has been spent and, if so, by
// which input of which transaction.
type OutputStatus struct {
	Spent  bool
	TxID   *chainhash.Hash
	Vin    *uint32
	Status *TxStatus
}

// Tip is the best block hash and height.
type Tip struct {
	Hash   chainhash.Hash
	Height uint32
}

// FeeEstimates maps a confirmation target in blocks to an estimated fee
// rate in sat/vB.
type FeeEstimates map[int]float64
