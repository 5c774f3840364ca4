// Package bitcoin implements consensus (de)serialization of Bitcoin
// primitives: transactions, block headers, blocks and merkle blocks.
//
// Decoding is stricter than node software needs to be: every top-level
// decoder consumes its input exactly, failing with ErrTruncated when bytes
// run out mid-field and ErrTrailingBytes when bytes are left over. Esplora
// servers hand us complete bodies, so leftover bytes always mean a framing
// bug somewhere and are worth failing loudly on.
package bitcoin

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

const (
	// CoinbasePrevIndex is the previous-output index carried by the single
	// input of a coinbase transaction.
	CoinbasePrevIndex = 0xffffffff

	// MaxSatoshi is the total supply in satoshis. No single output may
	// carry more.
	MaxSatoshi = 21_000_000 * 1e8

	// Minimum serialized sizes, used to bound element counts before
	// allocating: outpoint(36) + script len(1) + sequence(4) for inputs,
	// value(8) + script len(1) for outputs.
	minTxInSize  = 41
	minTxOutSize = 9
)

// TxIn is a transaction input.
type TxIn struct {
	PrevTxID        chainhash.Hash
	PrevIndex       uint32
	SignatureScript []byte
	Sequence        uint32
	Witness         [][]byte
}

// TxOut is a transaction output.
type TxOut struct {
	Value    uint64
	PkScript []byte
}

// Transaction is a consensus-decoded Bitcoin transaction. Input and output
// order is exactly the serialized order and is never rearranged.
type Transaction struct {
	Version  int32
	LockTime uint32
	Inputs   []TxIn
	Outputs  []TxOut
}

// HasWitness reports whether any input carries witness data. It determines
// whether EncodeTransaction emits the BIP-144 marker and flag bytes.
func (tx *Transaction) HasWitness() bool {
	for i := range tx.Inputs {
		if len(tx.Inputs[i].Witness) > 0 {
			return true
		}
	}
	return false
}

// TxID returns the double-SHA256 of the legacy (witness-stripped)
// serialization, which is the transaction id servers index by.
func (tx *Transaction) TxID() chainhash.Hash {
	return chainhash.DoubleHashH(tx.encode(false))
}

// WTxID returns the double-SHA256 of the full serialization including
// witness data. Equal to TxID for transactions without witnesses.
func (tx *Transaction) WTxID() chainhash.Hash {
	return chainhash.DoubleHashH(tx.encode(tx.HasWitness()))
}

// DecodeTransaction decodes a consensus-serialized transaction and requires
// the input to contain exactly one transaction.
func DecodeTransaction(b []byte) (*Transaction, error) {
	r := newReader(b)
	tx, err := decodeTransaction(r)
	if err != nil {
		return nil, err
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d bytes after transaction", ErrTrailingBytes, r.remaining())
	}
	return tx, nil
}

// decodeTransaction parses one transaction at the reader's position, leaving
// the reader just past it. Used directly by the block decoder.
func decodeTransaction(r *reader) (*Transaction, error) {
	version, err := r.readUint32()
	if err != nil {
		return nil, fmt.Errorf("transaction version: %w", err)
	}
	tx := &Transaction{Version: int32(version)}

	inputCount, err := r.readCompactSize()
	if err != nil {
		return nil, fmt.Errorf("transaction input count: %w", err)
	}

	// A zero input count is the BIP-144 witness marker: the real input
	// count follows the mandatory 0x01 flag byte.
	segwit := false
	if inputCount == 0 {
		flag, err := r.readByte()
		if err != nil {
			return nil, fmt.Errorf("witness flag: %w", err)
		}
		if flag != 0x01 {
			return nil, fmt.Errorf("%w: witness flag 0x%02x", ErrBadEncoding, flag)
		}
		segwit = true
		inputCount, err = r.readCompactSize()
		if err != nil {
			return nil, fmt.Errorf("transaction input count: %w", err)
		}
	}
	if inputCount == 0 {
		return nil, fmt.Errorf("%w: transaction with no inputs", ErrBadEncoding)
	}
	if inputCount > uint64(r.remaining()/minTxInSize) {
		return nil, fmt.Errorf("%w: input count %d exceeds remaining input", ErrTruncated, inputCount)
	}

	tx.Inputs = make([]TxIn, inputCount)
	for i := range tx.Inputs {
		if err := decodeTxIn(r, &tx.Inputs[i]); err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
	}

	outputCount, err := r.readCount(minTxOutSize)
	if err != nil {
		return nil, fmt.Errorf("transaction output count: %w", err)
	}
	tx.Outputs = make([]TxOut, outputCount)
	for i := range tx.Outputs {
		if err := decodeTxOut(r, &tx.Outputs[i]); err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
	}

	if segwit {
		any := false
		for i := range tx.Inputs {
			items, err := r.readCount(1)
			if err != nil {
				return nil, fmt.Errorf("input %d witness count: %w", i, err)
			}
			if items == 0 {
				continue
			}
			any = true
			tx.Inputs[i].Witness = make([][]byte, items)
			for j := range tx.Inputs[i].Witness {
				item, err := r.readVarBytes()
				if err != nil {
					return nil, fmt.Errorf("input %d witness item %d: %w", i, j, err)
				}
				tx.Inputs[i].Witness[j] = item
			}
		}
		if !any {
			return nil, fmt.Errorf("%w: witness marker present but all witness stacks empty", ErrBadEncoding)
		}
	}

	lockTime, err := r.readUint32()
	if err != nil {
		return nil, fmt.Errorf("transaction lock time: %w", err)
	}
	tx.LockTime = lockTime

	return tx, nil
}

func decodeTxIn(r *reader, in *TxIn) error {
	hashBytes, err := r.readBytes(chainhash.HashSize)
	if err != nil {
		return fmt.Errorf("previous txid: %w", err)
	}
	copy(in.PrevTxID[:], hashBytes)

	if in.PrevIndex, err = r.readUint32(); err != nil {
		return fmt.Errorf("previous output index: %w", err)
	}
	if in.SignatureScript, err = r.readVarBytes(); err != nil {
		return fmt.Errorf("signature script: %w", err)
	}
	if in.Sequence, err = r.readUint32(); err != nil {
		return fmt.Errorf("sequence: %w", err)
	}
	return nil
}

func decodeTxOut(r *reader, out *TxOut) error {
	value, err := r.readUint64()
	if err != nil {
		return fmt.Errorf("value: %w", err)
	}
	if value > MaxSatoshi {
		return fmt.Errorf("%w: output value %d exceeds max supply", ErrBadEncoding, value)
	}
	out.Value = value
	if out.PkScript, err = r.readVarBytes(); err != nil {
		return fmt.Errorf("pk script: %w", err)
	}
	return nil
}

// EncodeTransaction serializes the transaction in consensus format. The
// witness marker and flag are emitted exactly when witness data is present,
// so DecodeTransaction followed by EncodeTransaction reproduces the original
// bytes.
func EncodeTransaction(tx *Transaction) []byte {
	return tx.encode(tx.HasWitness())
}

func (tx *Transaction) encode(withWitness bool) []byte {
	buf := make([]byte, 0, 256)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(tx.Version))

	if withWitness {
		buf = append(buf, 0x00, 0x01)
	}

	buf = putCompactSize(buf, uint64(len(tx.Inputs)))
	for i := range tx.Inputs {
		in := &tx.Inputs[i]
		buf = append(buf, in.PrevTxID[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, in.PrevIndex)
		buf = putVarBytes(buf, in.SignatureScript)
		buf = binary.LittleEndian.AppendUint32(buf, in.Sequence)
	}

	buf = putCompactSize(buf, uint64(len(tx.Outputs)))
	for i := range tx.Outputs {
		out := &tx.Outputs[i]
		buf = binary.LittleEndian.AppendUint64(buf, out.Value)
		buf = putVarBytes(buf, out.PkScript)
	}

	if withWitness {
		for i := range tx.Inputs {
			items := tx.Inputs[i].Witness
			buf = putCompactSize(buf, uint64(len(items)))
			for _, item := range items {
				buf = putVarBytes(buf, item)
			}
		}
	}

	return binary.LittleEndian.AppendUint32(buf, tx.LockTime)
}
