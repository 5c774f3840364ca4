package bitcoin

import "fmt"

// Block is a consensus-decoded block: the header followed by its
// transactions in block order.
type Block struct {
	Header       BlockHeader
	Transactions []*Transaction
}

// DecodeBlock decodes a full consensus-serialized block and requires the
// input to contain exactly one block.
func DecodeBlock(b []byte) (*Block, error) {
	r := newReader(b)

	header, err := decodeBlockHeader(r)
	if err != nil {
		return nil, err
	}

	// The smallest possible transaction is well above 10 bytes; the bound
	// only needs to stop absurd counts before allocation.
	count, err := r.readCount(minTxInSize + minTxOutSize + 9)
	if err != nil {
		return nil, fmt.Errorf("block transaction count: %w", err)
	}

	txs := make([]*Transaction, count)
	for i := range txs {
		tx, err := decodeTransaction(r)
		if err != nil {
			return nil, fmt.Errorf("block transaction %d: %w", i, err)
		}
		txs[i] = tx
	}

	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d bytes after block", ErrTrailingBytes, r.remaining())
	}

	return &Block{Header: *header, Transactions: txs}, nil
}
