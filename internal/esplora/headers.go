package esplora

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/blocknetic/esplora/internal/bitcoin"
	"github.com/blocknetic/esplora/pkg/workerpool"
)

// DefaultHeaderWorkers bounds concurrent header fetches when the caller
// does not choose a pool size.
const DefaultHeaderWorkers = 4

// GetHeaders fetches the headers for the given block hashes concurrently,
// preserving order. The first failed fetch cancels the rest and is
// returned. workers <= 0 selects DefaultHeaderWorkers.
func (c *Client) GetHeaders(ctx context.Context, hashes []chainhash.Hash, workers int) ([]*bitcoin.BlockHeader, error) {
	if workers <= 0 {
		workers = DefaultHeaderWorkers
	}
	headers := make([]*bitcoin.BlockHeader, len(hashes))
	err := workerpool.ForEach(ctx, workers, len(hashes), func(ctx context.Context, i int) error {
		header, err := c.GetHeader(ctx, hashes[i])
		if err != nil {
			return err
		}
		headers[i] = header
		return nil
	})
	if err != nil {
		return nil, err
	}
	return headers, nil
}
