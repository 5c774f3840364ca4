package esplora

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blocknetic/esplora/internal/bitcoin"
)

func TestGetHeaders(t *testing.T) {
	// A short chain of linked headers, served by hash.
	headers := make([]*bitcoin.BlockHeader, 5)
	hashes := make([]chainhash.Hash, len(headers))
	var prev chainhash.Hash
	for i := range headers {
		headers[i] = &bitcoin.BlockHeader{
			Version:   2,
			PrevBlock: prev,
			Timestamp: uint32(1690000000 + i*600),
			Bits:      0x1d00ffff,
			Nonce:     uint32(i),
		}
		hashes[i] = headers[i].BlockHash()
		prev = hashes[i]
	}

	byPath := make(map[string]string)
	for i := range headers {
		byPath["/block/"+hashes[i].String()+"/header"] = hex.EncodeToString(bitcoin.EncodeBlockHeader(headers[i]))
	}

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := byPath[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintln(w, body)
	}))

	got, err := client.GetHeaders(context.Background(), hashes, 3)
	require.NoError(t, err)
	require.Len(t, got, len(headers))
	for i := range got {
		assert.Equal(t, hashes[i], got[i].BlockHash(), "header %d out of order", i)
		if i > 0 {
			assert.Equal(t, hashes[i-1], got[i].PrevBlock)
		}
	}

	// One unknown hash fails the whole fetch.
	bad := append([]chainhash.Hash{}, hashes...)
	bad[2] = chainhash.DoubleHashH([]byte("missing"))
	_, err = client.GetHeaders(context.Background(), bad, 0)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusNotFound, remote.Status)
}
