package esplora

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
)

// ScriptHash is the history index key: the SHA-256 of an output script,
// hex-encoded big-endian in the request path.
type ScriptHash [sha256.Size]byte

func (h ScriptHash) String() string {
	return hex.EncodeToString(h[:])
}

// HashScript derives the ScriptHash of an output script.
func HashScript(pkScript []byte) ScriptHash {
	return sha256.Sum256(pkScript)
}

// AddressScriptHash derives the ScriptHash for an address on the given
// network by rebuilding its output script.
func AddressScriptHash(addr string, params *chaincfg.Params) (ScriptHash, error) {
	decoded, err := btcutil.DecodeAddress(addr, params)
	if err != nil {
		return ScriptHash{}, fmt.Errorf("esplora: decode address %q: %w", addr, err)
	}
	pkScript, err := txscript.PayToAddrScript(decoded)
	if err != nil {
		return ScriptHash{}, fmt.Errorf("esplora: script for address %q: %w", addr, err)
	}
	return HashScript(pkScript), nil
}

// ResolveHistoryTarget interprets a user-supplied history argument: a
// 64-digit hex string is a precomputed script hash, anything else must be
// an address on the given network.
func ResolveHistoryTarget(s string, params *chaincfg.Params) (ScriptHash, error) {
	if len(s) == sha256.Size*2 {
		if raw, err := hex.DecodeString(s); err == nil {
			var h ScriptHash
			copy(h[:], raw)
			return h, nil
		}
	}
	return AddressScriptHash(s, params)
}

// ScriptHashTxs returns one page of confirmed transaction history for a
// script hash, newest first in the server's documented order, which the
// client passes through without re-sorting. A nil lastSeen starts from the
// newest confirmed transaction; otherwise the page continues after that
// txid. Page length is server-defined.
func (c *Client) ScriptHashTxs(ctx context.Context, scripthash ScriptHash, lastSeen *chainhash.Hash) ([]*Tx, error) {
	op := "scripthash_txs"
	params := map[string]string{"scripthash": scripthash.String()}
	if lastSeen != nil {
		op = "scripthash_txs_after"
		params["last_seen"] = lastSeen.String()
	}
	return c.historyPage(ctx, op, params)
}

// AddressTxs is ScriptHashTxs addressed by the server-side address index.
func (c *Client) AddressTxs(ctx context.Context, address string, lastSeen *chainhash.Hash) ([]*Tx, error) {
	op := "address_txs"
	params := map[string]string{"address": address}
	if lastSeen != nil {
		op = "address_txs_after"
		params["last_seen"] = lastSeen.String()
	}
	return c.historyPage(ctx, op, params)
}

func (c *Client) historyPage(ctx context.Context, op string, params map[string]string) ([]*Tx, error) {
	body, err := c.call(ctx, op, params, nil)
	if err != nil {
		return nil, err
	}
	var dtos []txJSON
	if err := decodeJSON(body, &dtos); err != nil {
		return nil, err
	}
	return convertTxList(dtos)
}

// HistoryIterator pages through a script hash's confirmed history. Each
// Next call fetches one server-sized page; an empty page ends the
// iteration. Creating a fresh iterator restarts from the newest
// transaction. Not safe for concurrent use; create one per goroutine.
type HistoryIterator struct {
	client     *Client
	scripthash ScriptHash
	lastSeen   *chainhash.Hash
	done       bool
}

// History starts a paged walk over the confirmed transactions touching the
// given script hash.
func (c *Client) History(scripthash ScriptHash) *HistoryIterator {
	return &HistoryIterator{client: c, scripthash: scripthash}
}

// Next returns the next page, or (nil, nil) once the history is exhausted.
func (it *HistoryIterator) Next(ctx context.Context) ([]*Tx, error) {
	if it.done {
		return nil, nil
	}
	page, err := it.client.ScriptHashTxs(ctx, it.scripthash, it.lastSeen)
	if err != nil {
		return nil, err
	}
	if len(page) == 0 {
		it.done = true
		return nil, nil
	}
	last := page[len(page)-1].TxID
	it.lastSeen = &last
	return page, nil
}
