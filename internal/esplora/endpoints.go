package esplora

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// shape tags how an endpoint's response body is decoded.
type shape int

const (
	shapeJSON   shape = iota // structured JSON
	shapeText                // single trimmed text token (number, hash, txid)
	shapeHex                 // hex text wrapping consensus-serialized bytes
	shapeBinary              // raw consensus-serialized bytes
)

// endpoint is one entry of the catalog: how to build the request and how to
// read the response. Path templates use {name} placeholders substituted from
// the per-call parameter set.
type endpoint struct {
	method string
	path   string
	shape  shape
}

// catalog maps logical operations onto the Esplora HTTP surface. The paths
// are the interoperability contract with electrs/Blockstream-style servers
// and must not be reshaped.
var catalog = map[string]endpoint{
	"get_tx_raw":            {http.MethodGet, "/tx/{txid}/raw", shapeBinary},
	"get_tx_info":           {http.MethodGet, "/tx/{txid}", shapeJSON},
	"get_tx_status":         {http.MethodGet, "/tx/{txid}/status", shapeJSON},
	"get_txid_at_index":     {http.MethodGet, "/block/{hash}/txid/{index}", shapeText},
	"get_block_header":      {http.MethodGet, "/block/{hash}/header", shapeHex},
	"get_block_status":      {http.MethodGet, "/block/{hash}/status", shapeJSON},
	"get_block_raw":         {http.MethodGet, "/block/{hash}/raw", shapeBinary},
	"get_merkle_proof":      {http.MethodGet, "/tx/{txid}/merkle-proof", shapeJSON},
	"get_merkleblock_proof": {http.MethodGet, "/tx/{txid}/merkleblock-proof", shapeHex},
	"get_output_status":     {http.MethodGet, "/tx/{txid}/outspend/{vout}", shapeJSON},
	"broadcast":             {http.MethodPost, "/tx", shapeText},
	"get_tip_hash":          {http.MethodGet, "/blocks/tip/hash", shapeText},
	"get_tip_height":        {http.MethodGet, "/blocks/tip/height", shapeText},
	"get_block_hash":        {http.MethodGet, "/block-height/{height}", shapeText},
	"get_fee_estimates":     {http.MethodGet, "/fee-estimates", shapeJSON},
	"scripthash_txs":        {http.MethodGet, "/scripthash/{scripthash}/txs/chain", shapeJSON},
	"scripthash_txs_after":  {http.MethodGet, "/scripthash/{scripthash}/txs/chain/{last_seen}", shapeJSON},
	"address_txs":           {http.MethodGet, "/address/{address}/txs/chain", shapeJSON},
	"address_txs_after":     {http.MethodGet, "/address/{address}/txs/chain/{last_seen}", shapeJSON},
	"get_blocks":            {http.MethodGet, "/blocks", shapeJSON},
	"get_blocks_at":         {http.MethodGet, "/blocks/{height}", shapeJSON},
}

// buildPath substitutes the template's placeholders. Every placeholder must
// have a non-empty value; a missing one is a construction error caught
// before any network traffic.
func (e endpoint) buildPath(params map[string]string) (string, error) {
	var b strings.Builder
	rest := e.path
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		b.WriteString(rest[:open])
		closing := strings.IndexByte(rest[open:], '}')
		if closing < 0 {
			return "", fmt.Errorf("esplora: malformed path template %q", e.path)
		}
		name := rest[open+1 : open+closing]
		value, ok := params[name]
		if !ok || value == "" {
			return "", fmt.Errorf("%w: %s", ErrMissingParam, name)
		}
		b.WriteString(url.PathEscape(value))
		rest = rest[open+closing+1:]
	}
}
