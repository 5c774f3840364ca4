package esplora

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/blocknetic/esplora/internal/bitcoin"
	"github.com/blocknetic/esplora/pkg/safe"
)

// The JSON endpoints are decoded in two steps: the body unmarshals into a
// wire DTO mirroring the server's schema, then converts into a domain value
// with per-field validation. A broken or drifting server therefore fails
// with the name of the offending field rather than a bare syntax error.

func decodeJSON(body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return invalidf("body", "not valid JSON: %v", err)
	}
	return nil
}

// parseTextBody trims the body and requires the remainder to be a single
// token: any interior whitespace means the server sent something other than
// the bare value the endpoint promises.
func parseTextBody(body []byte) (string, error) {
	s := strings.TrimSpace(string(body))
	if s == "" {
		return "", invalidf("body", "empty plain-text body")
	}
	if strings.IndexFunc(s, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }) >= 0 {
		return "", invalidf("body", "plain-text body contains whitespace: %q", s)
	}
	return s, nil
}

func parseTextUint32(body []byte) (uint32, error) {
	s, err := parseTextBody(body)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, invalidf("body", "not a block height: %q", s)
	}
	return uint32(v), nil
}

func parseTextHash(body []byte) (chainhash.Hash, error) {
	s, err := parseTextBody(body)
	if err != nil {
		return chainhash.Hash{}, err
	}
	return parseHash("body", s)
}

// parseHexBody decodes a hex text body into the raw bytes handed to the
// binary codec.
func parseHexBody(body []byte) ([]byte, error) {
	s, err := parseTextBody(body)
	if err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: response body is not hex: %v", bitcoin.ErrBadEncoding, err)
	}
	return raw, nil
}

// parseHash parses a display-order (reversed) hex hash string, requiring
// the full 64 digits. chainhash would silently zero-pad short input.
func parseHash(field, s string) (chainhash.Hash, error) {
	if len(s) != chainhash.HashSize*2 {
		return chainhash.Hash{}, invalidf(field, "hash %q is %d chars, want %d", s, len(s), chainhash.HashSize*2)
	}
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return chainhash.Hash{}, invalidf(field, "hash %q: %v", s, err)
	}
	return *h, nil
}

func parseScript(field, hexScript string) ([]byte, error) {
	raw, err := hex.DecodeString(hexScript)
	if err != nil {
		return nil, invalidf(field, "script is not hex: %v", err)
	}
	return raw, nil
}

// ---- transaction status ----

type txStatusJSON struct {
	Confirmed   bool    `json:"confirmed"`
	BlockHeight *int64  `json:"block_height"`
	BlockHash   *string `json:"block_hash"`
	BlockTime   *int64  `json:"block_time"`
}

func (j *txStatusJSON) convert(field string) (TxStatus, error) {
	if !j.Confirmed {
		// Some servers echo stale block fields alongside confirmed=false;
		// absence wins so unconfirmed never carries a height.
		return TxStatus{}, nil
	}
	if j.BlockHeight == nil {
		return TxStatus{}, invalidf(field+".block_height", "missing for confirmed transaction")
	}
	if j.BlockHash == nil {
		return TxStatus{}, invalidf(field+".block_hash", "missing for confirmed transaction")
	}
	if j.BlockTime == nil {
		return TxStatus{}, invalidf(field+".block_time", "missing for confirmed transaction")
	}
	height, err := safe.Uint32(*j.BlockHeight)
	if err != nil {
		return TxStatus{}, invalidf(field+".block_height", "%v", err)
	}
	hash, err := parseHash(field+".block_hash", *j.BlockHash)
	if err != nil {
		return TxStatus{}, err
	}
	blockTime := time.Unix(*j.BlockTime, 0).UTC()
	return TxStatus{
		Confirmed:   true,
		BlockHeight: &height,
		BlockHash:   &hash,
		BlockTime:   &blockTime,
	}, nil
}

// ---- transaction summary ----

type txOutJSON struct {
	ScriptPubKey     string `json:"scriptpubkey"`
	ScriptPubKeyType string `json:"scriptpubkey_type"`
	ScriptPubKeyAddr string `json:"scriptpubkey_address"`
	Value            int64  `json:"value"`
}

func (j *txOutJSON) convert(field string) (TxOutInfo, error) {
	if j.Value < 0 {
		return TxOutInfo{}, invalidf(field+".value", "negative output value %d", j.Value)
	}
	script, err := parseScript(field+".scriptpubkey", j.ScriptPubKey)
	if err != nil {
		return TxOutInfo{}, err
	}
	return TxOutInfo{
		Value:      uint64(j.Value),
		PkScript:   script,
		ScriptType: j.ScriptPubKeyType,
		Address:    j.ScriptPubKeyAddr,
	}, nil
}

type txInJSON struct {
	TxID       string     `json:"txid"`
	Vout       uint32     `json:"vout"`
	PrevOut    *txOutJSON `json:"prevout"`
	ScriptSig  string     `json:"scriptsig"`
	Witness    []string   `json:"witness"`
	Sequence   uint32     `json:"sequence"`
	IsCoinbase bool       `json:"is_coinbase"`
}

func (j *txInJSON) convert(field string) (TxInInfo, error) {
	prevTxID, err := parseHash(field+".txid", j.TxID)
	if err != nil {
		return TxInInfo{}, err
	}
	scriptSig, err := parseScript(field+".scriptsig", j.ScriptSig)
	if err != nil {
		return TxInInfo{}, err
	}
	in := TxInInfo{
		PrevTxID:        prevTxID,
		PrevIndex:       j.Vout,
		SignatureScript: scriptSig,
		Sequence:        j.Sequence,
		IsCoinbase:      j.IsCoinbase,
	}
	if j.PrevOut != nil {
		prevOut, err := j.PrevOut.convert(field + ".prevout")
		if err != nil {
			return TxInInfo{}, err
		}
		in.PrevOut = &prevOut
	}
	if len(j.Witness) > 0 {
		in.Witness = make([][]byte, len(j.Witness))
		for i, item := range j.Witness {
			raw, err := hex.DecodeString(item)
			if err != nil {
				return TxInInfo{}, invalidf(fmt.Sprintf("%s.witness[%d]", field, i), "not hex: %v", err)
			}
			in.Witness[i] = raw
		}
	}
	return in, nil
}

type txJSON struct {
	TxID     string       `json:"txid"`
	Version  int32        `json:"version"`
	LockTime uint32       `json:"locktime"`
	Vin      []txInJSON   `json:"vin"`
	Vout     []txOutJSON  `json:"vout"`
	Size     int64        `json:"size"`
	Weight   int64        `json:"weight"`
	Fee      int64        `json:"fee"`
	Status   txStatusJSON `json:"status"`
}

func (j *txJSON) convert() (*Tx, error) {
	txid, err := parseHash("txid", j.TxID)
	if err != nil {
		return nil, err
	}
	size, err := safe.Uint32(j.Size)
	if err != nil {
		return nil, invalidf("size", "%v", err)
	}
	weight, err := safe.Uint32(j.Weight)
	if err != nil {
		return nil, invalidf("weight", "%v", err)
	}
	if j.Fee < 0 {
		return nil, invalidf("fee", "negative fee %d", j.Fee)
	}
	status, err := j.Status.convert("status")
	if err != nil {
		return nil, err
	}

	tx := &Tx{
		TxID:     txid,
		Version:  j.Version,
		LockTime: j.LockTime,
		Size:     size,
		Weight:   weight,
		Fee:      uint64(j.Fee),
		Inputs:   make([]TxInInfo, len(j.Vin)),
		Outputs:  make([]TxOutInfo, len(j.Vout)),
		Status:   status,
	}
	for i := range j.Vin {
		in, err := j.Vin[i].convert(fmt.Sprintf("vin[%d]", i))
		if err != nil {
			return nil, err
		}
		tx.Inputs[i] = in
	}
	for i := range j.Vout {
		out, err := j.Vout[i].convert(fmt.Sprintf("vout[%d]", i))
		if err != nil {
			return nil, err
		}
		tx.Outputs[i] = out
	}
	return tx, nil
}

func convertTxList(list []txJSON) ([]*Tx, error) {
	txs := make([]*Tx, len(list))
	for i := range list {
		tx, err := list[i].convert()
		if err != nil {
			return nil, err
		}
		txs[i] = tx
	}
	return txs, nil
}

// ---- block status ----

type blockStatusJSON struct {
	InBestChain bool    `json:"in_best_chain"`
	Height      *int64  `json:"height"`
	NextBest    *string `json:"next_best"`
}

func (j *blockStatusJSON) convert() (*BlockStatus, error) {
	status := &BlockStatus{InBestChain: j.InBestChain}
	if j.Height != nil {
		height, err := safe.Uint32(*j.Height)
		if err != nil {
			return nil, invalidf("height", "%v", err)
		}
		status.Height = &height
	}
	if j.NextBest != nil && *j.NextBest != "" {
		next, err := parseHash("next_best", *j.NextBest)
		if err != nil {
			return nil, err
		}
		status.NextBest = &next
	}
	return status, nil
}

// ---- block summaries ----

type blockSummaryJSON struct {
	ID            string  `json:"id"`
	Height        int64   `json:"height"`
	Version       int32   `json:"version"`
	Timestamp     int64   `json:"timestamp"`
	TxCount       int64   `json:"tx_count"`
	Size          int64   `json:"size"`
	Weight        int64   `json:"weight"`
	MerkleRoot    string  `json:"merkle_root"`
	PrevBlockHash *string `json:"previousblockhash"`
	Nonce         uint32  `json:"nonce"`
	Bits          uint32  `json:"bits"`
	Difficulty    float64 `json:"difficulty"`
}

func (j *blockSummaryJSON) convert(field string) (*BlockSummary, error) {
	hash, err := parseHash(field+".id", j.ID)
	if err != nil {
		return nil, err
	}
	height, err := safe.Uint32(j.Height)
	if err != nil {
		return nil, invalidf(field+".height", "%v", err)
	}
	txCount, err := safe.Uint32(j.TxCount)
	if err != nil {
		return nil, invalidf(field+".tx_count", "%v", err)
	}
	size, err := safe.Uint32(j.Size)
	if err != nil {
		return nil, invalidf(field+".size", "%v", err)
	}
	weight, err := safe.Uint32(j.Weight)
	if err != nil {
		return nil, invalidf(field+".weight", "%v", err)
	}
	root, err := parseHash(field+".merkle_root", j.MerkleRoot)
	if err != nil {
		return nil, err
	}
	summary := &BlockSummary{
		Hash:       hash,
		Height:     height,
		Version:    j.Version,
		Timestamp:  time.Unix(j.Timestamp, 0).UTC(),
		TxCount:    txCount,
		Size:       size,
		Weight:     weight,
		MerkleRoot: root,
		Nonce:      j.Nonce,
		Bits:       j.Bits,
		Difficulty: j.Difficulty,
	}
	if j.PrevBlockHash != nil && *j.PrevBlockHash != "" {
		prev, err := parseHash(field+".previousblockhash", *j.PrevBlockHash)
		if err != nil {
			return nil, err
		}
		summary.PrevBlock = &prev
	}
	return summary, nil
}

// ---- merkle proof ----

type merkleProofJSON struct {
	BlockHeight int64    `json:"block_height"`
	Merkle      []string `json:"merkle"`
	Pos         int64    `json:"pos"`
}

func (j *merkleProofJSON) convert() (*MerkleProof, error) {
	height, err := safe.Uint32(j.BlockHeight)
	if err != nil {
		return nil, invalidf("block_height", "%v", err)
	}
	pos, err := safe.Uint32(j.Pos)
	if err != nil {
		return nil, invalidf("pos", "%v", err)
	}
	siblings := make([]chainhash.Hash, len(j.Merkle))
	for i, s := range j.Merkle {
		// Served in display order; parseHash reverses into internal order
		// so the proof combines directly against header merkle roots.
		sibling, err := parseHash(fmt.Sprintf("merkle[%d]", i), s)
		if err != nil {
			return nil, err
		}
		siblings[i] = sibling
	}
	return &MerkleProof{
		BlockHeight: height,
		Siblings:    siblings,
		Pos:         pos,
	}, nil
}

// ---- output status ----

type outputStatusJSON struct {
	Spent  bool          `json:"spent"`
	TxID   *string       `json:"txid"`
	Vin    *int64        `json:"vin"`
	Status *txStatusJSON `json:"status"`
}

func (j *outputStatusJSON) convert() (*OutputStatus, error) {
	if !j.Spent {
		return &OutputStatus{}, nil
	}
	if j.TxID == nil {
		return nil, invalidf("txid", "missing for spent output")
	}
	if j.Vin == nil {
		return nil, invalidf("vin", "missing for spent output")
	}
	txid, err := parseHash("txid", *j.TxID)
	if err != nil {
		return nil, err
	}
	vin, err := safe.Uint32(*j.Vin)
	if err != nil {
		return nil, invalidf("vin", "%v", err)
	}
	status := &OutputStatus{Spent: true, TxID: &txid, Vin: &vin}
	if j.Status != nil {
		spendStatus, err := j.Status.convert("status")
		if err != nil {
			return nil, err
		}
		status.Status = &spendStatus
	}
	return status, nil
}

// ---- fee estimates ----

func convertFeeEstimates(raw map[string]float64) (FeeEstimates, error) {
	estimates := make(FeeEstimates, len(raw))
	for key, rate := range raw {
		target, err := strconv.Atoi(key)
		if err != nil || target <= 0 {
			return nil, invalidf("fee-estimates", "confirmation target %q is not a positive integer", key)
		}
		if rate < 0 {
			return nil, invalidf("fee-estimates", "negative fee rate %v for target %d", rate, target)
		}
		estimates[target] = rate
	}
	return estimates, nil
}
