package esplora

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/blocknetic/esplora/internal/bitcoin"
)

const (
	hashHexA = "000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f"
	hashHexB = "f4184fc596403b9d638783cf57adfe4c75c605f6356fbc91338530e9831e9e16"
)

func TestParseTextBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		invalid bool
	}{
		{name: "plain", body: "800000", want: "800000"},
		{name: "trailing newline", body: "800000\n", want: "800000"},
		{name: "surrounding whitespace", body: "  deadbeef\r\n", want: "deadbeef"},
		{name: "empty", body: "", invalid: true},
		{name: "only whitespace", body: " \n", invalid: true},
		{name: "interior whitespace", body: "not a token", invalid: true},
		{name: "html error page", body: "<html>\n<body>oops</body>\n</html>", invalid: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTextBody([]byte(tt.body))
			if tt.invalid {
				var invalid *InvalidError
				if !errors.As(err, &invalid) {
					t.Fatalf("parseTextBody() error = %v, want InvalidError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTextBody() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("parseTextBody() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseTextUint32(t *testing.T) {
	if v, err := parseTextUint32([]byte("800000\n")); err != nil || v != 800000 {
		t.Fatalf("parseTextUint32() = %d, %v; want 800000, nil", v, err)
	}
	for _, body := range []string{"-1", "4294967296", "0x10", "12.5"} {
		if _, err := parseTextUint32([]byte(body)); err == nil {
			t.Errorf("parseTextUint32(%q) accepted", body)
		}
	}
}

func TestParseHash(t *testing.T) {
	h, err := parseHash("field", hashHexA)
	if err != nil {
		t.Fatalf("parseHash() error = %v", err)
	}
	// Display order reverses internal order, so the leading zero bytes of
	// the low-difficulty hash end up at the tail.
	if h.String() != hashHexA {
		t.Fatalf("round trip = %s, want %s", h.String(), hashHexA)
	}
	if h[31] != 0x00 || h[0] != 0x6f {
		t.Fatal("parsed hash is not in internal byte order")
	}

	for _, s := range []string{"", "ab", hashHexA[:63], hashHexA + "00", strings.Repeat("zz", 32)} {
		if _, err := parseHash("field", s); err == nil {
			t.Errorf("parseHash(%q) accepted", s)
		}
	}
}

func TestParseHexBody(t *testing.T) {
	raw, err := parseHexBody([]byte("00ff10\n"))
	if err != nil {
		t.Fatalf("parseHexBody() error = %v", err)
	}
	if len(raw) != 3 || raw[0] != 0x00 || raw[1] != 0xff || raw[2] != 0x10 {
		t.Fatalf("parseHexBody() = %x", raw)
	}
	if _, err := parseHexBody([]byte("xyz")); !errors.Is(err, bitcoin.ErrBadEncoding) {
		t.Fatalf("parseHexBody() error = %v, want ErrBadEncoding", err)
	}
}

func TestTxStatusConvert(t *testing.T) {
	height := int64(800000)
	hash := hashHexA
	blockTime := int64(1690000000)

	t.Run("confirmed", func(t *testing.T) {
		dto := txStatusJSON{Confirmed: true, BlockHeight: &height, BlockHash: &hash, BlockTime: &blockTime}
		status, err := dto.convert("status")
		if err != nil {
			t.Fatalf("convert() error = %v", err)
		}
		if !status.Confirmed {
			t.Fatal("Confirmed = false")
		}
		if status.BlockHeight == nil || *status.BlockHeight != 800000 {
			t.Error("wrong block height")
		}
		if status.BlockHash == nil || status.BlockHash.String() != hashHexA {
			t.Error("wrong block hash")
		}
		if status.BlockTime == nil || !status.BlockTime.Equal(time.Unix(blockTime, 0)) {
			t.Error("wrong block time")
		}
	})

	t.Run("unconfirmed has nil block fields", func(t *testing.T) {
		dto := txStatusJSON{Confirmed: false}
		status, err := dto.convert("status")
		if err != nil {
			t.Fatalf("convert() error = %v", err)
		}
		if status.Confirmed || status.BlockHeight != nil || status.BlockHash != nil || status.BlockTime != nil {
			t.Fatalf("unconfirmed status carries block fields: %+v", status)
		}
	})

	t.Run("unconfirmed drops stray block fields", func(t *testing.T) {
		dto := txStatusJSON{Confirmed: false, BlockHeight: &height, BlockHash: &hash, BlockTime: &blockTime}
		status, err := dto.convert("status")
		if err != nil {
			t.Fatalf("convert() error = %v", err)
		}
		if status.BlockHeight != nil {
			t.Fatal("stray block height survived")
		}
	})

	t.Run("confirmed with missing fields", func(t *testing.T) {
		for _, dto := range []txStatusJSON{
			{Confirmed: true, BlockHash: &hash, BlockTime: &blockTime},
			{Confirmed: true, BlockHeight: &height, BlockTime: &blockTime},
			{Confirmed: true, BlockHeight: &height, BlockHash: &hash},
		} {
			if _, err := dto.convert("status"); err == nil {
				t.Errorf("convert(%+v) accepted", dto)
			}
		}
	})

	t.Run("negative height", func(t *testing.T) {
		bad := int64(-1)
		dto := txStatusJSON{Confirmed: true, BlockHeight: &bad, BlockHash: &hash, BlockTime: &blockTime}
		var invalid *InvalidError
		if _, err := dto.convert("status"); !errors.As(err, &invalid) {
			t.Fatalf("convert() error = %v, want InvalidError", err)
		} else if invalid.Field != "status.block_height" {
			t.Fatalf("error field = %q, want status.block_height", invalid.Field)
		}
	})
}

func TestTxConvert(t *testing.T) {
	dto := txJSON{
		TxID:     hashHexB,
		Version:  2,
		LockTime: 650000,
		Size:     225,
		Weight:   573,
		Fee:      1420,
		Vin: []txInJSON{{
			TxID:      hashHexA,
			Vout:      1,
			ScriptSig: "0014",
			Witness:   []string{"30440220", "02aabb"},
			Sequence:  0xfffffffd,
			PrevOut:   &txOutJSON{ScriptPubKey: "51", Value: 10000},
		}},
		Vout: []txOutJSON{
			{ScriptPubKey: "6a", ScriptPubKeyType: "op_return", Value: 0},
			{ScriptPubKey: "0014aabb", ScriptPubKeyType: "v0_p2wpkh", ScriptPubKeyAddr: "bc1qtest", Value: 8580},
		},
	}

	tx, err := dto.convert()
	if err != nil {
		t.Fatalf("convert() error = %v", err)
	}
	if tx.TxID.String() != hashHexB {
		t.Error("wrong txid")
	}
	if tx.Size != 225 || tx.Weight != 573 || tx.Fee != 1420 {
		t.Error("wrong size, weight or fee")
	}
	if len(tx.Inputs) != 1 || len(tx.Outputs) != 2 {
		t.Fatalf("got %d inputs / %d outputs", len(tx.Inputs), len(tx.Outputs))
	}
	in := tx.Inputs[0]
	if in.PrevTxID.String() != hashHexA || in.PrevIndex != 1 {
		t.Error("wrong previous outpoint")
	}
	if len(in.Witness) != 2 || len(in.Witness[0]) != 4 {
		t.Error("witness items not decoded")
	}
	if in.PrevOut == nil || in.PrevOut.Value != 10000 {
		t.Error("prevout not converted")
	}
	if tx.Outputs[1].Address != "bc1qtest" || tx.Outputs[1].ScriptType != "v0_p2wpkh" {
		t.Error("output metadata lost")
	}
	if tx.Status.Confirmed {
		t.Error("empty status should be unconfirmed")
	}
}

func TestTxConvertRejects(t *testing.T) {
	base := func() txJSON {
		return txJSON{TxID: hashHexB, Size: 100, Weight: 400}
	}

	tests := []struct {
		name   string
		mutate func(*txJSON)
		field  string
	}{
		{"short txid", func(j *txJSON) { j.TxID = "abcd" }, "txid"},
		{"negative fee", func(j *txJSON) { j.Fee = -1 }, "fee"},
		{"negative size", func(j *txJSON) { j.Size = -5 }, "size"},
		{"oversized weight", func(j *txJSON) { j.Weight = 1 << 40 }, "weight"},
		{"negative output value", func(j *txJSON) {
			j.Vout = []txOutJSON{{ScriptPubKey: "51", Value: -1}}
		}, "vout[0].value"},
		{"bad scriptsig hex", func(j *txJSON) {
			j.Vin = []txInJSON{{TxID: hashHexA, ScriptSig: "zz"}}
		}, "vin[0].scriptsig"},
		{"bad witness hex", func(j *txJSON) {
			j.Vin = []txInJSON{{TxID: hashHexA, Witness: []string{"zz"}}}
		}, "vin[0].witness[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dto := base()
			tt.mutate(&dto)
			_, err := dto.convert()
			var invalid *InvalidError
			if !errors.As(err, &invalid) {
				t.Fatalf("convert() error = %v, want InvalidError", err)
			}
			if invalid.Field != tt.field {
				t.Fatalf("error field = %q, want %q", invalid.Field, tt.field)
			}
		})
	}
}

func TestBlockStatusConvert(t *testing.T) {
	height := int64(800000)
	next := hashHexA

	status, err := (&blockStatusJSON{InBestChain: true, Height: &height, NextBest: &next}).convert()
	if err != nil {
		t.Fatalf("convert() error = %v", err)
	}
	if !status.InBestChain || status.Height == nil || *status.Height != 800000 {
		t.Error("wrong best-chain status or height")
	}
	if status.NextBest == nil || status.NextBest.String() != hashHexA {
		t.Error("wrong next-best hash")
	}

	// A stale or orphaned block has no chain position.
	status, err = (&blockStatusJSON{}).convert()
	if err != nil {
		t.Fatalf("convert() error = %v", err)
	}
	if status.InBestChain || status.Height != nil || status.NextBest != nil {
		t.Errorf("orphan status carries chain fields: %+v", status)
	}
}

func TestBlockSummaryConvert(t *testing.T) {
	prev := hashHexB
	dto := blockSummaryJSON{
		ID:            hashHexA,
		Height:        800000,
		Version:       0x20000000,
		Timestamp:     1690000000,
		TxCount:       3432,
		Size:          1523742,
		Weight:        3992882,
		MerkleRoot:    hashHexB,
		PrevBlockHash: &prev,
		Nonce:         42,
		Bits:          0x1702c4e4,
		Difficulty:    53911173001054.59,
	}

	summary, err := dto.convert("blocks[0]")
	if err != nil {
		t.Fatalf("convert() error = %v", err)
	}
	if summary.Hash.String() != hashHexA || summary.Height != 800000 {
		t.Error("wrong hash or height")
	}
	if summary.PrevBlock == nil || summary.PrevBlock.String() != hashHexB {
		t.Error("wrong previous block")
	}
	if !summary.Timestamp.Equal(time.Unix(1690000000, 0)) {
		t.Error("wrong timestamp")
	}

	dto.PrevBlockHash = nil
	summary, err = dto.convert("blocks[0]")
	if err != nil {
		t.Fatalf("convert() without prev error = %v", err)
	}
	if summary.PrevBlock != nil {
		t.Error("genesis-style summary must have nil PrevBlock")
	}

	dto.Height = -1
	if _, err := dto.convert("blocks[0]"); err == nil {
		t.Error("negative height accepted")
	}
}

func TestOutputStatusConvert(t *testing.T) {
	t.Run("unspent", func(t *testing.T) {
		status, err := (&outputStatusJSON{Spent: false}).convert()
		if err != nil {
			t.Fatalf("convert() error = %v", err)
		}
		if status.Spent || status.TxID != nil || status.Vin != nil || status.Status != nil {
			t.Fatalf("unspent output carries spender fields: %+v", status)
		}
	})

	t.Run("spent", func(t *testing.T) {
		txid := hashHexB
		vin := int64(0)
		status, err := (&outputStatusJSON{
			Spent:  true,
			TxID:   &txid,
			Vin:    &vin,
			Status: &txStatusJSON{Confirmed: false},
		}).convert()
		if err != nil {
			t.Fatalf("convert() error = %v", err)
		}
		if !status.Spent || status.TxID == nil || status.TxID.String() != hashHexB {
			t.Error("wrong spender txid")
		}
		if status.Vin == nil || *status.Vin != 0 {
			t.Error("wrong spender input index")
		}
		if status.Status == nil || status.Status.Confirmed {
			t.Error("spender status lost")
		}
	})

	t.Run("spent without spender", func(t *testing.T) {
		if _, err := (&outputStatusJSON{Spent: true}).convert(); err == nil {
			t.Fatal("spent output without txid accepted")
		}
		txid := hashHexB
		if _, err := (&outputStatusJSON{Spent: true, TxID: &txid}).convert(); err == nil {
			t.Fatal("spent output without vin accepted")
		}
	})
}

func TestConvertFeeEstimates(t *testing.T) {
	estimates, err := convertFeeEstimates(map[string]float64{"1": 45.2, "6": 12.1, "144": 1.0})
	if err != nil {
		t.Fatalf("convertFeeEstimates() error = %v", err)
	}
	if len(estimates) != 3 {
		t.Fatalf("got %d entries, want 3", len(estimates))
	}
	if estimates[1] != 45.2 || estimates[6] != 12.1 || estimates[144] != 1.0 {
		t.Fatalf("wrong estimates: %v", estimates)
	}

	for _, raw := range []map[string]float64{
		{"fast": 45.2},
		{"0": 45.2},
		{"-6": 12.1},
		{"6": -1},
	} {
		if _, err := convertFeeEstimates(raw); err == nil {
			t.Errorf("convertFeeEstimates(%v) accepted", raw)
		}
	}
}

func TestMerkleProofConvert(t *testing.T) {
	dto := merkleProofJSON{
		BlockHeight: 170,
		Merkle:      []string{hashHexA, hashHexB},
		Pos:         1,
	}
	proof, err := dto.convert()
	if err != nil {
		t.Fatalf("convert() error = %v", err)
	}
	if proof.BlockHeight != 170 || proof.Pos != 1 {
		t.Error("wrong height or position")
	}
	if len(proof.Siblings) != 2 || proof.Siblings[0].String() != hashHexA {
		t.Error("siblings not parsed in order")
	}

	dto.Pos = -1
	if _, err := dto.convert(); err == nil {
		t.Error("negative position accepted")
	}
}
