package bitcoin

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Mainnet genesis block header.
const genesisHeaderHex = "01000000" +
	"0000000000000000000000000000000000000000000000000000000000000000" +
	"3ba3edfd7a7b12b27ac72c3e67768f617fc81bc3888a51323a9fb8aa4b1e5e4a" +
	"29ab5f49" + "ffff001d" + "1dac2b7c"

func TestDecodeBlockHeaderGenesis(t *testing.T) {
	raw, err := hex.DecodeString(genesisHeaderHex)
	if err != nil {
		t.Fatal(err)
	}

	h, err := DecodeBlockHeader(raw)
	if err != nil {
		t.Fatalf("DecodeBlockHeader() error = %v", err)
	}

	if h.Version != 1 {
		t.Errorf("Version = %d, want 1", h.Version)
	}
	if h.PrevBlock != (chainhash.Hash{}) {
		t.Errorf("PrevBlock = %s, want zero hash", h.PrevBlock)
	}
	wantRoot, err := chainhash.NewHashFromStr("4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b")
	if err != nil {
		t.Fatal(err)
	}
	if h.MerkleRoot != *wantRoot {
		t.Errorf("MerkleRoot = %s, want %s", h.MerkleRoot, wantRoot)
	}
	if h.Timestamp != 1231006505 {
		t.Errorf("Timestamp = %d, want 1231006505", h.Timestamp)
	}
	if h.Bits != 0x1d00ffff {
		t.Errorf("Bits = %08x, want 1d00ffff", h.Bits)
	}
	if h.Nonce != 2083236893 {
		t.Errorf("Nonce = %d, want 2083236893", h.Nonce)
	}

	wantHash, err := chainhash.NewHashFromStr("000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f")
	if err != nil {
		t.Fatal(err)
	}
	if got := h.BlockHash(); got != *wantHash {
		t.Errorf("BlockHash() = %s, want %s", got, wantHash)
	}

	if !bytes.Equal(EncodeBlockHeader(h), raw) {
		t.Error("EncodeBlockHeader() does not reproduce the original bytes")
	}
}

func TestDecodeBlockHeaderSizes(t *testing.T) {
	raw, err := hex.DecodeString(genesisHeaderHex)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := DecodeBlockHeader(raw[:HeaderSize-1]); !errors.Is(err, ErrTruncated) {
		t.Errorf("79 bytes: error = %v, want ErrTruncated", err)
	}
	if _, err := DecodeBlockHeader(nil); !errors.Is(err, ErrTruncated) {
		t.Errorf("empty input: error = %v, want ErrTruncated", err)
	}
	if _, err := DecodeBlockHeader(append(raw, 0x00)); !errors.Is(err, ErrTrailingBytes) {
		t.Errorf("81 bytes: error = %v, want ErrTrailingBytes", err)
	}
}
