package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/jessevdk/go-flags"

	"github.com/blocknetic/esplora/internal/bitcoin"
	"github.com/blocknetic/esplora/internal/clock"
	"github.com/blocknetic/esplora/internal/esplora"
)

func registerCommands(parser *flags.Parser) {
	mustAdd := func(name, short string, cmd interface{}) {
		if _, err := parser.AddCommand(name, short, "", cmd); err != nil {
			panic("register command " + name + ": " + err.Error())
		}
	}

	mustAdd("gettx", "Get raw transaction by id", &getTxCmd{})
	mustAdd("gettxinfo", "Get transaction summary by id", &getTxInfoCmd{})
	mustAdd("gettxstatus", "Get transaction confirmation status", &getTxStatusCmd{})
	mustAdd("gettxatblockindex", "Get transaction id at a block index", &getTxAtBlockIndexCmd{})
	mustAdd("getheader", "Get block header by block hash", &getHeaderCmd{})
	mustAdd("getblockstatus", "Get block status by block hash", &getBlockStatusCmd{})
	mustAdd("getblock", "Get block by block hash", &getBlockCmd{})
	mustAdd("getmerkleproof", "Get and verify a transaction merkle proof", &getMerkleProofCmd{})
	mustAdd("getmerkleblock", "Get and verify a merkle block inclusion proof", &getMerkleBlockCmd{})
	mustAdd("getoutputstatus", "Get output spending status", &getOutputStatusCmd{})
	mustAdd("broadcast", "Broadcast a raw transaction", &broadcastCmd{})
	mustAdd("gettip", "Get best block hash and height", &getTipCmd{})
	mustAdd("getblockhash", "Get block hash at height", &getBlockHashCmd{})
	mustAdd("getfeeestimates", "Get fee estimates by confirmation target", &getFeeEstimatesCmd{})
	mustAdd("getscripthashtxs", "Get confirmed history for an address or script hash", &getScriptHashTxsCmd{})
	mustAdd("getblocks", "Get recent block summaries", &getBlocksCmd{})
	mustAdd("getchain", "Fetch recent headers and verify their chain linkage", &getChainCmd{})
	mustAdd("waittx", "Wait until a transaction confirms", &waitTxCmd{})
}

func parseHashArg(name, s string) (chainhash.Hash, error) {
	if len(s) != chainhash.HashSize*2 {
		return chainhash.Hash{}, fmt.Errorf("%s must be %d hex chars", name, chainhash.HashSize*2)
	}
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("invalid %s: %w", name, err)
	}
	return *h, nil
}

func printStatus(status *esplora.TxStatus) {
	fmt.Printf("confirmed: %t\n", status.Confirmed)
	if status.Confirmed {
		fmt.Printf("block_height: %d\n", *status.BlockHeight)
		fmt.Printf("block_hash: %s\n", status.BlockHash)
		fmt.Printf("block_time: %s\n", status.BlockTime)
	}
}

type getTxCmd struct {
	Args struct {
		TxID string `positional-arg-name:"txid" required:"true"`
	} `positional-args:"true"`
}

func (cmd *getTxCmd) Execute([]string) error {
	return run(func(ctx context.Context, client *esplora.Client) error {
		txid, err := parseHashArg("txid", cmd.Args.TxID)
		if err != nil {
			return err
		}
		tx, err := client.GetTx(ctx, txid)
		if err != nil {
			return err
		}
		fmt.Println(hex.EncodeToString(bitcoin.EncodeTransaction(tx)))
		return nil
	})
}

type getTxInfoCmd struct {
	Args struct {
		TxID string `positional-arg-name:"txid" required:"true"`
	} `positional-args:"true"`
}

func (cmd *getTxInfoCmd) Execute([]string) error {
	return run(func(ctx context.Context, client *esplora.Client) error {
		txid, err := parseHashArg("txid", cmd.Args.TxID)
		if err != nil {
			return err
		}
		tx, err := client.GetTxInfo(ctx, txid)
		if err != nil {
			return err
		}
		fmt.Printf("txid: %s\n", tx.TxID)
		fmt.Printf("version: %d\n", tx.Version)
		fmt.Printf("locktime: %d\n", tx.LockTime)
		fmt.Printf("size: %d\n", tx.Size)
		fmt.Printf("weight: %d\n", tx.Weight)
		fmt.Printf("fee: %d\n", tx.Fee)
		fmt.Printf("inputs: %d\n", len(tx.Inputs))
		for i := range tx.Inputs {
			in := &tx.Inputs[i]
			fmt.Printf("  %d: %s:%d\n", i, in.PrevTxID, in.PrevIndex)
		}
		fmt.Printf("outputs: %d\n", len(tx.Outputs))
		for i := range tx.Outputs {
			out := &tx.Outputs[i]
			fmt.Printf("  %d: %d sat %s %s\n", i, out.Value, out.ScriptType, out.Address)
		}
		printStatus(&tx.Status)
		return nil
	})
}

type getTxStatusCmd struct {
	Args struct {
		TxID string `positional-arg-name:"txid" required:"true"`
	} `positional-args:"true"`
}

func (cmd *getTxStatusCmd) Execute([]string) error {
	return run(func(ctx context.Context, client *esplora.Client) error {
		txid, err := parseHashArg("txid", cmd.Args.TxID)
		if err != nil {
			return err
		}
		status, err := client.GetTxStatus(ctx, txid)
		if err != nil {
			return err
		}
		printStatus(status)
		return nil
	})
}

type getTxAtBlockIndexCmd struct {
	Args struct {
		Hash  string `positional-arg-name:"hash" required:"true"`
		Index uint32 `positional-arg-name:"index"`
	} `positional-args:"true"`
}

func (cmd *getTxAtBlockIndexCmd) Execute([]string) error {
	return run(func(ctx context.Context, client *esplora.Client) error {
		hash, err := parseHashArg("block hash", cmd.Args.Hash)
		if err != nil {
			return err
		}
		txid, err := client.GetTxIDAtBlockIndex(ctx, hash, cmd.Args.Index)
		if err != nil {
			return err
		}
		fmt.Println(txid)
		return nil
	})
}

type getHeaderCmd struct {
	Args struct {
		Hash string `positional-arg-name:"hash" required:"true"`
	} `positional-args:"true"`
}

func (cmd *getHeaderCmd) Execute([]string) error {
	return run(func(ctx context.Context, client *esplora.Client) error {
		hash, err := parseHashArg("block hash", cmd.Args.Hash)
		if err != nil {
			return err
		}
		header, err := client.GetHeader(ctx, hash)
		if err != nil {
			return err
		}
		fmt.Printf("hash: %s\n", header.BlockHash())
		fmt.Printf("version: %d\n", header.Version)
		fmt.Printf("prev_block: %s\n", header.PrevBlock)
		fmt.Printf("merkle_root: %s\n", header.MerkleRoot)
		fmt.Printf("timestamp: %d\n", header.Timestamp)
		fmt.Printf("bits: %08x\n", header.Bits)
		fmt.Printf("nonce: %d\n", header.Nonce)
		return nil
	})
}

type getBlockStatusCmd struct {
	Args struct {
		Hash string `positional-arg-name:"hash" required:"true"`
	} `positional-args:"true"`
}

func (cmd *getBlockStatusCmd) Execute([]string) error {
	return run(func(ctx context.Context, client *esplora.Client) error {
		hash, err := parseHashArg("block hash", cmd.Args.Hash)
		if err != nil {
			return err
		}
		status, err := client.GetBlockStatus(ctx, hash)
		if err != nil {
			return err
		}
		fmt.Printf("in_best_chain: %t\n", status.InBestChain)
		if status.Height != nil {
			fmt.Printf("height: %d\n", *status.Height)
		}
		if status.NextBest != nil {
			fmt.Printf("next_best: %s\n", status.NextBest)
		}
		return nil
	})
}

type getBlockCmd struct {
	Args struct {
		Hash string `positional-arg-name:"hash" required:"true"`
	} `positional-args:"true"`
}

func (cmd *getBlockCmd) Execute([]string) error {
	return run(func(ctx context.Context, client *esplora.Client) error {
		hash, err := parseHashArg("block hash", cmd.Args.Hash)
		if err != nil {
			return err
		}
		block, err := client.GetBlock(ctx, hash)
		if err != nil {
			return err
		}
		for _, tx := range block.Transactions {
			fmt.Println(tx.TxID())
		}
		return nil
	})
}

type getMerkleProofCmd struct {
	Args struct {
		TxID string `positional-arg-name:"txid" required:"true"`
	} `positional-args:"true"`
}

func (cmd *getMerkleProofCmd) Execute([]string) error {
	return run(func(ctx context.Context, client *esplora.Client) error {
		txid, err := parseHashArg("txid", cmd.Args.TxID)
		if err != nil {
			return err
		}
		proof, err := client.GetMerkleProof(ctx, txid)
		if err != nil {
			return err
		}
		fmt.Printf("block_height: %d\n", proof.BlockHeight)
		fmt.Printf("pos: %d\n", proof.Pos)
		for i := range proof.Siblings {
			fmt.Printf("merkle[%d]: %s\n", i, proof.Siblings[i])
		}

		// Check the proof against the header of the confirming block.
		status, err := client.GetTxStatus(ctx, txid)
		if err != nil {
			return err
		}
		if !status.Confirmed {
			return fmt.Errorf("transaction %s is unconfirmed, proof is unverifiable", txid)
		}
		header, err := client.GetHeader(ctx, *status.BlockHash)
		if err != nil {
			return err
		}
		if !bitcoin.VerifyMerkleProof(txid, proof.Pos, proof.Siblings, header.MerkleRoot) {
			return fmt.Errorf("merkle proof for %s does not match header merkle root", txid)
		}
		fmt.Println("verified: true")
		return nil
	})
}

type getMerkleBlockCmd struct {
	Args struct {
		TxID string `positional-arg-name:"txid" required:"true"`
	} `positional-args:"true"`
}

func (cmd *getMerkleBlockCmd) Execute([]string) error {
	return run(func(ctx context.Context, client *esplora.Client) error {
		txid, err := parseHashArg("txid", cmd.Args.TxID)
		if err != nil {
			return err
		}
		mb, err := client.GetMerkleBlock(ctx, txid)
		if err != nil {
			return err
		}
		matches, indices, err := mb.ExtractMatches()
		if err != nil {
			return err
		}
		fmt.Printf("block: %s\n", mb.Header.BlockHash())
		fmt.Printf("total_txs: %d\n", mb.Total)
		for i := range matches {
			fmt.Printf("match[%d]: %s at index %d\n", i, matches[i], indices[i])
		}
		return nil
	})
}

type getOutputStatusCmd struct {
	Args struct {
		TxID string `positional-arg-name:"txid" required:"true"`
		Vout uint32 `positional-arg-name:"vout"`
	} `positional-args:"true"`
}

func (cmd *getOutputStatusCmd) Execute([]string) error {
	return run(func(ctx context.Context, client *esplora.Client) error {
		txid, err := parseHashArg("txid", cmd.Args.TxID)
		if err != nil {
			return err
		}
		status, err := client.GetOutputStatus(ctx, txid, cmd.Args.Vout)
		if err != nil {
			return err
		}
		fmt.Printf("spent: %t\n", status.Spent)
		if status.Spent {
			fmt.Printf("spending_txid: %s\n", status.TxID)
			fmt.Printf("spending_vin: %d\n", *status.Vin)
			if status.Status != nil {
				printStatus(status.Status)
			}
		}
		return nil
	})
}

type broadcastCmd struct {
	Args struct {
		TxHex string `positional-arg-name:"tx-hex" required:"true"`
	} `positional-args:"true"`
}

func (cmd *broadcastCmd) Execute([]string) error {
	return run(func(ctx context.Context, client *esplora.Client) error {
		txid, err := client.BroadcastHex(ctx, cmd.Args.TxHex)
		if err != nil {
			return err
		}
		fmt.Println(txid)
		return nil
	})
}

type getTipCmd struct{}

func (cmd *getTipCmd) Execute([]string) error {
	return run(func(ctx context.Context, client *esplora.Client) error {
		tip, err := client.GetTip(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("hash: %s\n", tip.Hash)
		fmt.Printf("height: %d\n", tip.Height)
		return nil
	})
}

type getBlockHashCmd struct {
	Args struct {
		Height uint32 `positional-arg-name:"height"`
	} `positional-args:"true"`
}

func (cmd *getBlockHashCmd) Execute([]string) error {
	return run(func(ctx context.Context, client *esplora.Client) error {
		hash, err := client.GetBlockHash(ctx, cmd.Args.Height)
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil
	})
}

type getFeeEstimatesCmd struct{}

func (cmd *getFeeEstimatesCmd) Execute([]string) error {
	return run(func(ctx context.Context, client *esplora.Client) error {
		estimates, err := client.GetFeeEstimates(ctx)
		if err != nil {
			return err
		}
		targets := make([]int, 0, len(estimates))
		for target := range estimates {
			targets = append(targets, target)
		}
		sort.Ints(targets)
		for _, target := range targets {
			fmt.Printf("%d: %s sat/vB\n", target, strconv.FormatFloat(estimates[target], 'f', -1, 64))
		}
		return nil
	})
}

type getScriptHashTxsCmd struct {
	LastSeen string `long:"last-seen" description:"page after this txid"`
	Args     struct {
		Target string `positional-arg-name:"address-or-scripthash" required:"true"`
	} `positional-args:"true"`
}

func (cmd *getScriptHashTxsCmd) Execute([]string) error {
	return run(func(ctx context.Context, client *esplora.Client) error {
		scripthash, err := esplora.ResolveHistoryTarget(cmd.Args.Target, chainParams())
		if err != nil {
			return err
		}
		var lastSeen *chainhash.Hash
		if cmd.LastSeen != "" {
			parsed, err := parseHashArg("last-seen txid", cmd.LastSeen)
			if err != nil {
				return err
			}
			lastSeen = &parsed
		}
		txs, err := client.ScriptHashTxs(ctx, scripthash, lastSeen)
		if err != nil {
			return err
		}
		for _, tx := range txs {
			fmt.Println(tx.TxID)
		}
		return nil
	})
}

type getBlocksCmd struct {
	Height *uint32 `long:"start-height" short:"s" description:"height to fetch blocks from (default: the tip)"`
}

func (cmd *getBlocksCmd) Execute([]string) error {
	return run(func(ctx context.Context, client *esplora.Client) error {
		blocks, err := client.GetBlocks(ctx, cmd.Height)
		if err != nil {
			return err
		}
		for _, block := range blocks {
			fmt.Printf("%d %s txs=%d %s\n", block.Height, block.Hash, block.TxCount, block.Timestamp.Format("2006-01-02T15:04:05Z"))
		}
		return nil
	})
}

type getChainCmd struct {
	Height  *uint32 `long:"start-height" short:"s" description:"height to fetch blocks from (default: the tip)"`
	Workers int     `long:"workers" default:"4" description:"concurrent header fetches"`
}

// Execute fetches one page of block summaries, re-fetches every header
// concurrently and checks that each header hashes to the summary's id and
// links to its predecessor.
func (cmd *getChainCmd) Execute([]string) error {
	return run(func(ctx context.Context, client *esplora.Client) error {
		blocks, err := client.GetBlocks(ctx, cmd.Height)
		if err != nil {
			return err
		}
		hashes := make([]chainhash.Hash, len(blocks))
		for i, block := range blocks {
			hashes[i] = block.Hash
		}
		headers, err := client.GetHeaders(ctx, hashes, cmd.Workers)
		if err != nil {
			return err
		}
		// Summaries run newest first, so block i+1 is block i's parent.
		for i, header := range headers {
			if got := header.BlockHash(); got != blocks[i].Hash {
				return fmt.Errorf("block %d: header hashes to %s, summary says %s", blocks[i].Height, got, blocks[i].Hash)
			}
			if i+1 < len(blocks) && header.PrevBlock != blocks[i+1].Hash {
				return fmt.Errorf("block %d does not link to block %d", blocks[i].Height, blocks[i+1].Height)
			}
			fmt.Printf("%d %s ok\n", blocks[i].Height, blocks[i].Hash)
		}
		return nil
	})
}

type waitTxCmd struct {
	Interval uint `long:"interval" default:"5" description:"poll interval in seconds"`
	Args     struct {
		TxID string `positional-arg-name:"txid" required:"true"`
	} `positional-args:"true"`
}

func (cmd *waitTxCmd) Execute([]string) error {
	return run(func(ctx context.Context, client *esplora.Client) error {
		txid, err := parseHashArg("txid", cmd.Args.TxID)
		if err != nil {
			return err
		}
		interval := time.Duration(cmd.Interval) * time.Second
		if interval <= 0 {
			interval = time.Second
		}
		return clock.Poll(ctx, interval, func(ctx context.Context) (bool, error) {
			status, err := client.GetTxStatus(ctx, txid)
			if err != nil {
				return false, err
			}
			if !status.Confirmed {
				return false, nil
			}
			printStatus(status)
			return true, nil
		})
	})
}
