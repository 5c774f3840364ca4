package esplora

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"github.com/blocknetic/esplora/internal/bitcoin"
)

// DefaultBaseURL is the public Blockstream mainnet instance.
const DefaultBaseURL = "https://blockstream.info/api"

// Metrics observes one finished client operation.
type Metrics interface {
	Observe(operation string, err error, started time.Time)
}

type noopMetrics struct{}

func (noopMetrics) Observe(string, error, time.Time) {}

// Client issues typed operations against one Esplora base URL. It carries
// no mutable state between calls and is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
	limiter ratelimit.Limiter
	metrics Metrics
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default pooled HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.http = httpClient }
}

// WithLogger attaches a logger; requests are logged at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRateLimit caps outbound requests per second. Public Esplora instances
// throttle aggressive clients, so batch callers should set this.
func WithRateLimit(rps int) Option {
	return func(c *Client) { c.limiter = ratelimit.New(rps) }
}

// WithMetrics attaches a per-operation observer.
func WithMetrics(m Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a Client for the given base URL. An empty URL selects
// DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	for len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	c := &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		logger:  zap.NewNop(),
		limiter: ratelimit.NewUnlimited(),
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// call runs one catalog operation end to end: build the request, send it,
// surface non-2xx as RemoteError, and hand back the full body. Decoding is
// left to the caller so a failed decode can never return a partial value.
func (c *Client) call(ctx context.Context, op string, params map[string]string, reqBody []byte) (body []byte, err error) {
	ep, ok := catalog[op]
	if !ok {
		return nil, fmt.Errorf("esplora: unknown operation %q", op)
	}
	path, err := ep.buildPath(params)
	if err != nil {
		return nil, err
	}
	url := c.baseURL + path

	started := time.Now()
	defer func() {
		c.metrics.Observe(op, err, started)
	}()

	var reqReader io.Reader
	if reqBody != nil {
		reqReader = bytes.NewReader(reqBody)
	}
	req, err := http.NewRequestWithContext(ctx, ep.method, url, reqReader)
	if err != nil {
		return nil, fmt.Errorf("esplora: build request for %s: %w", op, err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "text/plain")
	}

	c.limiter.Take()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Operation: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Operation: op, Err: err}
	}

	c.logger.Debug("esplora request",
		zap.String("operation", op),
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}
	return body, nil
}

func txidParams(txid chainhash.Hash) map[string]string {
	return map[string]string{"txid": txid.String()}
}

func blockParams(hash chainhash.Hash) map[string]string {
	return map[string]string{"hash": hash.String()}
}

// GetTx fetches the raw transaction and consensus-decodes it.
func (c *Client) GetTx(ctx context.Context, txid chainhash.Hash) (*bitcoin.Transaction, error) {
	body, err := c.call(ctx, "get_tx_raw", txidParams(txid), nil)
	if err != nil {
		return nil, err
	}
	return bitcoin.DecodeTransaction(body)
}

// GetTxInfo fetches the structured JSON summary of a transaction.
func (c *Client) GetTxInfo(ctx context.Context, txid chainhash.Hash) (*Tx, error) {
	body, err := c.call(ctx, "get_tx_info", txidParams(txid), nil)
	if err != nil {
		return nil, err
	}
	var dto txJSON
	if err := decodeJSON(body, &dto); err != nil {
		return nil, err
	}
	return dto.convert()
}

// GetTxStatus fetches a transaction's confirmation status.
func (c *Client) GetTxStatus(ctx context.Context, txid chainhash.Hash) (*TxStatus, error) {
	body, err := c.call(ctx, "get_tx_status", txidParams(txid), nil)
	if err != nil {
		return nil, err
	}
	var dto txStatusJSON
	if err := decodeJSON(body, &dto); err != nil {
		return nil, err
	}
	status, err := dto.convert("status")
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// GetTxIDAtBlockIndex returns the id of the transaction at the given index
// within a block.
func (c *Client) GetTxIDAtBlockIndex(ctx context.Context, blockHash chainhash.Hash, index uint32) (chainhash.Hash, error) {
	params := blockParams(blockHash)
	params["index"] = strconv.FormatUint(uint64(index), 10)
	body, err := c.call(ctx, "get_txid_at_index", params, nil)
	if err != nil {
		return chainhash.Hash{}, err
	}
	return parseTextHash(body)
}

// GetHeader fetches and decodes the 80-byte header of a block.
func (c *Client) GetHeader(ctx context.Context, blockHash chainhash.Hash) (*bitcoin.BlockHeader, error) {
	body, err := c.call(ctx, "get_block_header", blockParams(blockHash), nil)
	if err != nil {
		return nil, err
	}
	raw, err := parseHexBody(body)
	if err != nil {
		return nil, err
	}
	return bitcoin.DecodeBlockHeader(raw)
}

// GetBlockStatus fetches a block's position relative to the best chain.
func (c *Client) GetBlockStatus(ctx context.Context, blockHash chainhash.Hash) (*BlockStatus, error) {
	body, err := c.call(ctx, "get_block_status", blockParams(blockHash), nil)
	if err != nil {
		return nil, err
	}
	var dto blockStatusJSON
	if err := decodeJSON(body, &dto); err != nil {
		return nil, err
	}
	return dto.convert()
}

// GetBlock fetches the raw block and consensus-decodes header and
// transactions.
func (c *Client) GetBlock(ctx context.Context, blockHash chainhash.Hash) (*bitcoin.Block, error) {
	body, err := c.call(ctx, "get_block_raw", blockParams(blockHash), nil)
	if err != nil {
		return nil, err
	}
	return bitcoin.DecodeBlock(body)
}

// GetMerkleProof fetches the merkle inclusion proof for a confirmed
// transaction. Use VerifyMerkleProof or bitcoin.ComputeMerkleRoot to check
// it against the block header.
func (c *Client) GetMerkleProof(ctx context.Context, txid chainhash.Hash) (*MerkleProof, error) {
	body, err := c.call(ctx, "get_merkle_proof", txidParams(txid), nil)
	if err != nil {
		return nil, err
	}
	var dto merkleProofJSON
	if err := decodeJSON(body, &dto); err != nil {
		return nil, err
	}
	return dto.convert()
}

// GetMerkleBlock fetches the BIP-37 merkle block proving the transaction's
// inclusion and decodes it. ExtractMatches on the result recomputes and
// checks the root.
func (c *Client) GetMerkleBlock(ctx context.Context, txid chainhash.Hash) (*bitcoin.MerkleBlock, error) {
	body, err := c.call(ctx, "get_merkleblock_proof", txidParams(txid), nil)
	if err != nil {
		return nil, err
	}
	raw, err := parseHexBody(body)
	if err != nil {
		return nil, err
	}
	return bitcoin.DecodeMerkleBlock(raw)
}

// GetOutputStatus reports whether output vout of the given transaction has
// been spent, and by what.
func (c *Client) GetOutputStatus(ctx context.Context, txid chainhash.Hash, vout uint32) (*OutputStatus, error) {
	params := txidParams(txid)
	params["vout"] = strconv.FormatUint(uint64(vout), 10)
	body, err := c.call(ctx, "get_output_status", params, nil)
	if err != nil {
		return nil, err
	}
	var dto outputStatusJSON
	if err := decodeJSON(body, &dto); err != nil {
		return nil, err
	}
	return dto.convert()
}

// Broadcast submits a raw transaction and returns the id the server
// assigned. The bytes pass through unvalidated; acceptance is the server's
// call.
func (c *Client) Broadcast(ctx context.Context, rawTx []byte) (chainhash.Hash, error) {
	if len(rawTx) == 0 {
		return chainhash.Hash{}, fmt.Errorf("%w: raw transaction", ErrMissingParam)
	}
	payload := []byte(hex.EncodeToString(rawTx))
	body, err := c.call(ctx, "broadcast", nil, payload)
	if err != nil {
		return chainhash.Hash{}, err
	}
	return parseTextHash(body)
}

// BroadcastHex is Broadcast for a hex-encoded transaction.
func (c *Client) BroadcastHex(ctx context.Context, txHex string) (chainhash.Hash, error) {
	raw, err := hex.DecodeString(txHex)
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("%w: transaction hex: %v", bitcoin.ErrBadEncoding, err)
	}
	return c.Broadcast(ctx, raw)
}

// GetTip returns the best block hash and height. The API exposes them as
// two separate plain-text endpoints; the two reads are combined into one
// result and may straddle a new block on a busy chain.
func (c *Client) GetTip(ctx context.Context) (*Tip, error) {
	hashBody, err := c.call(ctx, "get_tip_hash", nil, nil)
	if err != nil {
		return nil, err
	}
	hash, err := parseTextHash(hashBody)
	if err != nil {
		return nil, err
	}
	heightBody, err := c.call(ctx, "get_tip_height", nil, nil)
	if err != nil {
		return nil, err
	}
	height, err := parseTextUint32(heightBody)
	if err != nil {
		return nil, err
	}
	return &Tip{Hash: hash, Height: height}, nil
}

// GetBlockHash returns the hash of the block at the given height.
func (c *Client) GetBlockHash(ctx context.Context, height uint32) (chainhash.Hash, error) {
	params := map[string]string{"height": strconv.FormatUint(uint64(height), 10)}
	body, err := c.call(ctx, "get_block_hash", params, nil)
	if err != nil {
		return chainhash.Hash{}, err
	}
	return parseTextHash(body)
}

// GetFeeEstimates returns the server's fee rate estimates keyed by
// confirmation target in blocks.
func (c *Client) GetFeeEstimates(ctx context.Context) (FeeEstimates, error) {
	body, err := c.call(ctx, "get_fee_estimates", nil, nil)
	if err != nil {
		return nil, err
	}
	var raw map[string]float64
	if err := decodeJSON(body, &raw); err != nil {
		return nil, err
	}
	return convertFeeEstimates(raw)
}

// GetBlocks returns recent block summaries ending at the tip, or at the
// given height when non-nil. The page length is server-defined; callers
// must not assume a fixed size.
func (c *Client) GetBlocks(ctx context.Context, height *uint32) ([]*BlockSummary, error) {
	op := "get_blocks"
	var params map[string]string
	if height != nil {
		op = "get_blocks_at"
		params = map[string]string{"height": strconv.FormatUint(uint64(*height), 10)}
	}
	body, err := c.call(ctx, op, params, nil)
	if err != nil {
		return nil, err
	}
	var dtos []blockSummaryJSON
	if err := decodeJSON(body, &dtos); err != nil {
		return nil, err
	}
	summaries := make([]*BlockSummary, len(dtos))
	for i := range dtos {
		summary, err := dtos[i].convert(fmt.Sprintf("blocks[%d]", i))
		if err != nil {
			return nil, err
		}
		summaries[i] = summary
	}
	return summaries, nil
}
