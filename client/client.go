// Package client wraps the go-ethereum RPC/ethclient transport with exactly
// the methods the Block Walker needs.
package client

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// Config configures the RPC client.
type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// Client is a thin wrapper over go-ethereum's ethclient/rpc transport.
type Client struct {
	rpc *rpc.Client
	eth *ethclient.Client
	log *zap.Logger
}

// New dials endpoint (ws://, wss://, http://, https://) and returns a ready
// Client. It emits a warning when an https/wss scheme is used, per §6 —
// plain http/ws is preferred for throughput.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	scheme := strings.SplitN(cfg.Endpoint, "://", 2)[0]
	switch scheme {
	case "ws", "http":
	case "wss", "https":
		log.Warn("using an encrypted RPC scheme; a plain ws/http endpoint would have higher throughput",
			zap.String("endpoint", cfg.Endpoint))
	default:
		return nil, fmt.Errorf("client: unsupported RPC endpoint scheme %q", scheme)
	}

	rc, err := rpc.DialContext(ctx, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", cfg.Endpoint, err)
	}

	return &Client{rpc: rc, eth: ethclient.NewClient(rc), log: log}, nil
}

// ChainID returns the chain's configured chain ID, used to build an
// EIP-155 transaction signer for sender recovery.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("client: eth_chainId: %w", err)
	}
	return id, nil
}

// LatestBlockNumber returns the current chain head height.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("client: eth_blockNumber: %w", err)
	}
	return n, nil
}

// BlockByNumber fetches a block with full transactions.
func (c *Client) BlockByNumber(ctx context.Context, number uint64) (*types.Block, error) {
	block, err := c.eth.BlockByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return nil, fmt.Errorf("client: eth_getBlockByNumber(%d): %w", number, err)
	}
	return block, nil
}

// TransactionReceipt fetches the receipt for hash.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, err := c.eth.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("client: eth_getTransactionReceipt(%s): %w", hash.Hex(), err)
	}
	return receipt, nil
}

// Close releases the underlying transport.
func (c *Client) Close() {
	c.rpc.Close()
}
