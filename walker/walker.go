// Package walker implements the Block Walker: streams a contiguous block
// range, feeding each block's transactions and receipt logs through the
// registry/decoder and into the per-collection write pools, flushing and
// checkpointing at each block boundary.
package walker

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/roninchain/indexer/decode"
	"github.com/roninchain/indexer/metrics"
	"github.com/roninchain/indexer/model"
	"github.com/roninchain/indexer/pool"
	"github.com/roninchain/indexer/progress"
	"github.com/roninchain/indexer/registry"
	"github.com/roninchain/indexer/storage"
)

// Chain is the subset of the RPC client a Walker needs. *client.Client
// satisfies it; tests inject a fake to exercise the decode/pool pipeline
// without a live endpoint.
type Chain interface {
	BlockByNumber(ctx context.Context, number uint64) (*types.Block, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Features toggles the optional per-transaction work a walker performs.
type Features struct {
	ERCTransfers bool
	ERC721Sales  bool
	Transactions bool
	WalletUpdate bool
}

// Walker streams one contiguous block range against the RPC client and
// persistence gateway it is given. The supervisor hands the same client and
// gateway to every walker it starts; only the write pools are per walker.
type Walker struct {
	client   Chain
	gateway  *storage.Gateway
	progress *progress.Checkpoint
	registry *registry.Registry
	features Features
	metrics  *metrics.Metrics
	log      *zap.Logger
	signer   types.Signer

	// dryRun, when true, decodes and logs but never commits to the
	// gateway (the --debug CLI flag's "must not write to the database"
	// requirement).
	dryRun bool
}

// New creates a Walker. chainID is used to build an EIP-155 signer for
// recovering transaction senders. m may be nil, in which case no metrics
// are recorded.
func New(c Chain, gateway *storage.Gateway, cp *progress.Checkpoint, reg *registry.Registry, features Features, dryRun bool, chainID *big.Int, m *metrics.Metrics, log *zap.Logger) *Walker {
	return &Walker{
		client:   c,
		gateway:  gateway,
		progress: cp,
		registry: reg,
		features: features,
		dryRun:   dryRun,
		signer:   types.LatestSignerForChainID(chainID),
		metrics:  m,
		log:      log,
	}
}

// Run streams blocks [rangeStart, rangeStop] inclusive, in ascending order.
func (w *Walker) Run(ctx context.Context, rangeStart, rangeStop model.Block, emptyLogs bool) error {
	for b := rangeStart; b <= rangeStop; b++ {
		if err := w.processBlock(ctx, b, emptyLogs); err != nil {
			return err
		}
	}
	return nil
}

// fetchBlock wraps Chain.BlockByNumber with an RPCLatency observation.
func (w *Walker) fetchBlock(ctx context.Context, height model.Block) (*types.Block, error) {
	start := time.Now()
	block, err := w.client.BlockByNumber(ctx, height)
	if w.metrics != nil {
		w.metrics.RPCLatency.WithLabelValues("eth_getBlockByNumber").Observe(time.Since(start).Seconds())
	}
	return block, err
}

// fetchReceipt wraps Chain.TransactionReceipt with an RPCLatency observation.
func (w *Walker) fetchReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	start := time.Now()
	receipt, err := w.client.TransactionReceipt(ctx, hash)
	if w.metrics != nil {
		w.metrics.RPCLatency.WithLabelValues("eth_getTransactionReceipt").Observe(time.Since(start).Seconds())
	}
	return receipt, err
}

func (w *Walker) processBlock(ctx context.Context, height model.Block, emptyLogs bool) error {
	block, err := w.fetchBlock(ctx, height)
	if err != nil {
		// Transport errors are fatal: the walker cannot make forward
		// progress without the block it was assigned.
		panic(fmt.Sprintf("walker: fetch block %d: %v", height, err))
	}

	timestamp := model.Timestamp(block.Time()) * 1000
	txs := block.Transactions()

	if len(txs) == 0 {
		if emptyLogs {
			w.log.Info("empty block", zap.Uint64("block", height))
		} else {
			w.log.Debug("empty block", zap.Uint64("block", height))
		}
		return w.checkpoint(ctx, height)
	}

	if !w.dryRun {
		if err := w.gateway.SetLargestBlockByTxNum(ctx, height, len(txs)); err != nil {
			return fmt.Errorf("walker: block %d: recording tx count: %w", height, err)
		}
	}

	txPool := pool.New[model.Transaction](w.log).WithMetrics(w.metrics, storage.CollectionTransactions)
	transferPool := pool.New[model.ERCTransfer](w.log).WithMetrics(w.metrics, storage.CollectionERCTransfers)
	transfer1155Pool := pool.New[model.ERC1155Transfer](w.log).WithMetrics(w.metrics, storage.CollectionERC1155Transfers)
	salePool := pool.New[model.Sale](w.log).WithMetrics(w.metrics, storage.CollectionSales)
	walletPool := pool.New[model.Wallet](w.log).WithMetrics(w.metrics, storage.CollectionWallets)

	for _, tx := range txs {
		sender, err := types.Sender(w.signer, tx)
		if err != nil {
			panic(fmt.Sprintf("walker: block %d tx %s: recover sender: %v", height, tx.Hash().Hex(), err))
		}
		from := sender.Hex()
		to := ""
		if tx.To() != nil {
			to = tx.To().Hex()
		}
		hash := tx.Hash().Hex()

		if w.features.WalletUpdate {
			walletPool.AddUpdate(map[string]string{"address": from}, model.Wallet{
				Address:  lowercase(from),
				LastSeen: model.WalletSeen{Block: height, Transaction: lowercase(hash)},
			})
			if to != "" {
				walletPool.AddUpdate(map[string]string{"address": to}, model.Wallet{
					Address:  lowercase(to),
					LastSeen: model.WalletSeen{Block: height, Transaction: lowercase(hash)},
				})
			}
		}

		receipt, err := w.fetchReceipt(ctx, tx.Hash())
		if err != nil {
			panic(fmt.Sprintf("walker: block %d tx %s: fetch receipt: %v", height, hash, err))
		}

		if w.features.ERC721Sales {
			sale, err := decode.Sale(w.registry, receipt.Logs, height, timestamp)
			if err != nil {
				panic(fmt.Sprintf("walker: block %d tx %s: decode sale: %v", height, hash, err))
			}
			if sale != nil {
				salePool.AddInsert(*sale)
			}
		}

		if w.features.ERCTransfers {
			for _, l := range receipt.Logs {
				transfer, transfer1155, err := decode.Transfer(w.registry, l, height)
				if err != nil {
					panic(fmt.Sprintf("walker: block %d tx %s: decode transfer: %v", height, hash, err))
				}
				if transfer != nil {
					transferPool.AddInsert(*transfer)
				}
				if transfer1155 != nil {
					transfer1155Pool.AddInsert(*transfer1155)
				}
			}
		}

		if w.features.Transactions {
			txPool.AddInsert(model.Transaction{
				From:      lowercase(from),
				To:        lowercase(to),
				Hash:      lowercase(hash),
				Block:     height,
				Timestamp: timestamp,
			})
		}
	}

	if w.dryRun {
		w.log.Info("debug mode: skipping commit",
			zap.Uint64("block", height),
			zap.Int("transactions", txPool.Len()),
			zap.Int("erc_transfers", transferPool.Len()),
			zap.Int("erc1155_transfers", transfer1155Pool.Len()),
			zap.Int("sales", salePool.Len()),
			zap.Int("wallet_updates", walletPool.Len()),
		)
		return w.checkpoint(ctx, height)
	}

	// Commit clears each pool, so the summary counts are taken first.
	transferCount, transfer1155Count := transferPool.Len(), transfer1155Pool.Len()
	saleCount, walletCount := salePool.Len(), walletPool.Len()

	if err := txPool.Commit(ctx, w.gateway.Transactions, true); err != nil {
		return fmt.Errorf("walker: block %d: committing transactions: %w", height, err)
	}
	if err := transferPool.Commit(ctx, w.gateway.ERCTransfers, true); err != nil {
		return fmt.Errorf("walker: block %d: committing erc_transfers: %w", height, err)
	}
	if err := transfer1155Pool.Commit(ctx, w.gateway.ERC1155Transfers, true); err != nil {
		return fmt.Errorf("walker: block %d: committing erc1155_transfers: %w", height, err)
	}
	if err := salePool.Commit(ctx, w.gateway.Sales, true); err != nil {
		return fmt.Errorf("walker: block %d: committing erc_sales: %w", height, err)
	}
	if err := walletPool.Commit(ctx, w.gateway.Wallets, true); err != nil {
		return fmt.Errorf("walker: block %d: committing wallets: %w", height, err)
	}

	w.log.Info("block indexed",
		zap.Uint64("block", height),
		zap.Int("transactions", len(txs)),
		zap.Int("erc_transfers", transferCount),
		zap.Int("erc1155_transfers", transfer1155Count),
		zap.Int("sales", saleCount),
		zap.Int("wallet_updates", walletCount),
	)

	return w.checkpoint(ctx, height)
}

func (w *Walker) checkpoint(ctx context.Context, height model.Block) error {
	if w.dryRun {
		return nil
	}
	if err := w.progress.Advance(ctx, height); err != nil {
		return fmt.Errorf("walker: block %d: checkpoint: %w", height, err)
	}
	if w.metrics != nil {
		w.metrics.BlocksIndexed.Inc()
	}
	return nil
}

func lowercase(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
