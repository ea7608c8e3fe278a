// Package progress implements the Progress/Checkpoint component: a thin,
// named wrapper over the Persistence Gateway's settings handle, plus the
// replay (destructive reset) operation and its human safety interlock.
package progress

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/roninchain/indexer/internal/constants"
	"github.com/roninchain/indexer/model"
	"github.com/roninchain/indexer/storage"
)

// Checkpoint tracks last_block and largest_block_by_tx_num against a
// Persistence Gateway.
type Checkpoint struct {
	gateway *storage.Gateway
	log     *zap.Logger
}

// New creates a Checkpoint over gateway.
func New(gateway *storage.Gateway, log *zap.Logger) *Checkpoint {
	return &Checkpoint{gateway: gateway, log: log}
}

// LastBlock returns the persisted last_block, or 0 if never set.
func (c *Checkpoint) LastBlock() (model.Block, error) {
	return c.gateway.LastBlock()
}

// Advance records that block has been fully flushed.
func (c *Checkpoint) Advance(ctx context.Context, block model.Block) error {
	return c.gateway.SetLastBlock(ctx, block)
}

// NoteBlockSize updates largest_block_by_tx_num if txNum is a new high.
func (c *Checkpoint) NoteBlockSize(ctx context.Context, block model.Block, txNum int) error {
	return c.gateway.SetLargestBlockByTxNum(ctx, block, txNum)
}

// Replay drops every data collection after a fixed safety delay, then
// re-runs index bootstrap. Intended to be called once, before any walker
// starts.
func (c *Checkpoint) Replay(ctx context.Context) error {
	c.log.Warn("replay requested: all data collections will be dropped",
		zap.Duration("delay", constants.ReplaySafetyDelay))

	select {
	case <-time.After(constants.ReplaySafetyDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := c.gateway.Replay(ctx); err != nil {
		return err
	}
	c.log.Info("replay complete: collections dropped and indexes rebuilt")
	return nil
}
