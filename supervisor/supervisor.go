// Package supervisor implements the Range Planner & Supervisor component:
// it resolves [start, stop] from configuration and chain head, splits the
// range into fixed-size chunks, and runs one walker per chunk concurrently.
package supervisor

import (
	"context"
	"fmt"
	"math/big"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"go.uber.org/zap"

	"github.com/roninchain/indexer/client"
	"github.com/roninchain/indexer/internal/constants"
	"github.com/roninchain/indexer/metrics"
	"github.com/roninchain/indexer/model"
	"github.com/roninchain/indexer/progress"
	"github.com/roninchain/indexer/registry"
	"github.com/roninchain/indexer/storage"
	"github.com/roninchain/indexer/walker"
)

// Config resolves the planner's inputs.
type Config struct {
	StartBlock model.Block // 0 => default 1
	StopBlock  model.Block // 0 => chain head - ReorgSafetyOffset
	Threads    int         // 0 => auto (min(cores, UpperThreadLimit))
	EmptyLogs  bool
	DryRun     bool
	Features   walker.Features
}

// Supervisor owns the top-level planning and fan-out of chunk workers.
type Supervisor struct {
	client   *client.Client
	gateway  *storage.Gateway
	registry *registry.Registry
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// New creates a Supervisor. m may be nil, in which case no metrics are
// recorded.
func New(c *client.Client, gateway *storage.Gateway, reg *registry.Registry, m *metrics.Metrics, log *zap.Logger) *Supervisor {
	return &Supervisor{client: c, gateway: gateway, registry: reg, metrics: m, log: log}
}

// observeRPC times fn and records it against RPCLatency under method.
func (s *Supervisor) observeRPC(method string, fn func() error) error {
	start := time.Now()
	err := fn()
	if s.metrics != nil {
		s.metrics.RPCLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}
	return err
}

// chunk is one inclusive block range assigned to a single walker.
type chunk struct {
	start, stop model.Block
}

// Run resolves the range, splits it into chunks, and runs one walker per
// chunk to completion. It returns the first walker error, after all
// walkers have been joined.
func (s *Supervisor) Run(ctx context.Context, cfg Config) error {
	start, stop, err := s.resolveRange(ctx, cfg)
	if err != nil {
		return err
	}

	if start > stop {
		s.log.Info("offset not large enough, exiting", zap.Uint64("start", start), zap.Uint64("stop", stop))
		return nil
	}

	parallelism := effectiveParallelism(cfg.Threads)
	chunkSize := chunkSize(start, stop, parallelism)
	chunks := planChunks(start, stop, chunkSize)

	s.log.Info("planned chunks",
		zap.Uint64("start", start), zap.Uint64("stop", stop),
		zap.Int("parallelism", parallelism), zap.Uint64("chunk_size", chunkSize),
		zap.Int("chunks", len(chunks)),
	)

	var chainID *big.Int
	if err := s.observeRPC("eth_chainId", func() error {
		var err error
		chainID, err = s.client.ChainID(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("supervisor: fetching chain id: %w", err)
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(parallelism)

	for _, c := range chunks {
		c := c
		group.Go(func() error {
			return s.runChunk(gctx, c, cfg, chainID)
		})
	}

	return group.Wait()
}

func (s *Supervisor) runChunk(ctx context.Context, c chunk, cfg Config, chainID *big.Int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("supervisor: chunk [%d,%d] failed: %v", c.start, c.stop, r)
		}
	}()

	cp := progress.New(s.gateway, s.log)
	w := walker.New(s.client, s.gateway, cp, s.registry, cfg.Features, cfg.DryRun, chainID, s.metrics, s.log)
	return w.Run(ctx, c.start, c.stop, cfg.EmptyLogs)
}

func (s *Supervisor) resolveRange(ctx context.Context, cfg Config) (model.Block, model.Block, error) {
	start := cfg.StartBlock
	if start == 0 {
		start = constants.DefaultStartBlock
	}

	stop := cfg.StopBlock
	if stop == 0 {
		var head uint64
		if err := s.observeRPC("eth_blockNumber", func() error {
			var err error
			head, err = s.client.LatestBlockNumber(ctx)
			return err
		}); err != nil {
			return 0, 0, fmt.Errorf("supervisor: fetching chain head: %w", err)
		}
		if head < constants.ReorgSafetyOffset {
			return start, 0, nil
		}
		stop = head - constants.ReorgSafetyOffset
	}

	return start, stop, nil
}

// effectiveParallelism bounds the configured thread count by available
// cores and UpperThreadLimit. A configured value of 0 auto-detects.
func effectiveParallelism(configured int) int {
	cores := runtime.NumCPU()
	p := configured
	if p <= 0 {
		p = cores
	}
	if p > cores {
		p = cores
	}
	if p > constants.UpperThreadLimit {
		p = constants.UpperThreadLimit
	}
	if p < 1 {
		p = 1
	}
	return p
}

// chunkSize picks C = DefaultChunkBudget / P, at least 1 and never larger
// than the range itself.
func chunkSize(start, stop model.Block, parallelism int) model.Block {
	c := model.Block(constants.DefaultChunkBudget / parallelism)
	span := stop - start + 1
	if c == 0 {
		c = 1
	}
	if c > span {
		c = span
	}
	return c
}

// planChunks splits [start, stop] into inclusive chunks of size c, the
// final chunk truncated at stop.
func planChunks(start, stop, c model.Block) []chunk {
	var chunks []chunk
	for s := start; s <= stop; s += c {
		e := s + c - 1
		if e > stop {
			e = stop
		}
		chunks = append(chunks, chunk{start: s, stop: e})
	}
	return chunks
}
