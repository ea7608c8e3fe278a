// Package constants holds process-wide defaults shared across the indexer.
package constants

import "time"

// API / ops server constants
const (
	// DefaultAPIHost is the default ops HTTP server host
	DefaultAPIHost = "localhost"

	// DefaultAPIPort is the default ops HTTP server port
	DefaultAPIPort = 9100

	// DefaultReadTimeout is the default HTTP read timeout
	DefaultReadTimeout = 15 * time.Second

	// DefaultWriteTimeout is the default HTTP write timeout
	DefaultWriteTimeout = 15 * time.Second

	// DefaultIdleTimeout is the default HTTP idle timeout
	DefaultIdleTimeout = 60 * time.Second

	// DefaultShutdownTimeout is the default graceful shutdown timeout
	DefaultShutdownTimeout = 30 * time.Second
)

// Indexer / supervisor constants
const (
	// DefaultQueryTimeout is the default timeout for RPC calls
	DefaultQueryTimeout = 30 * time.Second

	// DefaultStartBlock is the default start height when none is configured
	DefaultStartBlock uint64 = 1

	// ReorgSafetyOffset is the fixed number of blocks behind chain head
	// that is considered safe to index without reorg risk.
	ReorgSafetyOffset uint64 = 50

	// UpperThreadLimit caps configured/auto-detected parallelism.
	UpperThreadLimit = 32

	// DefaultChunkBudget is the total block-height budget divided across
	// the effective parallelism to size a chunk (§4.F default sizing).
	DefaultChunkBudget = 1_000_000

	// ReplaySafetyDelay is the pause before a --replay destructive reset.
	ReplaySafetyDelay = 15 * time.Second
)

// Storage constants (PebbleDB-backed persistence gateway)
const (
	// DefaultCacheSize is the default cache size in MB for PebbleDB
	DefaultCacheSize = 128

	// DefaultMaxOpenFiles is the default maximum number of open files for PebbleDB
	DefaultMaxOpenFiles = 1000

	// DefaultWriteBuffer is the default write buffer size in MB for PebbleDB
	DefaultWriteBuffer = 64
)
