package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/roninchain/indexer/client"
	"github.com/roninchain/indexer/internal/api"
	"github.com/roninchain/indexer/internal/config"
	"github.com/roninchain/indexer/internal/constants"
	"github.com/roninchain/indexer/internal/logger"
	"github.com/roninchain/indexer/metrics"
	"github.com/roninchain/indexer/progress"
	"github.com/roninchain/indexer/registry"
	"github.com/roninchain/indexer/storage"
	"github.com/roninchain/indexer/supervisor"
	"github.com/roninchain/indexer/walker"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to configuration file (YAML)")
		showVer    = flag.Bool("version", false, "Show version information and exit")

		dbURI  = flag.String("db-uri", "", "Persistence gateway URI (pebble directory path)")
		dbName = flag.String("db-name", "", "Database name")

		web3Hostname = flag.String("web3-hostname", "", "Blockchain RPC endpoint (ws://, wss://, http://, https://)")

		replay    = flag.Bool("replay", false, "Drop all data collections and rebuild indexes before indexing")
		emptyLogs = flag.Bool("empty-logs", false, "Emit a log line for zero-transaction blocks")
		debug     = flag.Bool("debug", false, "Verbose logging; the indexer does not write to the database")

		startBlock = flag.Uint64("start-block", 0, "Block height to start indexing from (0 => 1)")
		stopBlock  = flag.Uint64("stop-block", 0, "Block height to stop indexing at (0 => head - 50)")

		featureERCTransfers = flag.Bool("feature-erc-transfers", true, "Decode and persist ERC-20/721/1155 transfers")
		featureERC721Sales  = flag.Bool("feature-erc-721-sales", true, "Decode and persist marketplace sales")
		featureTransactions = flag.Bool("feature-transactions", true, "Persist raw transaction records")
		featureWalletUpdate = flag.Bool("feature-wallet-updates", false, "Upsert wallet last-seen records")

		threads = flag.Int("threads", 0, "Chunk worker parallelism (0 => auto)")

		logLevel  = flag.String("log-level", "", "Log level override (debug, info, warn, error)")
		logFormat = flag.String("log-format", "", "Log format override (json, console)")

		enableAPI = flag.Bool("api", false, "Enable the ops HTTP server (/metrics, /healthz)")
		apiHost   = flag.String("api-host", "", "Ops server host")
		apiPort   = flag.Int("api-port", 0, "Ops server port")
	)
	flag.Parse()

	if *showVer {
		fmt.Printf("indexer %s (%s)\n", version, commit)
		return
	}

	if err := run(runConfig{
		configFile: *configFile,
		dbURI:      *dbURI,
		dbName:     *dbName,
		rpcURL:     *web3Hostname,
		replay:     *replay,
		emptyLogs:  *emptyLogs,
		debug:      *debug,
		startBlock: *startBlock,
		stopBlock:  *stopBlock,
		features: walker.Features{
			ERCTransfers: *featureERCTransfers,
			ERC721Sales:  *featureERC721Sales,
			Transactions: *featureTransactions,
			WalletUpdate: *featureWalletUpdate,
		},
		threads:   *threads,
		logLevel:  *logLevel,
		logFormat: *logFormat,
		enableAPI: *enableAPI,
		apiHost:   *apiHost,
		apiPort:   *apiPort,
	}); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

type runConfig struct {
	configFile string
	dbURI      string
	dbName     string
	rpcURL     string
	replay     bool
	emptyLogs  bool
	debug      bool
	startBlock uint64
	stopBlock  uint64
	features   walker.Features
	threads    int
	logLevel   string
	logFormat  string
	enableAPI  bool
	apiHost    string
	apiPort    int
}

func run(rc runConfig) error {
	cfg, err := config.Load(rc.configFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if rc.dbURI != "" {
		cfg.Database.URI = rc.dbURI
	}
	if rc.dbName != "" {
		cfg.Database.Name = rc.dbName
	}
	if rc.rpcURL != "" {
		cfg.RPC.Endpoint = rc.rpcURL
	}
	if rc.logLevel != "" {
		cfg.Log.Level = rc.logLevel
	}
	cfg.Log.Debug = rc.debug || cfg.Log.Debug
	if rc.apiHost != "" {
		cfg.API.Host = rc.apiHost
	}
	if rc.apiPort != 0 {
		cfg.API.Port = rc.apiPort
	}
	cfg.API.Enabled = rc.enableAPI || cfg.API.Enabled

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := buildLogger(cfg.Log, rc.logFormat)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rpcClient, err := client.New(ctx, client.Config{Endpoint: cfg.RPC.Endpoint, Timeout: cfg.RPC.Timeout}, logger.WithComponent(log, "client"))
	if err != nil {
		return fmt.Errorf("connecting to RPC endpoint: %w", err)
	}
	defer rpcClient.Close()

	backend, err := storage.OpenPebble(cfg.Database.URI, storage.PebbleOptions{
		CacheSizeMB:  constants.DefaultCacheSize,
		MaxOpenFiles: constants.DefaultMaxOpenFiles,
		WriteBufferMB: constants.DefaultWriteBuffer,
	})
	if err != nil {
		return fmt.Errorf("opening persistence gateway: %w", err)
	}
	defer backend.Close()

	gateway := storage.NewGateway(backend, logger.WithComponent(log, "storage"))
	cp := progress.New(gateway, logger.WithComponent(log, "progress"))

	switch {
	case cfg.Log.Debug:
		// Debug mode writes nothing: no replay drop, no bootstrap markers.
		if rc.replay || cfg.Indexer.Replay {
			log.Warn("debug mode: replay skipped")
		}
	case rc.replay || cfg.Indexer.Replay:
		if err := cp.Replay(ctx); err != nil {
			return fmt.Errorf("replay: %w", err)
		}
	default:
		if err := gateway.Bootstrap(ctx); err != nil {
			return fmt.Errorf("index bootstrap: %w", err)
		}
	}

	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)
	gateway.SetMetrics(m)

	if cfg.API.Enabled {
		srv := api.New(fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port), promReg, logger.WithComponent(log, "api"))
		srv.Start()
		defer func() { _ = srv.Shutdown(context.Background()) }()
	}

	reg := registry.New()
	sup := supervisor.New(rpcClient, gateway, reg, m, logger.WithComponent(log, "supervisor"))

	startBlock := rc.startBlock
	if startBlock == 0 {
		startBlock = cfg.Indexer.StartBlock
	}
	stopBlock := rc.stopBlock
	if stopBlock == 0 {
		stopBlock = cfg.Indexer.StopBlock
	}
	threads := rc.threads
	if threads == 0 {
		threads = cfg.Indexer.Threads
	}

	return sup.Run(ctx, supervisor.Config{
		StartBlock: startBlock,
		StopBlock:  stopBlock,
		Threads:    threads,
		EmptyLogs:  rc.emptyLogs || cfg.Indexer.EmptyLogs,
		DryRun:     cfg.Log.Debug,
		Features:   rc.features,
	})
}

func buildLogger(cfg config.LogConfig, format string) (*zap.Logger, error) {
	logCfg := &logger.Config{
		Level:       cfg.Level,
		Development: cfg.Debug,
		Encoding:    "json",
	}
	if cfg.Debug {
		logCfg.Encoding = "console"
		logCfg.Level = "debug"
	}
	if format != "" {
		logCfg.Encoding = format
	}
	return logger.NewWithConfig(logCfg)
}
