package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/telosbridge/lzbridge/bridge/aggregator"
	"github.com/telosbridge/lzbridge/bridge/chain"
	"github.com/telosbridge/lzbridge/bridge/config"
	"github.com/telosbridge/lzbridge/bridge/protocols"
	"github.com/telosbridge/lzbridge/bridge/quote"
	"github.com/telosbridge/lzbridge/bridge/router"
	"github.com/telosbridge/lzbridge/bridge/rpc"
	"github.com/telosbridge/lzbridge/bridge/validator"
)

const connectionTimeout = 10 * time.Second

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Logger()

	rpc.SetLogger(log)
}

func main() {
	configServer := flag.String("config", "", "server config file (.toml); BRIDGE_ env vars are used when empty")
	configDir := flag.String("config-dir", "generated_configs", "where remote chain configs are downloaded to")
	skipValidation := flag.Bool("skip-endpoint-validation", false, "Skip scoring the RPC endpoints before serving")
	flag.Parse()

	var serverConfigPath *string
	if *configServer != "" {
		serverConfigPath = configServer
	}
	serverConfig, err := config.LoadServerConfig(serverConfigPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load server config")
	}

	log.Info().
		Str("chain_config", serverConfig.ChainConfig).
		Str("environment", serverConfig.Environment).
		Msg("Starting Telos bridge quote server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chainsPath, err := config.ResolveChainConfig(ctx, serverConfig.ChainConfig, *configDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to fetch chain config")
	}

	chainLoader := config.NewChainConfigLoader()
	chains, err := chainLoader.LoadFromFile(chainsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load chain config")
	}
	log.Info().
		Int("chains", len(chains.Chains)).
		Int("overrides", len(chains.Overrides)).
		Msg("Loaded chain config")

	registry, err := chainLoader.BuildRegistry(chains)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build route registry")
	}

	endpoints := chainLoader.Endpoints(chains)
	if !*skipValidation {
		validateCtx, validateCancel := context.WithTimeout(ctx, 2*time.Minute)
		endpoints, _ = validator.New(nil, time.Duration(serverConfig.RPCTimeoutSeconds)*time.Second).
			FilterEndpoints(validateCtx, endpoints)
		validateCancel()
		if len(endpoints) == 0 {
			log.Fatal().Msg("No chain has a valid RPC endpoint")
		}
	}

	provider := chain.NewProvider(
		endpoints,
		connectionTimeout,
		time.Duration(serverConfig.RPCTimeoutSeconds)*time.Second,
	)
	defer provider.Close()

	engine := quote.NewEngine(protocols.DefaultSet(), provider)
	if serverConfig.QuoteCacheSeconds > 0 {
		engine = engine.WithCache(time.Duration(serverConfig.QuoteCacheSeconds) * time.Second)
	}

	// nil leaves the aggregator fallback disabled
	var agg rpc.Aggregator
	if len(serverConfig.AggregatorURLs) > 0 {
		client, err := aggregator.NewClientWithFailover(
			serverConfig.AggregatorURLs[0],
			serverConfig.AggregatorURLs[1:],
			aggregator.Options{
				Integrator: serverConfig.AggregatorIntegrator,
				APIKey:     serverConfig.AggregatorAPIKey,
			},
			aggregator.DefaultFailoverConfig(),
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create aggregator client")
		}
		defer client.Close()
		agg = client
		log.Info().
			Str("primary", serverConfig.AggregatorURLs[0]).
			Int("backups", len(serverConfig.AggregatorURLs)-1).
			Msg("Aggregator client initialized")
	}

	api := rpc.NewBridgeServer(router.NewClassifier(registry), engine, agg)

	server, err := rpc.NewServer(ctx, buildServerConfig(serverConfig), api)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create HTTP server")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
			sigCh <- syscall.SIGTERM
		}
	}()

	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
}

// buildServerConfig converts the loaded ServerConfig to rpc.ServerConfig
func buildServerConfig(cfg *config.ServerConfig) *rpc.ServerConfig {
	serverConfig := &rpc.ServerConfig{
		Address:        cfg.Host + ":" + strconv.Itoa(cfg.Port),
		AllowedOrigins: cfg.AllowedOrigins,
		EnableMetrics:  cfg.UsePrometheus,
	}

	if cfg.RatePerMinute > 0 {
		serverConfig.RatePerMinute = &cfg.RatePerMinute
	}
	if cfg.MaxConcurrentRequests > 0 {
		serverConfig.MaxConcurrentRequests = &cfg.MaxConcurrentRequests
	}

	if cfg.EnableTracing || cfg.EnableMetrics || cfg.EnableLogs || cfg.UsePrometheus {
		serverConfig.OTelConfig = &rpc.OTelConfig{
			ServiceName:     defaultString(cfg.ServiceName, "lzbridge"),
			ServiceVersion:  defaultString(cfg.ServiceVersion, "1.0.0"),
			Environment:     defaultString(cfg.Environment, "development"),
			EnableTracing:   cfg.EnableTracing,
			UseOTLPTraces:   cfg.UseOTLPTraces,
			OTLPTracesURL:   cfg.OTLPTracesURL,
			EnableMetrics:   cfg.EnableMetrics || cfg.UsePrometheus,
			UsePrometheus:   cfg.UsePrometheus,
			UseOTLPMetrics:  cfg.UseOTLPMetrics,
			OTLPMetricsURL:  cfg.OTLPMetricsURL,
			EnableLogs:      cfg.EnableLogs,
			UseOTLPLogs:     cfg.UseOTLPLogs,
			OTLPLogsURL:     cfg.OTLPLogsURL,
			InsecureOTLP:    cfg.InsecureOTLP,
			DevelopmentMode: cfg.DevelopmentMode,
		}
	}

	return serverConfig
}

// defaultString returns the default value if s is empty
func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
