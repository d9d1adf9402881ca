package config

// ServerConfig configures the quote server
type ServerConfig struct {
	// rpc configs
	Port int    `toml:"port" mapstructure:"port"`
	Host string `toml:"host" mapstructure:"host"`

	// CORS configs
	AllowedOrigins []string `toml:"allowed_origins" mapstructure:"allowed_origins"`

	// rate limiting configs
	RatePerMinute         int `toml:"rate_per_minute" mapstructure:"rate_per_minute"`
	MaxConcurrentRequests int `toml:"max_concurrent_requests" mapstructure:"max_concurrent_requests"`

	// OpenTelemetry configs
	ServiceName    string `toml:"service_name" mapstructure:"service_name"`
	ServiceVersion string `toml:"service_version" mapstructure:"service_version"`
	Environment    string `toml:"environment" mapstructure:"environment"` // PROD, DEV, TEST, LOCAL
	EnableTracing  bool   `toml:"enable_tracing" mapstructure:"enable_tracing"`
	UseOTLPTraces  bool   `toml:"use_otlp_traces" mapstructure:"use_otlp_traces"`
	OTLPTracesURL  string `toml:"otlp_traces_url" mapstructure:"otlp_traces_url"`
	EnableMetrics  bool   `toml:"enable_metrics" mapstructure:"enable_metrics"`
	UsePrometheus  bool   `toml:"use_prometheus" mapstructure:"use_prometheus"`
	UseOTLPMetrics bool   `toml:"use_otlp_metrics" mapstructure:"use_otlp_metrics"`
	OTLPMetricsURL string `toml:"otlp_metrics_url" mapstructure:"otlp_metrics_url"`
	EnableLogs     bool   `toml:"enable_logs" mapstructure:"enable_logs"`
	UseOTLPLogs    bool   `toml:"use_otlp_logs" mapstructure:"use_otlp_logs"`
	OTLPLogsURL    string `toml:"otlp_logs_url" mapstructure:"otlp_logs_url"`

	InsecureOTLP bool `toml:"insecure_otlp" mapstructure:"insecure_otlp"`

	// Development mode uses stdout exporters
	DevelopmentMode bool `toml:"development_mode" mapstructure:"development_mode"`

	// Chain config: a local path or any go-getter source (https://, git::, s3::)
	ChainConfig string `toml:"chain_config" mapstructure:"chain_config"`

	// Quote configs
	QuoteCacheSeconds int `toml:"quote_cache_seconds" mapstructure:"quote_cache_seconds"` // 0 disables the cache
	RPCTimeoutSeconds int `toml:"rpc_timeout_seconds" mapstructure:"rpc_timeout_seconds"`

	// Aggregator (LI.FI) configs, empty AggregatorURLs disables the fallback
	AggregatorURLs       []string `toml:"aggregator_urls" mapstructure:"aggregator_urls"`
	AggregatorIntegrator string   `toml:"aggregator_integrator" mapstructure:"aggregator_integrator"`
	AggregatorAPIKey     string   `toml:"aggregator_api_key" mapstructure:"aggregator_api_key"`
}

// ChainsConfig is the chain config file: RPC endpoints plus optional registry overrides.
//
//	[[chains]]
//	id = 40
//	name = "Telos"
//	rpc_urls = ["https://rpc.telos.net", "https://telos.drpc.org"]
//
//	[[overrides]]
//	mechanism = "stargate_pool"
//	token = "USDC"
//	chain = 40
//	contract = "0x..."
//	token_address = "0x..."
type ChainsConfig struct {
	Chains    []ChainConfig  `toml:"chains" json:"chains"`
	Overrides []PeerOverride `toml:"overrides" json:"overrides"`
}

// ChainConfig - one reachable chain
type ChainConfig struct {
	Id      uint64   `toml:"id" json:"id"`
	Name    string   `toml:"name" json:"name"`
	RPCURLs []string `toml:"rpc_urls" json:"rpc_urls"` // first is primary, the rest are fallbacks
}

// PeerOverride replaces or adds one peer of a token in the built-in registry
type PeerOverride struct {
	Mechanism        string `toml:"mechanism" json:"mechanism"`
	Token            string `toml:"token" json:"token"`
	Chain            uint64 `toml:"chain" json:"chain"`
	Contract         string `toml:"contract" json:"contract"`
	TokenAddress     string `toml:"token_address,omitempty" json:"token_address,omitempty"`
	Native           bool   `toml:"native,omitempty" json:"native,omitempty"`
	ResolvePoolToken bool   `toml:"resolve_pool_token,omitempty" json:"resolve_pool_token,omitempty"`
	// ProtocolChainId sets the chain's id in the mechanism's protocol table. Required when the
	// chain has none yet.
	ProtocolChainId uint32 `toml:"protocol_chain_id,omitempty" json:"protocol_chain_id,omitempty"`
}
