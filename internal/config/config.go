// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Base        EVMChainConfig    `mapstructure:"base"`
	TorusEVM    EVMChainConfig    `mapstructure:"torus_evm"`
	TorusNative NativeChainConfig `mapstructure:"torus_native"`
	Hyperlane   HyperlaneConfig   `mapstructure:"hyperlane"`
	Bridge      BridgeConfig      `mapstructure:"bridge"`
	Wallet      WalletConfig      `mapstructure:"wallet"`
	History     HistoryConfig     `mapstructure:"history"`
	Recovery    RecoveryConfig    `mapstructure:"recovery"`
	Notify      NotifyConfig      `mapstructure:"notify"`
	Health      HealthConfig      `mapstructure:"health"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`

	TUIMode bool `mapstructure:"-"` // Set at runtime, not from config file
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// EVMChainConfig holds the settings of one EVM chain (Base or Torus EVM).
type EVMChainConfig struct {
	Name         string        `mapstructure:"name"`
	RPCURL       string        `mapstructure:"rpc_url"`
	ChainID      uint64        `mapstructure:"chain_id"`
	RateLimit    float64       `mapstructure:"rate_limit"` // requests per second, 0 = unlimited
	RateBurst    int           `mapstructure:"rate_burst"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	TokenAddress string        `mapstructure:"token_address"` // empty when TORUS is the native coin
}

// TokenAddressHex returns the TORUS token address as common.Address.
func (c *EVMChainConfig) TokenAddressHex() common.Address {
	return common.HexToAddress(c.TokenAddress)
}

// NativeChainConfig holds Torus Native (Substrate) settings.
type NativeChainConfig struct {
	WebSocketURL   string        `mapstructure:"websocket_url"`
	SS58Prefix     uint16        `mapstructure:"ss58_prefix"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateBurst      int           `mapstructure:"rate_burst"`
	// WithdrawPrecompile is the Torus EVM precompile that moves funds from
	// an EVM account to a native account.
	WithdrawPrecompile string `mapstructure:"withdraw_precompile"`
}

// WithdrawPrecompileHex returns the withdraw precompile as common.Address.
func (c *NativeChainConfig) WithdrawPrecompileHex() common.Address {
	return common.HexToAddress(c.WithdrawPrecompile)
}

// HyperlaneConfig holds the warp route addresses and domains.
type HyperlaneConfig struct {
	BaseRouter     string        `mapstructure:"base_router"`
	TorusRouter    string        `mapstructure:"torus_router"`
	BaseDomain     uint32        `mapstructure:"base_domain"`
	TorusDomain    uint32        `mapstructure:"torus_domain"`
	QuoteCacheTTL  time.Duration `mapstructure:"quote_cache_ttl"`
	GasLimitBuffer uint64        `mapstructure:"gas_limit_buffer"`
}

// BaseRouterHex returns the Base warp router as common.Address.
func (c *HyperlaneConfig) BaseRouterHex() common.Address {
	return common.HexToAddress(c.BaseRouter)
}

// TorusRouterHex returns the Torus EVM warp router as common.Address.
func (c *HyperlaneConfig) TorusRouterHex() common.Address {
	return common.HexToAddress(c.TorusRouter)
}

// BridgeConfig holds polling, retry and timeout settings.
type BridgeConfig struct {
	PollInterval          time.Duration `mapstructure:"poll_interval"`
	MaxPolls              int           `mapstructure:"max_polls"`
	PollTimeout           time.Duration `mapstructure:"poll_timeout"`
	OperationTimeout      time.Duration `mapstructure:"operation_timeout"`
	SwitchRetryDelay      time.Duration `mapstructure:"switch_retry_delay"`
	MaxSwitchAttempts     int           `mapstructure:"max_switch_attempts"`
	RequiredConfirmations uint64        `mapstructure:"required_confirmations"`
}

// WalletConfig selects how the CLI signs.
type WalletConfig struct {
	// EVMMode is "local" (private key in config) or "rpc" (external signer
	// speaking the EIP-1193 JSON-RPC methods).
	EVMMode       string `mapstructure:"evm_mode"`
	EVMPrivateKey string `mapstructure:"evm_private_key"`
	EVMSignerURL  string `mapstructure:"evm_signer_url"`
	NativeSeed    string `mapstructure:"native_seed"` // mnemonic or 0x seed
}

// HistoryConfig selects the history backend.
type HistoryConfig struct {
	Backend string `mapstructure:"backend"` // "file" or "postgres"
	Path    string `mapstructure:"path"`
	DSN     string `mapstructure:"dsn"`
}

// RecoveryConfig holds the recovery URL settings.
type RecoveryConfig struct {
	BaseURL string `mapstructure:"base_url"`
	URLFile string `mapstructure:"url_file"`
}

// NotifyConfig holds lifecycle event sinks.
type NotifyConfig struct {
	NATS    NATSConfig    `mapstructure:"nats"`
	Webhook WebhookConfig `mapstructure:"webhook"`
}

// NATSConfig holds the NATS publisher settings.
type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

// WebhookConfig holds the webhook notifier settings.
type WebhookConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`
}

// HealthConfig holds the health server settings.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	Provider       string `mapstructure:"provider"` // otlp-grpc, otlp-http, zipkin, console
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("BRIDGE")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "BRIDGE_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "BRIDGE_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "BRIDGE_LOG_LEVEL", "LOG_LEVEL")

	// Chains
	v.BindEnv("base.rpc_url", "BRIDGE_BASE_RPC_URL", "BASE_RPC_URL")
	v.BindEnv("base.token_address", "BRIDGE_BASE_TOKEN_ADDRESS")
	v.BindEnv("torus_evm.rpc_url", "BRIDGE_TORUS_EVM_RPC_URL", "TORUS_EVM_RPC_URL")
	v.BindEnv("torus_evm.chain_id", "BRIDGE_TORUS_EVM_CHAIN_ID")
	v.BindEnv("torus_native.websocket_url", "BRIDGE_TORUS_WS_URL", "TORUS_WS_URL")
	v.BindEnv("torus_native.withdraw_precompile", "BRIDGE_WITHDRAW_PRECOMPILE")

	// Hyperlane
	v.BindEnv("hyperlane.base_router", "BRIDGE_HYPERLANE_BASE_ROUTER")
	v.BindEnv("hyperlane.torus_router", "BRIDGE_HYPERLANE_TORUS_ROUTER")

	// Wallet
	v.BindEnv("wallet.evm_mode", "BRIDGE_EVM_MODE")
	v.BindEnv("wallet.evm_private_key", "BRIDGE_EVM_PRIVATE_KEY", "EVM_PRIVATE_KEY")
	v.BindEnv("wallet.evm_signer_url", "BRIDGE_EVM_SIGNER_URL")
	v.BindEnv("wallet.native_seed", "BRIDGE_NATIVE_SEED", "TORUS_SEED")

	// History
	v.BindEnv("history.backend", "BRIDGE_HISTORY_BACKEND")
	v.BindEnv("history.path", "BRIDGE_HISTORY_PATH")
	v.BindEnv("history.dsn", "BRIDGE_HISTORY_DSN", "DATABASE_URL")

	// Notify
	v.BindEnv("notify.nats.enabled", "BRIDGE_NATS_ENABLED")
	v.BindEnv("notify.nats.url", "BRIDGE_NATS_URL", "NATS_URL")
	v.BindEnv("notify.webhook.enabled", "BRIDGE_WEBHOOK_ENABLED")
	v.BindEnv("notify.webhook.url", "BRIDGE_WEBHOOK_URL")

	// Telemetry
	v.BindEnv("telemetry.enabled", "BRIDGE_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "BRIDGE_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.provider", "BRIDGE_OTEL_PROVIDER")
	v.BindEnv("telemetry.otlp_endpoint", "BRIDGE_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "torus-bridge")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Base mainnet
	v.SetDefault("base.name", "Base")
	v.SetDefault("base.rpc_url", "https://mainnet.base.org")
	v.SetDefault("base.chain_id", 8453)
	v.SetDefault("base.rate_limit", 10)
	v.SetDefault("base.rate_burst", 5)
	v.SetDefault("base.dial_timeout", "10s")
	v.SetDefault("base.token_address", "0x78EC15C5FD8EfC5e924e9EEBb9e549e29C785867")

	// Torus EVM
	v.SetDefault("torus_evm.name", "Torus EVM")
	v.SetDefault("torus_evm.rpc_url", "https://api.torus.network")
	v.SetDefault("torus_evm.chain_id", 21000)
	v.SetDefault("torus_evm.rate_limit", 10)
	v.SetDefault("torus_evm.rate_burst", 5)
	v.SetDefault("torus_evm.dial_timeout", "10s")

	// Torus Native
	v.SetDefault("torus_native.websocket_url", "wss://api.torus.network")
	v.SetDefault("torus_native.ss58_prefix", 42)
	v.SetDefault("torus_native.connect_timeout", "15s")
	v.SetDefault("torus_native.request_timeout", "30s")
	v.SetDefault("torus_native.rate_limit", 10)
	v.SetDefault("torus_native.rate_burst", 5)
	v.SetDefault("torus_native.withdraw_precompile", "0x0000000000000000000000000000000000000800")

	// Hyperlane warp route
	v.SetDefault("hyperlane.base_router", "0x78EC15C5FD8EfC5e924e9EEBb9e549e29C785867")
	v.SetDefault("hyperlane.base_domain", 8453)
	v.SetDefault("hyperlane.torus_domain", 21000)
	v.SetDefault("hyperlane.quote_cache_ttl", "1m")
	v.SetDefault("hyperlane.gas_limit_buffer", 20) // percent

	// Bridge timing
	v.SetDefault("bridge.poll_interval", "5s")
	v.SetDefault("bridge.max_polls", 180)
	v.SetDefault("bridge.poll_timeout", "15m")
	v.SetDefault("bridge.operation_timeout", "5m")
	v.SetDefault("bridge.switch_retry_delay", "5s")
	v.SetDefault("bridge.max_switch_attempts", 3)
	v.SetDefault("bridge.required_confirmations", 2)

	// Wallet
	v.SetDefault("wallet.evm_mode", "local")

	// History
	v.SetDefault("history.backend", "file")
	v.SetDefault("history.path", "./data/torus-bridge-transaction-history.json")

	// Recovery
	v.SetDefault("recovery.base_url", "https://bridge.torus.network/fast")
	v.SetDefault("recovery.url_file", "./data/recovery-url")

	// Notify
	v.SetDefault("notify.nats.enabled", false)
	v.SetDefault("notify.nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("notify.nats.subject", "torus.bridge.events")
	v.SetDefault("notify.webhook.enabled", false)
	v.SetDefault("notify.webhook.timeout", "10s")
	v.SetDefault("notify.webhook.retries", 3)

	// Health
	v.SetDefault("health.enabled", false)
	v.SetDefault("health.port", 8080)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "torus-bridge")
	v.SetDefault("telemetry.provider", "otlp-grpc")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Base.RPCURL == "" {
		return fmt.Errorf("base.rpc_url is required")
	}
	if c.TorusEVM.RPCURL == "" {
		return fmt.Errorf("torus_evm.rpc_url is required")
	}
	if c.TorusNative.WebSocketURL == "" {
		return fmt.Errorf("torus_native.websocket_url is required")
	}
	if !common.IsHexAddress(c.Base.TokenAddress) {
		return fmt.Errorf("invalid base.token_address: %s", c.Base.TokenAddress)
	}
	if !common.IsHexAddress(c.Hyperlane.BaseRouter) {
		return fmt.Errorf("invalid hyperlane.base_router: %s", c.Hyperlane.BaseRouter)
	}
	if c.Hyperlane.TorusRouter != "" && !common.IsHexAddress(c.Hyperlane.TorusRouter) {
		return fmt.Errorf("invalid hyperlane.torus_router: %s", c.Hyperlane.TorusRouter)
	}
	if !common.IsHexAddress(c.TorusNative.WithdrawPrecompile) {
		return fmt.Errorf("invalid torus_native.withdraw_precompile: %s", c.TorusNative.WithdrawPrecompile)
	}
	if c.Bridge.MaxPolls <= 0 {
		return fmt.Errorf("bridge.max_polls must be positive")
	}
	if c.Bridge.MaxSwitchAttempts <= 0 {
		return fmt.Errorf("bridge.max_switch_attempts must be positive")
	}
	switch c.Wallet.EVMMode {
	case "local", "rpc":
	default:
		return fmt.Errorf("invalid wallet.evm_mode: %s", c.Wallet.EVMMode)
	}
	switch c.History.Backend {
	case "file":
		if c.History.Path == "" {
			return fmt.Errorf("history.path is required for the file backend")
		}
	case "postgres":
		if c.History.DSN == "" {
			return fmt.Errorf("history.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("invalid history.backend: %s", c.History.Backend)
	}
	if c.Notify.Webhook.Enabled && c.Notify.Webhook.URL == "" {
		return fmt.Errorf("notify.webhook.url is required when the webhook is enabled")
	}
	return nil
}
