package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	AlchemyAPIKey  string
	AlchemyNetwork string
	IndexerBaseURL string

	PinataKey        string
	PinataSecret     string
	PinataJWT        string
	PinataAPIURL     string
	PinataGatewayURL string
	IPFSGatewayURL   string

	ChainID            int64
	ContractAddress    string
	ContractABIPath    string
	ContractMintMethod string

	WalletRPCURL       string
	RPCEndpoint        string
	ExplorerURL        string
	ConfirmTimeout     time.Duration
	WalletPollInterval time.Duration

	RedisURL   string
	JournalDir string
	ListenAddr string
	LogLevel   string
	LogFile    string
}

// Load reads a .env file when present, then the environment. Variables
// already set in the environment win over the file.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}
	return FromEnv()
}

// FromEnv reads configuration from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		AlchemyAPIKey:      os.Getenv("ALCHEMY_API_KEY"),
		AlchemyNetwork:     getenv("ALCHEMY_NETWORK", "eth-sepolia"),
		IndexerBaseURL:     os.Getenv("INDEXER_BASE_URL"),
		PinataKey:          os.Getenv("PINATA_KEY"),
		PinataSecret:       os.Getenv("PINATA_SECRET"),
		PinataJWT:          os.Getenv("PINATA_JWT"),
		PinataAPIURL:       getenv("PINATA_API_URL", "https://api.pinata.cloud"),
		PinataGatewayURL:   getenv("PINATA_GATEWAY_URL", "https://gateway.pinata.cloud"),
		IPFSGatewayURL:     getenv("IPFS_GATEWAY_URL", "https://ipfs.io"),
		ContractAddress:    os.Getenv("CONTRACT_ADDRESS"),
		ContractABIPath:    os.Getenv("CONTRACT_ABI_PATH"),
		ContractMintMethod: getenv("CONTRACT_MINT_METHOD", "mintNFT"),
		WalletRPCURL:       os.Getenv("WALLET_RPC_URL"),
		RPCEndpoint:        os.Getenv("RPC_ENDPOINT"),
		ExplorerURL:        os.Getenv("EXPLORER_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		JournalDir:         os.Getenv("JOURNAL_DIR"),
		ListenAddr:         getenv("LISTEN_ADDR", ":8080"),
		LogLevel:           strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFile:            os.Getenv("LOG_FILE"),
	}

	var err error
	if cfg.ChainID, err = int64Env("CHAIN_ID", 11155111); err != nil {
		return nil, err
	}
	if cfg.ConfirmTimeout, err = durationEnv("CONFIRM_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.WalletPollInterval, err = durationEnv("WALLET_POLL_INTERVAL", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.RPCEndpoint == "" {
		cfg.RPCEndpoint = cfg.WalletRPCURL
	}
	return cfg, nil
}

// Validate reports settings that cannot work together. Missing credentials
// are not errors here; the operations that need them report them.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.LogLevel)
	}
	if c.ChainID <= 0 {
		return fmt.Errorf("CHAIN_ID must be positive, got %d", c.ChainID)
	}
	if c.ConfirmTimeout < 0 {
		return fmt.Errorf("CONFIRM_TIMEOUT must not be negative")
	}
	if c.WalletPollInterval <= 0 {
		return fmt.Errorf("WALLET_POLL_INTERVAL must be positive")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func int64Env(key string, fallback int64) (int64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
