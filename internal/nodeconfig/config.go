// Package nodeconfig loads the node's runtime configuration: listen
// address, bootstrap peers, wallet file, and mining parameters, using
// viper for YAML and godotenv for local .env overrides.
package nodeconfig

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"quantcoin/internal/errs"
	"quantcoin/internal/protocol"
)

// Config is the unified node configuration.
type Config struct {
	ListenAddr     string   `mapstructure:"listen_addr" yaml:"listen_addr"`
	BootstrapPeers []string `mapstructure:"bootstrap_peers" yaml:"bootstrap_peers"`
	WalletFile     string   `mapstructure:"wallet_file" yaml:"wallet_file"`
	Mine           bool     `mapstructure:"mine" yaml:"mine"`
	MinTxCount     int      `mapstructure:"min_tx_count" yaml:"min_tx_count"`
	MinCommission  float64  `mapstructure:"min_commission" yaml:"min_commission"`
	LogLevel       string   `mapstructure:"log_level" yaml:"log_level"`
}

// Default returns the configuration a fresh node starts from absent
// any file or environment override.
func Default() Config {
	return Config{
		ListenAddr:    fmt.Sprintf("0.0.0.0:%d", protocol.DefaultPort),
		WalletFile:    "wallet.json",
		Mine:          false,
		MinTxCount:    1,
		MinCommission: -1,
		LogLevel:      "info",
	}
}

// Load reads configPath (a YAML file) if it exists, applies a local
// .env file if present, then layers QUANTCOIN_-prefixed environment
// variables on top. A missing configPath is not an error: Default()
// fills in for it. Any other failure is a FatalConfig error, since
// construction-time configuration problems should halt the process
// before any subsystem starts.
func Load(configPath string) (Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return cfg, errs.FatalConfig(err, "load .env")
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("QUANTCOIN")
	v.AutomaticEnv()

	v.SetDefault("listen_addr", cfg.ListenAddr)
	v.SetDefault("wallet_file", cfg.WalletFile)
	v.SetDefault("mine", cfg.Mine)
	v.SetDefault("min_tx_count", cfg.MinTxCount)
	v.SetDefault("min_commission", cfg.MinCommission)
	v.SetDefault("log_level", cfg.LogLevel)

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return cfg, errs.FatalConfig(err, fmt.Sprintf("read config %s", configPath))
			}
		} else if !os.IsNotExist(err) {
			return cfg, errs.FatalConfig(err, "stat config file")
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, errs.FatalConfig(err, "unmarshal config")
	}
	return cfg, nil
}
