package config

// Package config provides a reusable loader for the query node's
// configuration files and environment variables. It is versioned so that
// applications can depend on a stable API contract.
//
// Version: v0.1.0

import (
	"fmt"

	"github.com/spf13/viper"

	"ledgerquery/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config represents the unified configuration for a query node. It mirrors
// the structure of the YAML files under config/.
type Config struct {
	Store struct {
		Dir string `mapstructure:"dir" json:"dir"`
	} `mapstructure:"store" json:"store"`

	Query struct {
		ListenAddr  string `mapstructure:"listen_addr" json:"listen_addr"`
		ToriiPort   int    `mapstructure:"torii_port" json:"torii_port"`
		GenesisFile string `mapstructure:"genesis_file" json:"genesis_file"`
	} `mapstructure:"query" json:"query"`

	Keystore struct {
		Dir string `mapstructure:"dir" json:"dir"`
	} `mapstructure:"keystore" json:"keystore"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("config")
	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // overlays matching process environment variables

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the LEDGERQUERY_ENV environment
// variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("LEDGERQUERY_ENV", ""))
}
