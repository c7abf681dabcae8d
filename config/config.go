package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Tree    TreeConfig    `yaml:"tree"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"` // HTTP Listen Address (e.g. :8080)
}

type StorageConfig struct {
	Path     string `yaml:"path"`      // SQLite database file
	MaxTrees int    `yaml:"max_trees"` // how many named trees may exist at once
}

type TreeConfig struct {
	Order      int  `yaml:"order"`
	PageSize   int  `yaml:"page_size"`
	CacheSize  int  `yaml:"cache_size"`
	WalEnabled bool `yaml:"wal_enabled"`
}

func Load(configPath string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Storage: StorageConfig{
			Path:     "bptlab.db",
			MaxTrees: 5,
		},
		Tree: TreeConfig{
			Order:      4,
			PageSize:   4096,
			CacheSize:  100,
			WalEnabled: true,
		},
	}

	if configPath == "" {
		for _, p := range []string{"configs/bptlab.yaml", "bptlab.yaml"} {
			data, err := os.ReadFile(p)
			if err == nil {
				if err := yaml.Unmarshal(data, cfg); err != nil {
					return cfg, err
				}
				applyDefaults(cfg)
				return cfg, nil
			}
		}
		applyDefaults(cfg)
		return cfg, nil // no file found: use defaults
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, err
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "bptlab.db"
	}
	if cfg.Storage.MaxTrees <= 0 {
		cfg.Storage.MaxTrees = 5
	}
	if cfg.Tree.Order < 3 {
		cfg.Tree.Order = 4
	}
	if cfg.Tree.PageSize <= 0 {
		cfg.Tree.PageSize = 4096
	}
	if cfg.Tree.CacheSize <= 0 {
		cfg.Tree.CacheSize = 100
	}
}
