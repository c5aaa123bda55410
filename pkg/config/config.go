package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Data   DataConfig   `yaml:"data"`
	Import ImportConfig `yaml:"import"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	Addr    string `yaml:"addr"`     // HTTP Listen Address (e.g. :8080)
	TCPAddr string `yaml:"tcp_addr"` // TCP Listen Address (e.g. :9090)
}

type DataConfig struct {
	CSVPath    string `yaml:"csv_path"`    // dataset loaded by "load"
	TreePath   string `yaml:"tree_path"`   // default tree document for save/load
	SQLitePath string `yaml:"sqlite_path"` // empty disables snapshots
}

type ImportConfig struct {
	StrictCSV      bool `yaml:"strict_csv"` // fail on malformed lines instead of skipping
	CatalogDegree  int  `yaml:"catalog_degree"`
	RebuildOnMerge bool `yaml:"rebuild_on_merge"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:    ":8080",
			TCPAddr: ":9090",
		},
		Data: DataConfig{
			CSVPath:    "./worldcities.csv",
			TreePath:   "./kdtree.json",
			SQLitePath: "",
		},
		Import: ImportConfig{
			StrictCSV:      false,
			CatalogDegree:  32,
			RebuildOnMerge: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		for _, p := range []string{"configs/geokd.yaml", "geokd.yaml"} {
			data, err := os.ReadFile(p)
			if err == nil {
				if err := yaml.Unmarshal(data, cfg); err != nil {
					return cfg, err
				}
				applyEnv(cfg)
				applyDefaults(cfg)
				return cfg, nil
			}
		}
		applyEnv(cfg)
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

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

// applyEnv 环境变量优先于配置文件（.env 由入口通过 godotenv 预先加载）
func applyEnv(cfg *Config) {
	if v := os.Getenv("GEOKD_HTTP_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("GEOKD_TCP_ADDR"); v != "" {
		cfg.Server.TCPAddr = v
	}
	if v := os.Getenv("GEOKD_CSV"); v != "" {
		cfg.Data.CSVPath = v
	}
	if v := os.Getenv("GEOKD_TREE"); v != "" {
		cfg.Data.TreePath = v
	}
	if v := os.Getenv("GEOKD_SQLITE"); v != "" {
		cfg.Data.SQLitePath = v
	}
	if v := os.Getenv("GEOKD_STRICT_CSV"); v != "" {
		cfg.Import.StrictCSV = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Data.CSVPath == "" {
		cfg.Data.CSVPath = "./worldcities.csv"
	}
	if cfg.Data.TreePath == "" {
		cfg.Data.TreePath = "./kdtree.json"
	}
	if cfg.Import.CatalogDegree < 2 {
		cfg.Import.CatalogDegree = 32
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
