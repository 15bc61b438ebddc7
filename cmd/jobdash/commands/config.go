package commands

import (
	"jobdash-backend/lib/configutil"
	"jobdash-backend/lib/serviceutil"
	"jobdash-backend/lib/taxonomy"
	"jobdash-backend/services/amazon"
	"jobdash-backend/services/combine"
	"jobdash-backend/services/theirstack"
	"path/filepath"
)

type Config struct {
	// all stores, state and metrics live under this directory
	DataDir string `json:"data_dir"`

	Amazon     amazon.ClientOptions     `json:"amazon"`
	TheirStack theirstack.ClientOptions `json:"theirstack"`
	Combine    CombineConfig            `json:"combine"`

	// overrides the built-in category rules when present
	Taxonomy []taxonomy.Rule `json:"taxonomy"`
}

type CombineConfig struct {
	TitleHints        map[string]string `json:"title_hints"`
	DateToleranceDays int               `json:"date_tolerance_days"`
	AuditThreshold    float64           `json:"audit_similarity_threshold"`
}

func loadConfig() Config {
	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.TheirStack.BackupDir == "" {
		cfg.TheirStack.BackupDir = filepath.Join(cfg.DataDir, "backups")
	}
	return cfg
}

func (c Config) amazonStorePath() string {
	return filepath.Join(c.DataDir, "raw", "amazon_jobs.csv")
}

func (c Config) theirstackStorePath() string {
	return filepath.Join(c.DataDir, "raw", "theirstack_jobs.csv")
}

func (c Config) theirstackStatePath() string {
	return filepath.Join(c.DataDir, "theirstack_state.json")
}

func (c Config) combinedPath() string {
	return filepath.Join(c.DataDir, "processed", "all_jobs.csv")
}

func (c Config) metricsPath() string {
	return filepath.Join(c.DataDir, "metrics.json")
}

func (c Config) mapper() taxonomy.Mapper {
	return taxonomy.NewMapper(c.Taxonomy)
}

func (c Config) combineOptions() combine.Options {
	return combine.Options{
		SourcePaths:       []string{c.amazonStorePath(), c.theirstackStorePath()},
		OutputPath:        c.combinedPath(),
		TitleHints:        c.Combine.TitleHints,
		DateToleranceDays: c.Combine.DateToleranceDays,
		AuditThreshold:    c.Combine.AuditThreshold,
	}
}
