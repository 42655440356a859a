package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load sets defaults, finds the config file and enables GITVANITY_*
// environment overrides. cfgFile, when set, is the only file read.
func Load(cfgFile string) error {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// search order: working dir, the repository's .git/vanity, ~/.gitvanity
		viper.AddConfigPath(".")
		viper.AddConfigPath(filepath.Join(".git", "vanity"))
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".gitvanity"))
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// GITVANITY_JOURNAL_TYPE overrides journal.type
	viper.SetEnvPrefix("GITVANITY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("fatal error config file: %w", err)
		}
		slog.Debug("no config file found, using defaults and environment")
	} else {
		slog.Debug("using config file", slog.String("path", viper.ConfigFileUsed()))
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("repo.path", ".")

	viper.SetDefault("search.nonce", "1")
	viper.SetDefault("search.batch", 100)
	viper.SetDefault("search.report_interval", 5*time.Second)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// empty journal.path means <repo>/.git/vanity/journal
	viper.SetDefault("journal.type", "disk")
	viper.SetDefault("journal.path", "")
	viper.SetDefault("journal.s3.region", "us-east-1")
	viper.SetDefault("journal.s3.prefix", "gitvanity")
	// store keeps receipts next to the checkpoints; sqlite or postgres
	// index them in SQL (journal.receipts.dsn)
	viper.SetDefault("journal.receipts.type", "store")
	viper.SetDefault("journal.receipts.dsn", "")

	viper.SetDefault("allocator.type", "local")
	viper.SetDefault("allocator.redis_url", "redis://localhost:6379/0")
	viper.SetDefault("allocator.ttl", 24*time.Hour)
}
