package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gitvanity/pkg/search"

	"github.com/spf13/viper"
)

// Search is the typed view of the search.* keys.
type Search struct {
	Prefix         string
	Message        string
	Start          uint64
	Limit          uint64 // exclusive, 0 for unbounded
	Threads        int    // 0 when no thread count was configured
	Batch          uint64
	ReportInterval time.Duration
	DryRun         bool
	Resume         bool
}

// SearchSettings reads and checks the search.* keys. Errors wrap
// search.ErrConfiguration.
func SearchSettings() (Search, error) {
	s := Search{
		Prefix:         viper.GetString("search.prefix"),
		Message:        viper.GetString("search.message"),
		ReportInterval: viper.GetDuration("search.report_interval"),
		DryRun:         viper.GetBool("search.dry_run"),
		Resume:         viper.GetBool("search.resume"),
	}

	var err error
	if s.Start, err = ParseNonce(viper.GetString("search.nonce")); err != nil {
		return Search{}, fmt.Errorf("%w: nonce: %w", search.ErrConfiguration, err)
	}
	if raw := viper.GetString("search.limit"); raw != "" {
		if s.Limit, err = ParseNonce(raw); err != nil {
			return Search{}, fmt.Errorf("%w: limit: %w", search.ErrConfiguration, err)
		}
	}
	// search.threads has no default so that an explicit 0 is caught here
	if viper.IsSet("search.threads") {
		raw := viper.GetString("search.threads")
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n <= 0 {
			return Search{}, fmt.Errorf("%w: threads must be a positive number, got %q", search.ErrConfiguration, raw)
		}
		s.Threads = n
	}
	batch := viper.GetInt64("search.batch")
	if batch <= 0 {
		return Search{}, fmt.Errorf("%w: batch must be positive, got %d", search.ErrConfiguration, batch)
	}
	s.Batch = uint64(batch)
	return s, nil
}

// ParseNonce reads a nonce in hex, with or without a 0x prefix.
func ParseNonce(s string) (uint64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimPrefix(s, "0x")
	n, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a hex number", s)
	}
	return n, nil
}
