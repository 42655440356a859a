// Package app assembles the long-lived services a command needs from the
// viper configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gitvanity/pkg/cluster"
	"gitvanity/pkg/journal"
	"gitvanity/pkg/meta"
	"gitvanity/pkg/repository"
	"gitvanity/pkg/search"
	"gitvanity/pkg/storage"
	"gitvanity/pkg/storage/disk"
	"gitvanity/pkg/storage/s3"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/viper"
)

// App is the dependency container shared by the commands.
type App struct {
	Repo     *repository.Repository
	RepoPath string
	// Journal is nil when journal.type is none.
	Journal *journal.Journal
	Logger  *slog.Logger
	Clock   clockwork.Clock

	closers []func() error
}

// NewApp opens the repository and the journal backend. Log lines go to
// logOut.
func NewApp(ctx context.Context, logOut io.Writer) (*App, error) {
	logger, err := NewLogger(logOut, viper.GetString("log.level"), viper.GetString("log.format"))
	if err != nil {
		return nil, err
	}

	repoPath := viper.GetString("repo.path")
	repo, err := repository.Open(repoPath)
	if err != nil {
		return nil, err
	}

	store, err := initStore(ctx, repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to init journal storage: %w", err)
	}
	a := &App{
		Repo:     repo,
		RepoPath: repoPath,
		Logger:   logger,
		Clock:    clockwork.NewRealClock(),
	}
	if store != nil {
		idx, closeFn, err := initReceipts(ctx, repoPath)
		if err != nil {
			return nil, fmt.Errorf("failed to init receipts index: %w", err)
		}
		var opts []journal.Option
		if idx != nil {
			opts = append(opts, journal.WithReceiptIndex(idx))
			a.closers = append(a.closers, closeFn)
		}
		a.Journal = journal.New(store, opts...)
	}
	return a, nil
}

// Close releases database connections opened by NewApp.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// initReceipts picks where receipts live from journal.receipts.type. A nil
// index means they stay in the journal Store.
func initReceipts(ctx context.Context, repoPath string) (journal.ReceiptIndex, func() error, error) {
	cfg := meta.Config{
		Driver: viper.GetString("journal.receipts.type"),
		DSN:    viper.GetString("journal.receipts.dsn"),
	}
	switch cfg.Driver {
	case "store", "":
		return nil, nil, nil
	case "sqlite":
		if cfg.DSN == "" {
			dir := filepath.Join(repoPath, ".git", "vanity")
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, err
			}
			cfg.DSN = filepath.Join(dir, "receipts.db")
		}
	case "postgres":
		if cfg.DSN == "" {
			return nil, nil, fmt.Errorf("postgres dsn is required (journal.receipts.dsn)")
		}
	default:
		return nil, nil, fmt.Errorf("unsupported receipts type: %s", cfg.Driver)
	}

	db, err := meta.NewDB(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return meta.NewRepository(db), db.Close, nil
}

// initStore picks the journal backend from journal.type. A nil Store with
// a nil error means the journal is disabled.
func initStore(ctx context.Context, repoPath string) (storage.Store, error) {
	switch t := viper.GetString("journal.type"); t {
	case "disk", "":
		path := viper.GetString("journal.path")
		if path == "" {
			path = filepath.Join(repoPath, ".git", "vanity", "journal")
		}
		return disk.NewAdapter(path)

	case "s3":
		cfg := s3.Config{
			Endpoint:        viper.GetString("journal.s3.endpoint"),
			Region:          viper.GetString("journal.s3.region"),
			Bucket:          viper.GetString("journal.s3.bucket"),
			Prefix:          viper.GetString("journal.s3.prefix"),
			AccessKeyID:     viper.GetString("journal.s3.access_key_id"),
			SecretAccessKey: viper.GetString("journal.s3.secret_access_key"),
		}
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("s3 bucket is required (journal.s3.bucket)")
		}
		return s3.NewAdapter(ctx, cfg)

	case "none":
		return nil, nil

	default:
		return nil, fmt.Errorf("unsupported journal type: %s", t)
	}
}

// NewLogger builds the slog logger for log.level and log.format.
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
}

// NewAllocator returns the shared allocator allocator.type asks for. For
// "local" it returns nil and the coordinator uses its own in-process
// cursor. The returned close func is never nil.
func (a *App) NewAllocator(ctx context.Context, searchID string, start, limit uint64) (search.Allocator, func() error, error) {
	noop := func() error { return nil }
	switch t := viper.GetString("allocator.type"); t {
	case "local", "":
		return nil, noop, nil
	case "redis":
		alloc, err := cluster.NewAllocator(ctx, cluster.Config{
			RedisURL: viper.GetString("allocator.redis_url"),
			Search:   searchID,
			Start:    start,
			Limit:    limit,
			TTL:      viper.GetDuration("allocator.ttl"),
		})
		if err != nil {
			return nil, noop, err
		}
		a.Logger.Info("joined shared search", slog.String("search", searchID))
		return alloc, alloc.Close, nil
	default:
		return nil, noop, fmt.Errorf("%w: unsupported allocator type: %s", search.ErrConfiguration, t)
	}
}
