package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gitvanity/pkg/app"
	"gitvanity/pkg/cluster"
	"gitvanity/pkg/config"
	"gitvanity/pkg/core"
	"gitvanity/pkg/hashing"
	"gitvanity/pkg/journal"
	"gitvanity/pkg/repository"
	"gitvanity/pkg/search"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// VG is the application container, built before any command runs.
var VG *app.App

// Execute is the entry point of the gitvanity binary.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree and binds its flags into viper.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "gitvanity",
		Short: "Rewrite HEAD so its commit id has a chosen prefix or hidden hex message",
		Long: `gitvanity brute-forces a nonce in the committer name of the HEAD commit
until the commit id starts with the requested prefix (-h) and/or contains the
requested hex message (-m), then moves the current branch to the new commit.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(cfgFile); err != nil {
				return err
			}
			var err error
			VG, err = app.NewApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return fmt.Errorf("failed to initialize gitvanity: %w", err)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if VG == nil {
				return nil
			}
			return VG.Close()
		},
		RunE: runSearch,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml, .git/vanity/config.yaml or $HOME/.gitvanity/config.yaml)")
	pf.String("repo", ".", "path inside the git repository to rewrite")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	// -h is the prefix, so help only gets the long form
	pf.Bool("help", false, "help for gitvanity")

	f := rootCmd.Flags()
	f.StringP("prefix", "h", "", "hex prefix the commit id must start with")
	f.StringP("message", "m", "", "hex string the commit id must contain")
	f.StringP("nonce", "n", "1", "starting nonce, hex")
	f.IntP("threads", "j", 0, "worker count (default: number of CPUs)")
	f.String("limit", "", "exclusive upper bound on the nonce, hex (default: unbounded)")
	f.Uint64("batch", 100, "nonces a worker claims at a time")
	f.Bool("resume", false, "continue from the last checkpoint for this commit and target")
	f.Bool("dry-run", false, "search and print the result without touching the repository")
	f.String("allocator", "local", "nonce allocator: local or redis")

	bindFlags(pf, map[string]string{
		"repo.path": "repo",
		"log.level": "log-level",
	})
	bindFlags(f, map[string]string{
		"search.prefix":  "prefix",
		"search.message": "message",
		"search.nonce":   "nonce",
		"search.threads": "threads",
		"search.limit":   "limit",
		"search.batch":   "batch",
		"search.resume":  "resume",
		"search.dry_run": "dry-run",
		"allocator.type": "allocator",
	})

	rootCmd.AddCommand(newReceiptsCmd())
	return rootCmd
}

func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := viper.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

func runSearch(cmd *cobra.Command, _ []string) error {
	if VG == nil {
		return fmt.Errorf("app not initialized")
	}
	out := cmd.OutOrStdout()
	log := VG.Logger

	settings, err := config.SearchSettings()
	if err != nil {
		return err
	}
	target, err := hashing.ParseTarget(settings.Prefix, settings.Message)
	if err != nil {
		return fmt.Errorf("%w: %w", search.ErrConfiguration, err)
	}
	// from here on failures are not usage mistakes
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snap, err := VG.Repo.Head(ctx)
	if err != nil {
		return err
	}
	tmpl, err := core.NewTemplate(snap.Commit)
	if err != nil {
		return err
	}
	if err := target.Validate(snap.Algorithm); err != nil {
		return fmt.Errorf("%w: %w", search.ErrConfiguration, err)
	}

	start := settings.Start
	if settings.Resume {
		start = resumePoint(ctx, out, snap, target, start)
	}

	searchID := journal.SearchID(snap.ID(), snap.Algorithm, target)
	alloc, closeAlloc, err := VG.NewAllocator(ctx, searchID, start, settings.Limit)
	if err != nil {
		return err
	}
	defer closeAlloc()

	var checkpoint func(search.Progress)
	if VG.Journal != nil {
		checkpoint = func(p search.Progress) {
			if !p.Resumable {
				return
			}
			cp := journal.Checkpoint{Base: snap.ID(), Next: p.Next, Hashes: p.Hashes, UpdatedAt: VG.Clock.Now()}
			if err := VG.Journal.SaveCheckpoint(context.Background(), cp, snap.Algorithm, target); err != nil {
				log.Warn("failed to save checkpoint", slog.Any("err", err))
			}
		}
	}

	coord, err := search.NewCoordinator(search.Config{
		Template:       tmpl,
		Algorithm:      snap.Algorithm,
		Target:         target,
		Workers:        settings.Threads,
		Start:          start,
		Limit:          settings.Limit,
		BatchSize:      settings.Batch,
		Allocator:      alloc,
		ReportInterval: viper.GetDuration("search.report_interval"),
		Out:            out,
		OnTick:         checkpoint,
		Clock:          VG.Clock,
		Logger:         log,
	})
	if err != nil {
		return err
	}

	printBanner(out, target, start, coord.Workers())
	log.Debug("searching", slog.String("base", snap.ID().String()), slog.String("ref", snap.Head.Name.String()),
		slog.String("format", snap.Algorithm.String()))

	res, runErr := coord.Run(ctx)
	prog := coord.Progress()

	if errors.Is(runErr, search.ErrCancelled) && checkpoint != nil {
		checkpoint(prog)
	}
	if errors.Is(runErr, search.ErrNotFound) {
		reportRemoteWinner(cmd.Context(), out, alloc)
	}

	pub := &search.Publisher{Out: out, Writer: newWriter(settings.DryRun, snap, target, coord), Logger: log}
	return pub.Publish(cmd.Context(), res, prog, runErr)
}

func printBanner(out io.Writer, target hashing.Target, start uint64, workers int) {
	if target.Prefix != "" {
		fmt.Fprintf(out, "Searching for hash starting with: %s\n", target.Prefix)
	}
	if target.Message != "" {
		fmt.Fprintf(out, "Searching for hidden message: %s\n", target.Message)
	}
	fmt.Fprintf(out, "Starting nonce: %X\n", start)
	fmt.Fprintf(out, "Using %d threads.\n", workers)
}

// resumePoint moves start up to the saved checkpoint, if there is one.
func resumePoint(ctx context.Context, out io.Writer, snap *repository.Snapshot, target hashing.Target, start uint64) uint64 {
	if VG.Journal == nil {
		fmt.Fprintln(out, "Journal is disabled, nothing to resume.")
		return start
	}
	cp, err := VG.Journal.LoadCheckpoint(ctx, snap.ID(), snap.Algorithm, target)
	if errors.Is(err, journal.ErrNoCheckpoint) {
		fmt.Fprintln(out, "No checkpoint for this commit and target, starting fresh.")
		return start
	}
	if err != nil {
		VG.Logger.Warn("ignoring unreadable checkpoint", slog.Any("err", err))
		return start
	}
	if cp.Next > start {
		fmt.Fprintf(out, "Resuming after %d checked nonces.\n", cp.Hashes)
		return cp.Next
	}
	return start
}

func reportRemoteWinner(ctx context.Context, out io.Writer, alloc search.Allocator) {
	shared, ok := alloc.(*cluster.Allocator)
	if !ok {
		return
	}
	nonce, digest, found, err := shared.Winner(ctx)
	if err != nil {
		VG.Logger.Warn("failed to read shared result", slog.Any("err", err))
		return
	}
	if found {
		fmt.Fprintf(out, "Another host found: %X (commit %s)\n", nonce, digest)
	}
}

func newWriter(dryRun bool, snap *repository.Snapshot, target hashing.Target, coord *search.Coordinator) search.Writer {
	if dryRun {
		return nil
	}
	w := VG.Repo.Writer(snap)
	if VG.Journal == nil {
		return w
	}
	return &journal.Recorder{
		Next:      w,
		Journal:   VG.Journal,
		Base:      snap.Head,
		Algorithm: snap.Algorithm,
		Target:    target,
		Progress:  coord.Progress,
		Clock:     VG.Clock,
		Logger:    VG.Logger,
	}
}
