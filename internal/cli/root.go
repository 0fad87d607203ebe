package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/subc0der/resonate/internal/artwork"
	"github.com/subc0der/resonate/internal/config"
	"github.com/subc0der/resonate/internal/db"
	"github.com/subc0der/resonate/internal/library"
	"github.com/subc0der/resonate/internal/logging"
	"github.com/subc0der/resonate/internal/metadata"
	"github.com/subc0der/resonate/internal/scanner"
	"github.com/subc0der/resonate/internal/stats"
)

// Execute runs the resonate CLI.
func Execute() error {
	opts := newOptions()
	rootCmd := newRootCmd(opts)
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)

	return rootCmd.Execute()
}

// options carries the persistent flag values shared by every command.
type options struct {
	dataDir   string
	logLevel  string
	logFormat string
}

func newOptions() *options {
	return &options{}
}

func newRootCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "resonate",
		Short:         "Index and serve a local hi-res music library",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "directory for the database and artwork cache (default: OS config dir)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format: text or json")

	cmd.AddCommand(
		newRootsCmd(opts),
		newScanCmd(opts),
		newWatchCmd(opts),
		newServeCmd(opts),
		newStatusCmd(opts),
		newTrackCmd(opts),
	)

	return cmd
}

// app bundles the opened database and the services every command draws
// from, behind a single Close.
type app struct {
	cfg     config.Config
	log     *slog.Logger
	db      *sql.DB
	roots   *library.RootRepository
	tracks  *library.TrackRepository
	scans   *library.ScanRepository
	stats   *stats.Service
	tracker *scanner.Tracker
	scanner *scanner.Service
}

// open loads config, applies flag overrides and wires the services.
// Logs go to logOut so command output on stdout stays machine-readable.
func (o *options) open(ctx context.Context, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(o.dataDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.LogFormat = o.logFormat
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, logOut)
	if err != nil {
		return nil, err
	}

	database, err := db.Bootstrap(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open library database: %w", err)
	}

	rootRepo := library.NewRootRepository(database)
	tracker := scanner.NewTracker()
	scanService := scanner.NewService(
		database,
		rootRepo,
		tracker,
		metadata.NewExtractor(logger),
		artwork.NewExtractor(cfg.ArtworkCacheDir, logger),
		logger,
		scanner.Options{Workers: cfg.ScanWorkers},
	)

	return &app{
		cfg:     cfg,
		log:     logger,
		db:      database,
		roots:   rootRepo,
		tracks:  library.NewTrackRepository(database),
		scans:   library.NewScanRepository(database),
		stats:   stats.NewService(database),
		tracker: tracker,
		scanner: scanService,
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.log.Warn("failed to close database", "error", err)
	}
}
