package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/subc0der/resonate/internal/server"
	"github.com/subc0der/resonate/internal/watch"
)

func newServeCmd(opts *options) *cobra.Command {
	var addr string
	var withWatch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the library over the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts, addr, withWatch)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from RESONATE_HTTP_ADDR)")
	cmd.Flags().BoolVar(&withWatch, "watch", false, "also watch the roots and quick-scan on changes")

	return cmd
}

func runServe(cmd *cobra.Command, opts *options, addr string, withWatch bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := opts.open(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer application.Close()

	if addr == "" {
		addr = application.cfg.HTTPAddr
	}

	if withWatch {
		watcher := watch.New(application.roots, application.scanner, application.log, watch.Options{})
		go func() {
			if watchErr := watcher.Run(ctx); watchErr != nil && !errors.Is(watchErr, context.Canceled) {
				application.log.Error("filesystem watcher stopped", "error", watchErr)
			}
		}()
	}

	apiServer := server.New(
		application.db,
		application.scanner,
		application.tracker,
		application.cfg.ArtworkCacheDir,
		addr,
		application.log,
	)

	return apiServer.Run(ctx)
}
