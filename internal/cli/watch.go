package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/subc0der/resonate/internal/watch"
)

func newWatchCmd(opts *options) *cobra.Command {
	var settle time.Duration
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the library roots and quick-scan when files change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := opts.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer application.Close()

			watcher := watch.New(application.roots, application.scanner, application.log, watch.Options{
				Settle:   settle,
				Interval: interval,
			})

			return watcher.Run(ctx)
		},
	}

	cmd.Flags().DurationVar(&settle, "settle", 2*time.Second, "quiet period after a change burst before scanning")
	cmd.Flags().DurationVar(&interval, "interval", time.Hour, "periodic quick-scan interval, 0 to disable")

	return cmd
}
