package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/subc0der/resonate/internal/scanner"
)

// progressPrintEvery throttles the plain-text progress feed so large
// libraries do not flood the terminal with one line per file.
const progressPrintEvery = 25

func newScanCmd(opts *options) *cobra.Command {
	var quick bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the library roots and wait for the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScan(cmd, opts, quick, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&quick, "quick", false, "skip files whose size and mtime are unchanged")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "emit each progress snapshot as a JSON line")

	return cmd
}

func runScan(cmd *cobra.Command, opts *options, quick bool, jsonOutput bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := opts.open(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer application.Close()

	// Subscribe before starting so the terminal snapshot cannot slip
	// past a subscriber that was not listening yet.
	updates, cancel := application.tracker.Subscribe()
	defer cancel()

	var scanID string
	if quick {
		scanID, err = application.scanner.StartQuickScan()
	} else {
		scanID, err = application.scanner.StartFullScan()
	}
	if err != nil {
		return err
	}
	application.log.Info("scan started", "scan_id", scanID, "quick", quick)

	// Interrupt requests a cooperative stop; the scan still reports its
	// terminal snapshot through the tracker.
	go func() {
		<-ctx.Done()
		application.scanner.StopScan()
	}()

	terminal, err := renderProgress(cmd.OutOrStdout(), updates, jsonOutput)
	if err != nil {
		return err
	}

	if terminal.State == scanner.StateFailed {
		return fmt.Errorf("scan failed: %s", terminal.Error)
	}
	return nil
}

// renderProgress consumes tracker snapshots until the scan reaches a
// terminal state and returns that final snapshot.
func renderProgress(out io.Writer, updates <-chan scanner.Progress, jsonOutput bool) (scanner.Progress, error) {
	encoder := json.NewEncoder(out)
	lastPrinted := 0

	for progress := range updates {
		if jsonOutput {
			if err := encoder.Encode(progress); err != nil {
				return scanner.Progress{}, fmt.Errorf("encode progress: %w", err)
			}
		} else if shouldPrintProgress(progress, lastPrinted) {
			fmt.Fprintln(out, formatProgressLine(progress))
			lastPrinted = progress.FilesScanned
		}

		if progress.IsComplete {
			return progress, nil
		}
	}

	return scanner.Progress{}, errors.New("progress stream ended before the scan finished")
}

func shouldPrintProgress(progress scanner.Progress, lastPrinted int) bool {
	if progress.State != scanner.StateScanning {
		return true
	}
	return progress.FilesScanned-lastPrinted >= progressPrintEvery
}

func formatProgressLine(progress scanner.Progress) string {
	switch progress.State {
	case scanner.StateScanning:
		if progress.TotalFiles > 0 {
			return fmt.Sprintf("scanning %d/%d files (%d indexed, %d skipped)",
				progress.FilesScanned, progress.TotalFiles, progress.TracksIndexed, progress.FilesSkipped)
		}
		return "discovering files under the library roots"
	case scanner.StateCompleted:
		return fmt.Sprintf("scan completed: %d files seen, %d indexed, %d skipped",
			progress.FilesScanned, progress.TracksIndexed, progress.FilesSkipped)
	case scanner.StateCancelled:
		return fmt.Sprintf("scan cancelled after %d files (%d indexed)",
			progress.FilesScanned, progress.TracksIndexed)
	case scanner.StateFailed:
		return "scan failed: " + progress.Error
	default:
		return "waiting for the scan to start"
	}
}
