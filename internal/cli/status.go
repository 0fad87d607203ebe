package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/subc0der/resonate/internal/library"
	"github.com/subc0der/resonate/internal/stats"
)

const statusRecentScans = 5

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarize the indexed library and recent scans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := opts.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer application.Close()

			overview, err := application.stats.GetOverview(cmd.Context(), statusRecentScans)
			if err != nil {
				return err
			}
			recent, err := application.scans.Recent(cmd.Context(), statusRecentScans)
			if err != nil {
				return err
			}

			return writeStatus(cmd.OutOrStdout(), overview, recent)
		},
	}
}

func writeStatus(out io.Writer, overview stats.Overview, recent []library.ScanRecord) error {
	fmt.Fprintf(out, "Library: %s tracks, %d albums, %d artists\n",
		humanize.Comma(int64(overview.TotalTracks)), overview.TotalAlbums, overview.TotalArtists)
	fmt.Fprintf(out, "Audio:   %s of music, %s on disk\n",
		formatDurationMS(overview.TotalDurationMS), humanize.Bytes(uint64(overview.TotalFileBytes)))
	fmt.Fprintf(out, "Hi-res:  %d tracks (%d DSD), %d favorites\n",
		overview.HighResTracks, overview.DSDTracks, overview.FavoriteTracks)

	if len(overview.Formats) > 0 {
		parts := make([]string, 0, len(overview.Formats))
		for _, format := range overview.Formats {
			parts = append(parts, fmt.Sprintf("%s %d", format.Format, format.TrackCount))
		}
		fmt.Fprintf(out, "Formats: %s\n", strings.Join(parts, ", "))
	}

	if len(overview.TopArtists) > 0 {
		fmt.Fprintln(out, "\nTop artists:")
		writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, artist := range overview.TopArtists {
			fmt.Fprintf(writer, "  %s\t%d tracks\t%d albums\n", artist.Name, artist.TrackCount, artist.AlbumCount)
		}
		if err := writer.Flush(); err != nil {
			return err
		}
	}

	if len(recent) == 0 {
		fmt.Fprintln(out, "\nNo scans recorded yet; run: resonate scan")
		return nil
	}

	fmt.Fprintln(out, "\nRecent scans:")
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "STARTED\tMODE\tSTATUS\tFILES\tINDEXED\tSKIPPED")
	for _, record := range recent {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%d\t%d\t%d\n",
			formatScanStart(record.StartedAt), record.Mode, record.Status,
			record.FilesSeen, record.TracksIndexed, record.FilesSkipped)
	}

	return writer.Flush()
}

func formatDurationMS(ms int64) string {
	if ms <= 0 {
		return "0s"
	}
	return (time.Duration(ms) * time.Millisecond).Truncate(time.Second).String()
}

// formatScanStart renders a stored RFC3339 timestamp as a relative
// time, falling back to the raw value when it does not parse.
func formatScanStart(startedAt string) string {
	parsed, err := time.Parse(time.RFC3339, startedAt)
	if err != nil {
		return startedAt
	}
	return humanize.Time(parsed)
}
