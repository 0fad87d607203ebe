package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/subc0der/resonate/internal/library"
)

func newTrackCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "track <id|path>",
		Short: "Show one indexed track as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := opts.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer application.Close()

			track, err := resolveTrack(cmd.Context(), application.tracks, args[0])
			if err != nil {
				return err
			}

			encoded, err := json.MarshalIndent(track, "", "  ")
			if err != nil {
				return fmt.Errorf("encode track: %w", err)
			}

			cmd.Println(string(encoded))
			return nil
		},
	}
}

// resolveTrack looks the reference up as a track ID first and falls
// back to treating it as a file path.
func resolveTrack(ctx context.Context, tracks *library.TrackRepository, ref string) (library.Track, error) {
	track, err := tracks.GetByID(ctx, ref)
	if err == nil {
		return track, nil
	}
	if !errors.Is(err, library.ErrTrackNotFound) {
		return library.Track{}, err
	}

	absPath, absErr := filepath.Abs(ref)
	if absErr != nil {
		return library.Track{}, fmt.Errorf("no track with id or path %q", ref)
	}

	track, err = tracks.GetByPath(ctx, absPath)
	if errors.Is(err, library.ErrTrackNotFound) {
		return library.Track{}, fmt.Errorf("no track with id or path %q", ref)
	}
	return track, err
}
