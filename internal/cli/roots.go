package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newRootsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roots",
		Short: "Manage the directories the scanner indexes",
	}

	cmd.AddCommand(
		newRootsAddCmd(opts),
		newRootsListCmd(opts),
		newRootsEnableCmd(opts),
		newRootsDisableCmd(opts),
		newRootsRemoveCmd(opts),
	)

	return cmd
}

func newRootsAddCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "add <path>",
		Short: "Register a directory as a library root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := opts.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer application.Close()

			absPath, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve root path: %w", err)
			}
			info, err := os.Stat(absPath)
			if err != nil {
				return fmt.Errorf("stat root path: %w", err)
			}
			if !info.IsDir() {
				return fmt.Errorf("root path %s is not a directory", absPath)
			}

			root, err := application.roots.Add(cmd.Context(), absPath)
			if err != nil {
				return err
			}

			cmd.Printf("added root %d: %s\n", root.ID, root.Path)
			return nil
		},
	}
}

func newRootsListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the registered library roots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := opts.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer application.Close()

			roots, err := application.roots.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(roots) == 0 {
				cmd.Println("no library roots registered; add one with: resonate roots add <path>")
				return nil
			}

			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "ID\tENABLED\tPATH")
			for _, root := range roots {
				fmt.Fprintf(writer, "%d\t%t\t%s\n", root.ID, root.Enabled, root.Path)
			}

			return writer.Flush()
		},
	}
}

func newRootsEnableCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "enable <id>",
		Short: "Include a root in future scans",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setRootEnabled(cmd, opts, args[0], true)
		},
	}
}

func newRootsDisableCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "disable <id>",
		Short: "Exclude a root from future scans without forgetting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setRootEnabled(cmd, opts, args[0], false)
		},
	}
}

func newRootsRemoveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Forget a library root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRootID(args[0])
			if err != nil {
				return err
			}

			application, err := opts.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.roots.Remove(cmd.Context(), id); err != nil {
				return err
			}

			cmd.Printf("removed root %d\n", id)
			return nil
		},
	}
}

func setRootEnabled(cmd *cobra.Command, opts *options, rawID string, enabled bool) error {
	id, err := parseRootID(rawID)
	if err != nil {
		return err
	}

	application, err := opts.open(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer application.Close()

	if err := application.roots.SetEnabled(cmd.Context(), id, enabled); err != nil {
		return err
	}

	if enabled {
		cmd.Printf("enabled root %d\n", id)
	} else {
		cmd.Printf("disabled root %d\n", id)
	}
	return nil
}

func parseRootID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("root id must be a number, got %q", raw)
	}
	return id, nil
}
