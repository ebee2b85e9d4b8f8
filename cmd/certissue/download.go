package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var downloadDest string

func newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download [certificate-file]",
		Short: "Download a generated certificate archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return download(cmd, args[0], downloadDest)
		},
	}
	cmd.Flags().StringVarP(&downloadDest, "dir", "d", ".", "Destination folder")
	return cmd
}

// download fetches filename into dir. A partial file is removed on failure.
func download(cmd *cobra.Command, filename, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	path := filepath.Join(dir, filepath.Base(filename))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	n, err := newClient().Download(cmd.Context(), filename, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Downloaded %s (%s)\n", path, humanize.Bytes(uint64(n)))
	return nil
}
