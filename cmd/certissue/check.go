package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ukaji3/certissue-go/internal/render"
	"github.com/ukaji3/certissue-go/internal/session"
	"github.com/ukaji3/certissue-go/pkg/certissue"
)

var (
	submitStaged bool
	keepSession  bool
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [session-id]",
		Short: "Review a staged batch and optionally submit it",
		Long: `check shows the records staged by "certissue stage". With --submit the
records are sent to the certificate generator; the session is removed once
generation succeeds. Without a session id, the staged sessions are listed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCheck,
	}
	cmd.Flags().BoolVar(&submitStaged, "submit", false, "Submit the staged records for generation")
	cmd.Flags().BoolVar(&keepSession, "keep", false, "Keep the session after a successful submit")
	cmd.Flags().StringVarP(&downloadDir, "download", "d", "", "Download the generated certificates into this folder")
	cmd.Flags().StringVar(&imagesDir, "images-dir", "", "Export attached images into this folder")
	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	store, err := openSessions()
	if err != nil {
		return err
	}
	defer store.Close()

	if _, err := store.Purge(cmd.Context()); err != nil {
		logger.Warn("Failed to purge expired sessions", zap.Error(err))
	}

	if len(args) == 0 {
		return listSessions(cmd, store)
	}

	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	opts.Flow = certissue.FlowStrict

	s, err := certissue.Resume(cmd.Context(), store, args[0], opts, logger)
	if err != nil {
		return err
	}

	printer, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	if err := printer.Preview(s.Preview()); err != nil {
		return err
	}

	if imagesDir != "" {
		paths, err := render.ExportImages(s.Entries(), imagesDir)
		logger.Info("Images exported", zap.String("dir", imagesDir), zap.Int("count", len(paths)))
		if err != nil {
			return fmt.Errorf("failed to export images: %w", err)
		}
	}

	if !submitStaged {
		return nil
	}

	resp, err := s.Submit(cmd.Context(), newClient())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Certificates generated: %s\n", resp.CertificateFile)

	if !keepSession {
		if err := store.Delete(cmd.Context(), s.ID); err != nil {
			return err
		}
	}
	if downloadDir != "" && resp.CertificateFile != "" {
		return download(cmd, resp.CertificateFile, downloadDir)
	}
	return nil
}

// listSessions prints the live staged sessions.
func listSessions(cmd *cobra.Command, store *session.Store) error {
	sessions, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No staged sessions.")
		return nil
	}

	rows := make([][]string, 0, len(sessions))
	for _, sum := range sessions {
		rows = append(rows, []string{
			sum.ID,
			fmt.Sprintf("%d", sum.Records),
			humanize.Time(sum.CreatedAt),
			humanize.Time(sum.ExpiresAt),
		})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("SESSION", "RECORDS", "STAGED", "EXPIRES").
		Rows(rows...)
	fmt.Fprintln(cmd.OutOrStdout(), t.String())
	return nil
}
