package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ukaji3/certissue-go/internal/render"
	"github.com/ukaji3/certissue-go/pkg/certissue"
)

var (
	imagesDir   string
	downloadDir string
)

func newPreviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview [files or folders...]",
		Short: "Reconcile a batch and show the preview table",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runPreview,
	}
	cmd.Flags().StringVar(&imagesDir, "images-dir", "", "Export attached images into this folder")
	return cmd
}

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload [files or folders...]",
		Short: "Reconcile a batch with the basic flow and submit it for generation",
		Long: `upload keys every row on its first column, attaches the images and posts
the batch to the certificate generator. Images without a matching row are
logged and skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runUpload,
	}
	cmd.Flags().StringVarP(&downloadDir, "download", "d", "", "Download the generated certificates into this folder")
	return cmd
}

func newStageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stage [files or folders...]",
		Short: "Reconcile a batch with the strict flow and stage it for review",
		Long: `stage keys every row on the certificate number column, requires every image
to match a row and stores the batch for review with "certissue check".`,
		Args: cobra.MinimumNArgs(1),
		RunE: runStage,
	}
}

// reconcile collects the inputs and runs one batch through a new session.
func reconcile(ctx context.Context, opts certissue.Options, paths []string) (*certissue.Session, *certissue.Result, error) {
	files, err := certissue.CollectFiles(paths...)
	if err != nil {
		return nil, nil, err
	}

	s := certissue.NewSession(opts, logger)
	res, err := s.Reconcile(ctx, files)
	if err != nil {
		return nil, nil, err
	}
	return s, res, nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	printer, err := newPrinter(cmd)
	if err != nil {
		return err
	}

	s, res, err := reconcile(cmd.Context(), opts, args)
	if err != nil {
		return err
	}
	if err := printer.Result(res); err != nil {
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
	return res.Err()
}

func runUpload(cmd *cobra.Command, args []string) error {
	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	opts.Flow = certissue.FlowBasic
	printer, err := newPrinter(cmd)
	if err != nil {
		return err
	}

	s, res, err := reconcile(cmd.Context(), opts, args)
	if err != nil {
		return err
	}
	if err := printer.Result(res); err != nil {
		return err
	}
	if err := printer.Preview(s.Preview()); err != nil {
		return err
	}
	if err := res.Err(); err != nil {
		return err
	}

	resp, err := s.Submit(cmd.Context(), newClient())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Certificates generated: %s\n", resp.CertificateFile)

	if downloadDir != "" && resp.CertificateFile != "" {
		return download(cmd, resp.CertificateFile, downloadDir)
	}
	return nil
}

func runStage(cmd *cobra.Command, args []string) error {
	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	opts.Flow = certissue.FlowStrict
	printer, err := newPrinter(cmd)
	if err != nil {
		return err
	}

	s, res, err := reconcile(cmd.Context(), opts, args)
	if err != nil {
		return err
	}
	if err := printer.Result(res); err != nil {
		return err
	}
	if err := res.Err(); err != nil {
		return err
	}

	store, err := openSessions()
	if err != nil {
		return err
	}
	defer store.Close()

	id, err := s.Handoff(cmd.Context(), store)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Staged %d record(s) as session %s\nReview with: certissue check %s\n", res.Records, id, id)
	return nil
}
