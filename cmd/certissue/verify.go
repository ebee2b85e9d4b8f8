package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ukaji3/certissue-go/internal/render"
	"github.com/ukaji3/certissue-go/pkg/certissue"
)

var errNotVerified = errors.New("one or more certificates failed verification")

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [certificate.json | certificates.zip]...",
		Short: "Verify issued certificates against the ledger",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runVerify,
	}
	cmd.Flags().StringVar(&imagesDir, "images-dir", "", "Write the images of verified certificates into this folder")
	return cmd
}

func runVerify(cmd *cobra.Command, args []string) error {
	printer, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	client := newClient()

	failed := 0
	for _, path := range args {
		certs, err := certissue.ReadCertificates(path)
		if err != nil {
			return err
		}

		for _, cert := range certs {
			resp, err := certissue.VerifyCertificate(cmd.Context(), client, cert)
			if err != nil {
				return fmt.Errorf("%s: %w", cert.Source, err)
			}
			if err := printer.Verification(cert, resp); err != nil {
				return err
			}
			if !resp.Verified {
				failed++
				continue
			}

			if imagesDir != "" {
				paths, err := render.ExportVerifiedImages(resp, imagesDir)
				logger.Info("Images written", zap.String("certificate", cert.Source), zap.Int("count", len(paths)))
				if err != nil {
					return fmt.Errorf("failed to write images: %w", err)
				}
			}
		}
	}

	if failed > 0 {
		return errNotVerified
	}
	return nil
}
