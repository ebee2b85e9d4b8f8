// Package main provides the CLI entry point for certissue.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ukaji3/certissue-go/internal/api"
	"github.com/ukaji3/certissue-go/internal/config"
	"github.com/ukaji3/certissue-go/internal/logging"
	"github.com/ukaji3/certissue-go/internal/render"
	"github.com/ukaji3/certissue-go/internal/session"
)

var (
	// Global flags
	configDir     string
	verbose       bool
	outputFormat  string
	baseURL       string
	verifyURL     string
	timeout       time.Duration
	mode          string
	keyHeader     string
	concurrency   int
	normalizeKeys bool
	sessionDB     string

	cfg    config.Config
	logger *zap.Logger
)

func main() {
	rootCmd := newRootCmd()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "certissue",
		Short: "Prepare student certificate batches for issuance",
		Long: `certissue reconciles student spreadsheets with certificate photos,
previews the result and submits it to the certificate generator.

Image files are matched to spreadsheet rows by file name: A1.png belongs
to the row whose key is A1.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configDir, "config-dir", "", "Configuration directory (default: ~/.certissue)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVarP(&outputFormat, "output", "o", "", "Output format: table, json, yaml")
	flags.StringVar(&baseURL, "base-url", "", "Certificate generator base URL")
	flags.StringVar(&verifyURL, "verify-url", "", "Verification endpoint URL")
	flags.DurationVar(&timeout, "timeout", 0, "HTTP request timeout (0 means none)")
	flags.StringVar(&mode, "mode", "", "Reconciliation flow: basic, strict")
	flags.StringVar(&keyHeader, "key-header", "", "Key column header in the strict flow (default: 证书编号)")
	flags.IntVar(&concurrency, "concurrency", 0, "Number of image files read at once")
	flags.BoolVar(&normalizeKeys, "normalize-keys", true, "Apply Unicode NFC normalization to keys")
	flags.StringVar(&sessionDB, "session-db", "", "Handoff session database (default: ~/.certissue/sessions.db)")

	rootCmd.AddCommand(
		newPreviewCmd(),
		newUploadCmd(),
		newStageCmd(),
		newCheckCmd(),
		newDownloadCmd(),
		newVerifyCmd(),
		newWatchCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

// setup loads the configuration, applies flag overrides and builds the
// logger.
func setup(cmd *cobra.Command, args []string) error {
	store, err := config.NewStore(configDir)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg = store.Config()

	flags := cmd.Flags()
	if flags.Changed("verbose") {
		cfg.Log.Verbose = verbose
	}
	if flags.Changed("output") {
		cfg.Output.Format = outputFormat
	}
	if flags.Changed("base-url") {
		cfg.API.BaseURL = baseURL
	}
	if flags.Changed("verify-url") {
		cfg.API.VerifyURL = verifyURL
	}
	if flags.Changed("timeout") {
		cfg.API.Timeout = config.Duration{Duration: timeout}
	}
	if flags.Changed("mode") {
		cfg.Reconcile.Mode = mode
	}
	if flags.Changed("key-header") {
		cfg.Reconcile.KeyHeader = keyHeader
	}
	if flags.Changed("concurrency") {
		cfg.Reconcile.Concurrency = concurrency
	}
	if flags.Changed("normalize-keys") {
		cfg.Reconcile.NormalizeKeys = normalizeKeys
	}
	if flags.Changed("session-db") {
		cfg.Session.Path = sessionDB
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err = logging.New(cfg.Log.Verbose)
	if err != nil {
		return err
	}
	logger.Debug("Configuration loaded", zap.String("path", store.Path()))
	return nil
}

func newClient() *api.Client {
	return api.NewClient(api.Config{
		BaseURL:           cfg.API.BaseURL,
		VerifyURL:         cfg.API.VerifyURL,
		Timeout:           cfg.API.Timeout.Duration,
		RequestsPerSecond: cfg.API.RatePerSecond,
		BurstSize:         cfg.API.Burst,
	}, logger)
}

func openSessions() (*session.Store, error) {
	return session.Open(cfg.Session.Path,
		session.WithTTL(cfg.Session.TTL.Duration),
		session.WithLogger(logger))
}

func newPrinter(cmd *cobra.Command) (*render.Printer, error) {
	return render.New(cmd.OutOrStdout(), cfg.Output.Format)
}
