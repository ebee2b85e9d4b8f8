package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ukaji3/certissue-go/internal/watch"
	"github.com/ukaji3/certissue-go/pkg/certissue"
)

var debounce time.Duration

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [folder]",
		Short: "Re-run the preview whenever the folder changes",
		Args:  cobra.ExactArgs(1),
		RunE:  runWatch,
	}
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period before a change triggers a new run")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	printer, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	dir := args[0]

	// One session for the whole run; each batch clears it
	s := certissue.NewSession(opts, logger)
	runBatch := func(ctx context.Context) error {
		files, err := certissue.CollectFiles(dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n── %s ──\n", time.Now().Format(time.TimeOnly))

		res, err := s.Reconcile(ctx, files)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "✗ %v\n", err)
			return nil
		}
		if err := printer.Result(res); err != nil {
			return err
		}
		return printer.Preview(s.Preview())
	}

	if err := runBatch(cmd.Context()); err != nil {
		return err
	}

	w, err := watch.New(dir, runBatch, debounce, logger)
	if err != nil {
		return err
	}
	if err := w.Start(cmd.Context()); err != nil {
		return err
	}
	defer w.Stop()

	logger.Info("Waiting for changes", zap.String("dir", dir))
	<-w.Done()
	return nil
}
