package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ukaji3/certissue-go/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the saved configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the saved configuration",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}

	set := &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Change one configuration value",
		Long: `set stores one value in the configuration file. Keys:

  ` + strings.Join(config.Keys, "\n  "),
		Args: cobra.ExactArgs(2),
		RunE: runConfigSet,
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the configuration file with the current values",
		Args:  cobra.NoArgs,
		RunE:  runConfigInit,
	}

	cmd.AddCommand(show, set, initCmd)
	return cmd
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	store, err := config.NewStore(configDir)
	if err != nil {
		return err
	}
	data, err := store.Config().Encode()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if _, err := os.Stat(store.Path()); err != nil {
		fmt.Fprintf(out, "# %s (not written yet, showing defaults)\n", store.Path())
	} else {
		fmt.Fprintf(out, "# %s\n", store.Path())
	}
	_, err = out.Write(data)
	return err
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	store, err := config.NewStore(configDir)
	if err != nil {
		return err
	}
	if err := store.Set(args[0], args[1]); err != nil {
		return err
	}
	logger.Info("Configuration updated", zap.String("key", args[0]), zap.String("path", store.Path()))
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s = %s\n", args[0], args[1])
	return nil
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	store, err := config.NewStore(configDir)
	if err != nil {
		return err
	}
	if err := store.Save(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration written to %s\n", store.Path())
	return nil
}
