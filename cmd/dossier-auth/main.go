package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "dossier-auth",
		Short:         "Authentication and session service for the Dossier CRM",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file read before the environment")

	cmd.AddCommand(newServeCommand(&envFile))
	cmd.AddCommand(newMigrateCommand(&envFile))
	cmd.AddCommand(newPurgeSessionsCommand(&envFile))
	return cmd
}
