package main

import (
	"fmt"

	"github.com/dossier-crm/teamauth"
	"github.com/spf13/cobra"
)

func newMigrateCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the auth tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), *envFile)
			if err != nil {
				return err
			}
			defer a.close()

			if err := teamauth.Migrate(cmd.Context(), a.db); err != nil {
				return err
			}
			a.logger.Info().Msg("migrations applied")
			return nil
		},
	}
}

func newPurgeSessionsCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-sessions",
		Short: "Delete sessions whose refresh window has passed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), *envFile)
			if err != nil {
				return err
			}
			defer a.close()

			engine, err := a.buildEngine(nil, nil)
			if err != nil {
				return err
			}
			defer engine.Close()

			purged, err := engine.PurgeExpiredSessions(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired sessions\n", purged)
			return nil
		},
	}
}
