package main

import (
	"errors"

	"github.com/spf13/cobra"
)

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the PostgreSQL and ClickHouse tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if a.pg == nil && a.ch == nil {
				return errors.New("no database connection to migrate")
			}
			if a.pg != nil {
				if err := a.pg.Migrate(ctx); err != nil {
					return err
				}
			}
			if a.ch != nil {
				if err := a.ch.Migrate(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
