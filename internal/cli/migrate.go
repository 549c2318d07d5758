package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fluwatch/pipeline/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := db.RunMigrations(cfg.Database, cfg.MigrationsPath); err != nil {
			return err
		}
		fmt.Println("Migrations up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
