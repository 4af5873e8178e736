package cmd

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/postboard/apiserver/internal/db"
	"github.com/postboard/apiserver/internal/db/migrations"
)

const stepsFlag = "steps"

var migrateDownFlags = map[string]cobraflags.Flag{
	stepsFlag: &cobraflags.StringFlag{
		Name:  stepsFlag,
		Value: "1",
		Usage: "Number of migrations to roll back; 0 rolls back all",
	},
}

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		if err := migrations.Up(db.PostgresURL(cfg.Database)); err != nil {
			return err
		}
		log.Info("migrations applied")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, err := strconv.Atoi(migrateDownFlags[stepsFlag].GetString())
		if err != nil || steps < 0 {
			return fmt.Errorf("invalid --%s value %q", stepsFlag, migrateDownFlags[stepsFlag].GetString())
		}

		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		if err := migrations.Down(db.PostgresURL(cfg.Database), steps); err != nil {
			return err
		}
		log.Info("migrations rolled back", slog.Int("steps", steps))
		return nil
	},
}

func init() {
	cobraflags.RegisterMap(migrateUpCmd, rootFlags)
	cobraflags.RegisterMap(migrateDownCmd, rootFlags)
	cobraflags.RegisterMap(migrateDownCmd, migrateDownFlags)
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
}
