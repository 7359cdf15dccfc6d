package cmd

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/spf13/cobra"

	"github.com/pinceletas/user-auth-service/app/repository"
	"github.com/pinceletas/user-auth-service/app/service"
	"github.com/pinceletas/user-auth-service/config"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run maintenance sweeps manually",
}

var sweepDeactivateCmd = &cobra.Command{
	Use:   "deactivate",
	Short: "Deactivate accounts inactive beyond the configured window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sweeper, db, err := newSweeperForCommands()
		if err != nil {
			return err
		}
		defer db.Close()

		count, err := sweeper.RunDeactivationOnce(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("deactivated %d inactive account(s)\n", count)
		return nil
	},
}

var sweepPurgeTokensCmd = &cobra.Command{
	Use:   "purge-tokens",
	Short: "Delete expired password recovery codes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sweeper, db, err := newSweeperForCommands()
		if err != nil {
			return err
		}
		defer db.Close()

		count, err := sweeper.RunCleanupOnce(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("purged %d expired recovery code(s)\n", count)
		return nil
	},
}

func init() {
	sweepCmd.AddCommand(sweepDeactivateCmd)
	sweepCmd.AddCommand(sweepPurgeTokensCmd)
	rootCmd.AddCommand(sweepCmd)
}

// newSweeperForCommands builds a sweeper over a direct DB connection without
// the full server wiring; the mailer and verifier are not needed here.
func newSweeperForCommands() (*service.Sweeper, *sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, nil, err
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, nil, err
	}

	userRepo := repository.NewUserRepository(db)
	resetTokenRepo := repository.NewResetTokenRepository(db)
	resetService := service.NewPasswordResetService(db, userRepo, resetTokenRepo, nil, cfg)
	sweeper := service.NewSweeper(userRepo, resetService, cfg)

	return sweeper, db, nil
}
