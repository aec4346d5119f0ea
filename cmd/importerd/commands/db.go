package commands

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/breakingdawnisback/Job-Importer/db"
	"github.com/breakingdawnisback/Job-Importer/errors"
	"github.com/breakingdawnisback/Job-Importer/logger"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the importer database",
	Long: `Manage database operations.

Examples:
  importerd db migrate   # Apply pending schema migrations
  importerd db stats     # Show feed, session, and job counts`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE:  runDbMigrate,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	RunE:  runDbStats,
}

func init() {
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbStatsCmd)
}

func openDatabase() (*sql.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	database, err := db.Open(cfg.Database.Path, logger.Logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	return database, nil
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.Migrate(database, logger.Logger); err != nil {
		return errors.Wrap(err, "migration failed")
	}
	fmt.Println("Migrations applied")
	return nil
}

func runDbStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	var feeds, activeFeeds, sessions, running, jobs int
	row := database.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM feeds),
			(SELECT COUNT(*) FROM feeds WHERE is_active = 1),
			(SELECT COUNT(*) FROM import_sessions),
			(SELECT COUNT(*) FROM import_sessions WHERE status = 'in_progress'),
			(SELECT COUNT(*) FROM jobs)
	`)
	if err := row.Scan(&feeds, &activeFeeds, &sessions, &running, &jobs); err != nil {
		return errors.Wrap(err, "failed to query stats")
	}

	fmt.Println("Database Statistics")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("Database Path:    %s\n", cfg.Database.Path)
	fmt.Printf("Feeds:            %d (%d active)\n", feeds, activeFeeds)
	fmt.Printf("Import Sessions:  %d (%d in progress)\n", sessions, running)
	fmt.Printf("Jobs:             %d\n", jobs)
	return nil
}
