package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/breakingdawnisback/Job-Importer/db"
	"github.com/breakingdawnisback/Job-Importer/errors"
	"github.com/breakingdawnisback/Job-Importer/feed"
	"github.com/breakingdawnisback/Job-Importer/importer"
	"github.com/breakingdawnisback/Job-Importer/logger"
	"github.com/breakingdawnisback/Job-Importer/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the importer HTTP/WebSocket server",
	Long: `Start the job importer server. Serves the feed and import-session
API over HTTP and pushes real-time import notifications over WebSocket.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logger.Logger

	database, err := db.Open(cfg.Database.Path, log)
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	if err := db.Migrate(database, log); err != nil {
		return errors.Wrap(err, "failed to migrate database")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feeds := feed.NewStore(database)
	sessions := importer.NewSessionStore(database)
	jobs := importer.NewJobStore(database)

	orch := importer.New(ctx, feeds, sessions, jobs, nil, nil, importer.Config{
		FetchTimeout:  cfg.Fetch.Timeout(),
		RatePerMinute: cfg.Fetch.RatePerMinute,
		MaxBodyBytes:  cfg.Fetch.MaxBodyBytes,
	}, log)

	srv := server.New(ctx, database, cfg.Server, feeds, sessions, jobs, orch, log)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Infow("Shutdown signal received", "signal", sig.String())
		return srv.Stop()
	case err := <-errChan:
		if err != nil {
			return errors.Wrap(err, "server exited")
		}
		return nil
	}
}
