// Command todo runs the to-do web application.
//
//	todo                  same as "todo serve"
//	todo serve            start the HTTP server
//	todo migrate up       apply pending schema migrations
//	todo migrate down     drop every table
//	todo migrate version  print the applied schema version
//
// Settings come from the environment and an optional .env file; see package
// config for the keys.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sakif/todolist/internal/config"
	"github.com/sakif/todolist/internal/logger"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := serveCmd()

	root := &cobra.Command{
		Use:           "todo",
		Short:         "Multi-user to-do list with tags and due dates",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	root.AddCommand(serve)
	root.AddCommand(migrateCmd())
	return root
}

// setup loads the configuration, builds the logger and makes sure the
// database directory exists. The returned closer flushes the log file.
func setup() (*config.Config, *slog.Logger, io.Closer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.Format = cfg.LogFormat
	logCfg.FilePath = cfg.LogFile

	log, closer, err := logger.New(logCfg)
	if err != nil {
		return nil, nil, nil, err
	}

	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		closer.Close()
		return nil, nil, nil, fmt.Errorf("creating database directory %s: %w", dbDir, err)
	}
	return cfg, log, closer, nil
}
