package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smith3v/quizsync/pkg/config"
	"github.com/smith3v/quizsync/pkg/db"
	"github.com/smith3v/quizsync/pkg/logger"
	"github.com/smith3v/quizsync/pkg/remote"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the shared remote store over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		sqlitePath, _ := cmd.Flags().GetString("sqlite")
		cfg := config.AppConfig

		var (
			gdb *gorm.DB
			err error
		)
		if sqlitePath != "" {
			gdb, err = db.OpenSQLite(sqlitePath, remote.Models()...)
		} else {
			gdb, err = db.OpenPostgres(cfg.Database, remote.Models()...)
		}
		if err != nil {
			return fmt.Errorf("open remote database: %w", err)
		}
		defer db.Close(gdb)

		opts := remote.ServerOptions{
			Addr:           cfg.Server.Addr,
			AllowAnonymous: cfg.Server.AllowAnonymous,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		}
		if cfg.Server.JWTSecret != "" {
			if opts.Auth, err = remote.NewAuthenticator(cfg.Server.JWTSecret); err != nil {
				return err
			}
		} else {
			logger.Warn("server.jwt_secret is empty, only anonymous devices can sync")
		}
		srv := remote.NewServer(remote.NewGormStore(gdb), opts)

		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()

		// Graceful shutdown
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		case err := <-errCh:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("sqlite", "", "serve from a sqlite file instead of the configured Postgres database")
}
