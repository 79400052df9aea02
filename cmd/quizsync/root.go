package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/smith3v/quizsync/pkg/config"
	"github.com/smith3v/quizsync/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:           "quizsync",
	Short:         "Local-first practice exams with spaced repetition and cloud sync",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json", "path to the JSON config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file loaded before the config")
}

// setup loads .env, the config file and configures logging. A missing .env
// or config file is not an error; defaults and the environment apply.
func setup() error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("failed to load env file", "file", envFile, "error", err)
	}

	path := configPath
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		logger.Debug("config file not found, using defaults", "file", path)
		path = ""
	}
	if err := config.LoadConfig(path); err != nil {
		return err
	}

	if err := logger.Configure(logger.Options{
		Level:  config.AppConfig.Logging.Level,
		File:   config.AppConfig.Logging.File,
		Format: config.AppConfig.Logging.Format,
	}); err != nil {
		logger.Error("failed to configure logger", "error", err)
	}
	return nil
}
