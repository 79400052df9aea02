package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/smith3v/quizsync/pkg/config"
	"github.com/smith3v/quizsync/pkg/logger"
	"github.com/smith3v/quizsync/pkg/notify"
	"github.com/smith3v/quizsync/pkg/syncer"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Keep the local store in sync until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		cfg := config.AppConfig
		if err := cfg.Sync.Validate(); err != nil {
			return err
		}
		a, err := openApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		unsubscribe := a.engine.Subscribe(func(ev syncer.Event) {
			switch ev.Status {
			case syncer.StatusError:
				logger.Warn("sync status", "status", ev.Status, "message", ev.Message)
			case syncer.StatusSyncing:
				logger.Debug("sync status", "status", ev.Status)
			default:
				logger.Info("sync status", "status", ev.Status, "message", ev.Message)
			}
		})
		defer unsubscribe()

		if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
			sender, err := notify.NewTelegramSender(cfg.Telegram.Token)
			if err != nil {
				return err
			}
			userID, _ := a.resolver.ActiveUserID(ctx)
			notifier := notify.New(sender, cfg.Telegram.ChatID, "quizsync "+userID)
			detach := notifier.Attach(a.engine)
			defer notifier.Wait()
			defer detach()
		}

		auto := syncer.NewAutoSync(a.engine, a.bg, syncer.AutoSyncOptions{
			Interval:     cfg.Sync.Interval,
			InitialDelay: cfg.Sync.InitialDelay,
		})
		if err := auto.Start(ctx); err != nil {
			return err
		}
		defer auto.Stop()

		if a.client != nil {
			connectivity := make(chan bool)
			go syncer.ProbeConnectivity(ctx, a.client, cfg.Sync.ProbeInterval, connectivity)
			go auto.Watch(ctx, syncer.Signals{Connectivity: connectivity})
		}

		logger.Info("quizsync running", "local", cfg.Local.Path, "remote", cfg.Remote.BaseURL)
		<-ctx.Done()
		logger.Info("shutting down")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
