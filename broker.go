package main

import (
	"context"

	"github.com/jupark12/go-print-relay/config"
	"github.com/jupark12/go-print-relay/journal"
	"github.com/jupark12/go-print-relay/queue"
	"github.com/jupark12/go-print-relay/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func newBrokerCmd(v *viper.Viper, cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "broker",
		Short: "Run the print broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(v, *cfgFile)
			if err != nil {
				return err
			}
			defer log.Sync()

			if err := cfg.ValidateBroker(); err != nil {
				return err
			}
			return runBroker(cmd.Context(), cfg, log)
		},
	}

	flags := cmd.Flags()
	flags.String("addr", "", "HTTP listen address (default :5000)")
	flags.String("database-url", "", "Postgres URL for the command journal")
	flags.Duration("activity-window", 0, "how long a device counts as active after polling")
	bindFlags(v, flags, map[string]string{
		"broker.addr":            "addr",
		"broker.database_url":    "database-url",
		"broker.activity_window": "activity-window",
	})
	return cmd
}

func runBroker(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	queueCfg := queue.Config{
		ActivityWindow: cfg.Broker.ActivityWindow,
		Logger:         log.Named("queue"),
	}
	opts := server.Options{
		Logger:         log.Named("server"),
		MaxUploadBytes: cfg.Broker.MaxUploadBytes,
	}

	if cfg.Broker.DatabaseURL != "" {
		j, pool, err := journal.Connect(ctx, cfg.Broker.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		queueCfg.Journal = j
		opts.History = j
		log.Info("command journal enabled")
	}

	commandQueue := queue.NewCommandQueue(queueCfg)
	srv := server.NewServer(commandQueue, opts)

	log.Info("print broker started",
		zap.String("addr", cfg.Broker.Addr),
		zap.Duration("activity_window", cfg.Broker.ActivityWindow))

	if err := srv.Run(ctx, cfg.Broker.Addr); err != nil {
		return err
	}
	log.Info("print broker stopped")
	return nil
}
