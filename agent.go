package main

import (
	"context"
	"errors"

	"github.com/jupark12/go-print-relay/agent"
	"github.com/jupark12/go-print-relay/config"
	"github.com/jupark12/go-print-relay/printer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func newAgentCmd(v *viper.Viper, cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run a polling print agent next to a printer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(v, *cfgFile)
			if err != nil {
				return err
			}
			defer log.Sync()

			if err := cfg.ValidateAgent(); err != nil {
				return err
			}
			return runAgent(cmd.Context(), cfg, log)
		},
	}

	flags := cmd.Flags()
	flags.String("device-id", "", "device id reported to the broker (default pi_printer_001)")
	flags.String("server-url", "", "broker base URL (default http://localhost:5000)")
	flags.String("printer", "", "CUPS destination (default printer when empty)")
	flags.String("work-dir", "", "directory for temporary print files (default ./downloads)")
	flags.Duration("poll-interval", 0, "pause between polls (default 10s)")
	flags.Duration("retry-interval", 0, "pause after a failed poll (default 10s)")
	bindFlags(v, flags, map[string]string{
		"agent.device_id":      "device-id",
		"agent.server_url":     "server-url",
		"agent.printer":        "printer",
		"agent.work_dir":       "work-dir",
		"agent.poll_interval":  "poll-interval",
		"agent.retry_interval": "retry-interval",
	})
	return cmd
}

func runAgent(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	lp, err := printer.NewLPPrinter(printer.LPConfig{
		BinaryPath:  cfg.Agent.LPPath,
		Destination: cfg.Agent.Printer,
		Logger:      log.Named("printer"),
	})
	if err != nil {
		return err
	}

	client, err := agent.NewClient(cfg.Agent.ServerURL, cfg.Agent.RequestTimeout)
	if err != nil {
		return err
	}

	a := agent.New(agent.Config{
		DeviceID:      cfg.Agent.DeviceID,
		PollInterval:  cfg.Agent.PollInterval,
		RetryInterval: cfg.Agent.RetryInterval,
		WorkDir:       cfg.Agent.WorkDir,
		Logger:        log.Named("agent"),
	}, client, lp)

	log.Info("polling agent started",
		zap.String("device_id", cfg.Agent.DeviceID),
		zap.String("server_url", cfg.Agent.ServerURL))

	if err := a.Run(ctx); err != nil {
		var fatal *agent.FatalError
		if errors.As(err, &fatal) {
			log.Fatal("fatal error",
				zap.Any("panic", fatal.Value),
				zap.ByteString("stack", fatal.Stack))
		}
		return err
	}
	return nil
}
