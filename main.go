package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jupark12/go-print-relay/config"
	"github.com/jupark12/go-print-relay/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var cfgFile string

	root := &cobra.Command{
		Use:          "print-relay",
		Short:        "Relay print jobs from a web upload to polling print agents",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./config.yaml or /etc/print-relay/config.yaml)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: console or json")
	flags.String("log-output", "", "log output: stdout, stderr or a file path")
	bindFlags(v, flags, map[string]string{
		"log.level":  "log-level",
		"log.format": "log-format",
		"log.output": "log-output",
	})

	root.AddCommand(newBrokerCmd(v, &cfgFile), newAgentCmd(v, &cfgFile))
	return root
}

// bindFlags maps config keys to flag names; flags left unset fall back to
// the config file, the environment and the defaults
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if f := fs.Lookup(name); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}

func loadConfig(v *viper.Viper, cfgFile string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(logger.Config(cfg.Log))
	if err != nil {
		return nil, nil, err
	}
	if used := v.ConfigFileUsed(); used != "" {
		log.Info("loaded config file", zap.String("path", used))
	}
	return cfg, log, nil
}
