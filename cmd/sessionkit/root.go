package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/sessionkit"
	"github.com/aretw0/sessionkit/internal/config"
	"github.com/aretw0/sessionkit/internal/logging"
	"github.com/aretw0/sessionkit/pkg/adapters/redis"
	"github.com/aretw0/sessionkit/pkg/notify"
	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sessionkit",
	Short: "sessionkit serves and inspects replicated web sessions",
	Long:  `sessionkit runs a session-aware HTTP server on top of a memory or Redis store and lets you list, inspect and remove the sessions it holds.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "sessionkit.yaml", "Configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level, overrides the configuration")
}

func loadConfig(cmd *cobra.Command) config.Config {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	return cfg
}

func newLogger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		os.Exit(1)
	}
	return logging.NewWithFormat(cmd.ErrOrStderr(), level, logging.Format(cfg.Log.Format))
}

// newKit translates the configuration into a Kit. reg may be nil.
func newKit(cfg config.Config, logger *slog.Logger, reg prometheus.Registerer) (*sessionkit.Kit, error) {
	scope, err := notify.ParseScope(cfg.Session.NotifierScope)
	if err != nil {
		return nil, err
	}
	opts := []sessionkit.Option{
		sessionkit.WithDefaultTimeout(cfg.Session.DefaultTimeout),
		sessionkit.WithNotifierScope(scope),
		sessionkit.WithLogger(logger),
	}
	if reg != nil {
		opts = append(opts, sessionkit.WithMetrics(reg))
	}

	if cfg.Store == config.StoreRedis {
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		opts = append(opts, sessionkit.WithRedis(client,
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithTTL(cfg.Redis.TTL),
		))
		if cfg.Redis.Locking {
			opts = append(opts, sessionkit.WithLocking(cfg.Redis.LockTTL))
		}
	}

	active, fallback, err := cfg.Encryption.Keys()
	if err != nil {
		return nil, err
	}
	if active != nil {
		opts = append(opts, sessionkit.WithEncryption(active, fallback...))
	}
	return sessionkit.New(opts...)
}

// mustKit builds the Kit of a command or exits.
func mustKit(cmd *cobra.Command, cfg config.Config, reg prometheus.Registerer) *sessionkit.Kit {
	kit, err := newKit(cfg, newLogger(cmd, cfg), reg)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error initializing sessionkit: %v\n", err)
		os.Exit(1)
	}
	return kit
}
