package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/afoley587/coding-challenges-2025/usersync/internal/config"
	"github.com/afoley587/coding-challenges-2025/usersync/internal/server"
	"github.com/afoley587/coding-challenges-2025/usersync/internal/store"
)

var (
	// server network config
	listenAddr string
	backend    string

	// redis config
	redisAddr     string
	redisPassword string

	// sql config
	sqlitePath  string
	postgresDSN string

	// TLS/mTLS flags
	serverCertFile string
	serverKeyFile  string
	serverCAFile   string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the users API",
	Long:  "Commands related to running the users REST API.",
}

var runServerCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the users API",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context(), cfg.Server)
		if err != nil {
			return err
		}
		defer func() {
			if err := st.Close(); err != nil {
				logger.Warn("closing store failed", zap.Error(err))
			}
		}()

		files := server.TLSFiles{
			CertFile: cfg.Server.TLSCertFile,
			KeyFile:  cfg.Server.TLSKeyFile,
			CAFile:   cfg.Server.TLSCAFile,
		}
		log := logger.With(zap.String("addr", cfg.Server.Addr), zap.String("backend", cfg.Server.Backend))

		switch {
		case files.Enabled():
			log.Info("starting users api with tls", zap.Bool("mtls", files.CAFile != ""))
			return server.RunTLS(cmd.Context(), cfg.Server.Addr, files, st, logger)

		default:
			log.Info("starting users api")
			return server.Run(cmd.Context(), cfg.Server.Addr, st, logger)
		}
	},
}

// openStore connects the configured backend.
func openStore(ctx context.Context, c config.Server) (store.UserStore, error) {
	switch c.Backend {
	case config.BackendMemory:
		return store.NewInMemoryStore(), nil
	case config.BackendRedis:
		st, err := store.NewRedisStore(c.RedisAddr, c.RedisPassword, nil)
		if err != nil {
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		return st, nil
	case config.BackendSQLite:
		return store.NewSQLiteStore(c.SQLitePath)
	case config.BackendPostgres:
		return store.NewPostgresStore(ctx, c.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown backend %q", c.Backend)
	}
}

func init() {

	runServerCmd.Flags().StringVarP(&listenAddr,
		"addr", "a", "0.0.0.0:8080", "Address to listen on")

	runServerCmd.Flags().StringVarP(&backend,
		"backend", "b", config.BackendMemory, "Storage backend (memory, redis, sqlite, postgres)")

	runServerCmd.Flags().StringVarP(&redisAddr,
		"redis-address", "r", "127.0.0.1:6379", "Redis address")

	runServerCmd.Flags().StringVarP(&redisPassword,
		"redis-password", "p", "", "Redis password")

	runServerCmd.Flags().StringVar(&sqlitePath,
		"sqlite-path", "usersync.db", "SQLite database file")

	runServerCmd.Flags().StringVar(&postgresDSN,
		"postgres-dsn", "", "PostgreSQL connection string")

	runServerCmd.Flags().StringVar(&serverCertFile,
		"cert", "", "Path to server certificate (PEM)")

	runServerCmd.Flags().StringVar(&serverKeyFile,
		"key", "", "Path to server private key (PEM)")

	runServerCmd.Flags().StringVar(&serverCAFile,
		"ca", "", "Path to CA certificate for verifying client certificates (PEM); enables mTLS")

	fs := runServerCmd.Flags()
	overrideWith(fs, "addr", func(c *config.Config) { c.Server.Addr = listenAddr })
	overrideWith(fs, "backend", func(c *config.Config) { c.Server.Backend = backend })
	overrideWith(fs, "redis-address", func(c *config.Config) { c.Server.RedisAddr = redisAddr })
	overrideWith(fs, "redis-password", func(c *config.Config) { c.Server.RedisPassword = redisPassword })
	overrideWith(fs, "sqlite-path", func(c *config.Config) { c.Server.SQLitePath = sqlitePath })
	overrideWith(fs, "postgres-dsn", func(c *config.Config) { c.Server.PostgresDSN = postgresDSN })
	overrideWith(fs, "cert", func(c *config.Config) { c.Server.TLSCertFile = serverCertFile })
	overrideWith(fs, "key", func(c *config.Config) { c.Server.TLSKeyFile = serverKeyFile })
	overrideWith(fs, "ca", func(c *config.Config) { c.Server.TLSCAFile = serverCAFile })

	serverCmd.AddCommand(runServerCmd)
	rootCmd.AddCommand(serverCmd)
}
