package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"gitlab.com/baseline-2025.net/internal/adapter/crypto"
	"gitlab.com/baseline-2025.net/internal/config"
	logger2 "gitlab.com/baseline-2025.net/internal/global/logger"
	http2 "gitlab.com/baseline-2025.net/internal/http"
	"gitlab.com/baseline-2025.net/internal/schedulerengine"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger2.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:           "baseline",
		Short:         "Batch lifecycle and comparison job pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return fmt.Errorf("load %s: %w", envFile, err)
				}
			}
			if os.Getenv("DEBUG_MODE") == "true" {
				logger2.UseDevelopment()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env", "", "dotenv file to load before reading configuration")

	root.AddCommand(newServeCmd(), newWorkerCmd(), newMigrateCmd(), newTokenCmd())
	return root
}

// loadConfig reads the environment and the comparison/promotion policy
func loadConfig() (*config.AppConfig, *config.Policy, error) {
	sysCfg := config.NewSystemConfig()
	policy, err := config.LoadPolicy(sysCfg.PolicyFile)
	if err != nil {
		return nil, nil, err
	}
	return sysCfg, policy, nil
}

func newServeCmd() *cobra.Command {
	var (
		withWorker bool
		migrate    bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the maintenance loops",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logger2.Logger
			defer logger.Sync()

			sysCfg, policy, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if migrate && sysCfg.StorageConfig.Backend == config.BackendPostgres {
				if err := runMigrations(ctx, sysCfg.PostgresConfig, logger); err != nil {
					return err
				}
			}

			p, err := openPorts(ctx, sysCfg, logger)
			if err != nil {
				logger.Error("Failed to open storage", "error", err)
				return err
			}
			defer p.Close()
			svc := buildServices(sysCfg, policy, p, logger)

			httpCfg := sysCfg.HTTPConfig
			provider := http2.NewServiceProvider(svc.intake, svc.suites, svc.batches, svc.queue, svc.registry, svc.jwt)
			server := http2.NewServer(httpCfg.Port, httpCfg.ServiceName, *provider, logger)
			if err := server.Init(); err != nil {
				return err
			}
			server.Start(ctx)

			done := make(chan struct{})
			engine := schedulerengine.NewSchedulerEngine(sysCfg.EngineCfg, svc.queue, svc.batches, svc.registry, logger)
			go func() {
				defer close(done)
				engine.Run(ctx)
			}()

			// a memory backend cannot be shared with a separate worker process
			if withWorker || sysCfg.StorageConfig.Backend == config.BackendMemory {
				w := svc.newWorker(sysCfg, logger)
				go func() {
					if err := w.Run(ctx); err != nil {
						logger.Error("Embedded worker stopped", "error", err)
					}
				}()
			}

			<-ctx.Done()
			logger.Info("Shutting down server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Stop(shutdownCtx); err != nil {
				logger.Error("Server forced to shutdown", "error", err)
			}
			<-done
			logger.Info("successfully shutdown server")
			return nil
		},
	}
	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "run a comparison worker in this process")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply database migrations before serving")
	return cmd
}

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run a comparison worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logger2.Logger
			defer logger.Sync()

			sysCfg, policy, err := loadConfig()
			if err != nil {
				return err
			}
			if sysCfg.StorageConfig.Backend == config.BackendMemory {
				return errors.New("a standalone worker needs a shared storage backend; use serve --with-worker")
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p, err := openPorts(ctx, sysCfg, logger)
			if err != nil {
				logger.Error("Failed to open storage", "error", err)
				return err
			}
			defer p.Close()

			w := buildServices(sysCfg, policy, p, logger).newWorker(sysCfg, logger)
			return w.Run(ctx)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logger2.Logger
			defer logger.Sync()
			return runMigrations(cmd.Context(), config.NewPostgresConfig(), logger)
		},
	}
}

func newTokenCmd() *cobra.Command {
	var (
		subject string
		team    string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			jwtCfg := config.NewJwtConfig()
			if jwtCfg.Secret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			claims := map[string]interface{}{"sub": subject}
			if team != "" {
				claims["team"] = team
			}
			token, err := crypto.NewJWTService(jwtCfg).GenerateTokenHMAC(cmd.Context(), "HS256", claims)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "operator name recorded in audit entries")
	cmd.Flags().StringVar(&team, "team", "", "restrict the token to one team")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
