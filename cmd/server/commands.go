package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/warp/wallet-ledger/api"
	"github.com/warp/wallet-ledger/config"
	"github.com/warp/wallet-ledger/ledger"
	"github.com/warp/wallet-ledger/store/postgres"
	"github.com/warp/wallet-ledger/store/sqldb"
	"github.com/warp/wallet-ledger/store/sqlite"
)

// =============================================================================
// SERVE
// =============================================================================

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.RequireAuth(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts, err := ledgerOptions(cfg, logger)
	if err != nil {
		return err
	}
	opts = append(opts, ledger.WithMetrics(ledger.NewMetrics(reg)))

	if cfg.Ledger.AuditInterval > 0 {
		auditor := ledger.NewAuditor(store, cfg.Ledger.AuditInterval, opts...)
		auditor.Register(reg)
		auditor.Start()
		defer auditor.Stop()
	}

	handler := api.NewHandler(store, logger, opts...)
	router := api.NewRouter(handler, api.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
		Auth:           api.NewAuth(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Health:         store.Ping,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"addr", server.Addr,
			"driver", cfg.Database.Driver,
			"week_start", cfg.Ledger.WeekStart,
			"timezone", cfg.Ledger.Timezone)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// =============================================================================
// MIGRATE / SEED / TOKEN
// =============================================================================

func newMigrateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			// opening already migrates; run again so the command is explicit
			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", store.Dialect().Name())
			return nil
		},
	}
}

func newSeedCommand(configPath *string) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the default wallets and categories for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			opts, err := ledgerOptions(cfg, cfg.Log.NewLogger(os.Stderr))
			if err != nil {
				return err
			}
			res, err := ledger.NewCatalog(store, opts...).SeedDefaults(cmd.Context(), ledger.UserID(userID))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, w := range res.Wallets {
				fmt.Fprintf(out, "wallet    %s  %s (%s)\n", w.ID, w.Name, w.Type)
			}
			for _, c := range res.Categories {
				fmt.Fprintf(out, "category  %s  %s\n", c.ID, c.Name)
			}
			fmt.Fprintf(out, "created %d wallet(s), %d category(ies)\n", len(res.Wallets), len(res.Categories))
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newTokenCommand(configPath *string) *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.RequireAuth(); err != nil {
				return err
			}
			if ttl == 0 {
				ttl = cfg.Auth.TokenTTL
			}
			tok, err := api.NewAuth(cfg.Auth.JWTSecret, cfg.Auth.Issuer).IssueToken(ledger.UserID(userID), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default: auth.token_ttl)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// =============================================================================
// HELPERS
// =============================================================================

func openStore(ctx context.Context, cfg *config.Config) (*sqldb.Store, error) {
	db := cfg.Database
	var (
		store *sqldb.Store
		err   error
	)
	switch db.Driver {
	case "postgres":
		store, err = postgres.New(ctx, db.DSN, postgres.Options{
			MaxOpenConns:    db.MaxOpenConns,
			MaxIdleConns:    db.MaxIdleConns,
			ConnMaxLifetime: db.ConnMaxLifetime,
		})
	default:
		store, err = sqlite.New(ctx, db.DSN, sqlite.Options{BusyTimeout: db.BusyTimeout})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s database: %w", db.Driver, err)
	}
	return store, nil
}

func ledgerOptions(cfg *config.Config, logger *slog.Logger) ([]ledger.Option, error) {
	weekStart, err := cfg.WeekStart()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return []ledger.Option{
		ledger.WithLogger(logger),
		ledger.WithWeekStart(weekStart),
		ledger.WithLocation(loc),
	}, nil
}
