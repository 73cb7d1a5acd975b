package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/Gobusters/ectologger"
	"github.com/spf13/cobra"

	"rentflow/agreement"
	"rentflow/config"
	"rentflow/db"
	"rentflow/gateway"
	"rentflow/identity"
	"rentflow/logging"
	"rentflow/notify"
	"rentflow/payment"
	"rentflow/rental"
)

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rentflow",
		Short:         "Rental marketplace agreement and payment API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), migrateCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down] [version]",
		Short:     "Apply or roll back database migrations",
		Args:      cobra.RangeArgs(0, 2),
		ValidArgs: []string{"up", "down"},
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errors.New("config: database.url is required")
			}

			direction := "up"
			if len(args) > 0 {
				direction = args[0]
			}
			switch direction {
			case "up":
				var target uint64
				if len(args) == 2 {
					target, err = strconv.ParseUint(args[1], 10, 32)
					if err != nil {
						return fmt.Errorf("migrate: parse version %q: %w", args[1], err)
					}
				}
				return db.Migrate(cfg.Database.URL, uint(target), logger)
			case "down":
				return db.MigrateDown(cfg.Database.URL, logger)
			default:
				return fmt.Errorf("migrate: unknown direction %q", direction)
			}
		},
	}
}

func setup() (config.Config, ectologger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func serve(ctx context.Context, cfg config.Config, logger ectologger.Logger) error {
	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	gw, err := newGateway(cfg.Gateway)
	if err != nil {
		return err
	}

	notifier, closeNotifier := newNotifier(cfg.Kafka, logger)
	defer closeNotifier()
	dispatcher := notify.NewDispatcher(notifier, logger)

	users := identity.NewRepository(pool)
	clientURL := strings.TrimRight(cfg.Server.ClientURL, "/")

	srv := &Server{
		rentals: rental.NewService(pool, nil, users, logger),
		agreements: agreement.NewService(pool, agreement.Deps{
			Users:    users,
			Notifier: dispatcher,
			Logger:   logger,
			Links: agreement.Links{
				LandlordAgreements: clientURL + "/landlord/agreements",
				TenantAgreements:   clientURL + "/tenant/agreements",
			},
		}),
		payments: payment.NewService(pool, payment.Deps{
			Users:          users,
			Gateway:        gw,
			Notifier:       dispatcher,
			Logger:         logger,
			GatewayTimeout: cfg.Gateway.Timeout,
		}),
		users:    identity.NewService(pool, users, logger),
		verifier: identity.NewTokenVerifier(cfg.Auth.JWTSecret),
		logger:   logger,
		ready:    pool.Ping,
	}
	e := srv.Handler()

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.Server.Addr).Info("rentflow api listening")
		if err := e.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func newGateway(cfg config.GatewayConfig) (gateway.Gateway, error) {
	switch cfg.Provider {
	case "sslcommerz":
		return gateway.Instrument(gateway.NewSSLCommerz(gateway.SSLCommerzConfig{
			StoreID:       cfg.StoreID,
			StorePassword: cfg.StorePassword,
			Live:          cfg.Live,
			ValidationURL: cfg.ValidationURL,
			FailURL:       cfg.FailURL,
			CancelURL:     cfg.CancelURL,
		}, &http.Client{Timeout: cfg.Timeout}), cfg.Provider), nil
	case "midtrans":
		return gateway.Instrument(gateway.NewMidtrans(cfg.MidtransServerKey, cfg.Live), cfg.Provider), nil
	default:
		return nil, fmt.Errorf("gateway: unsupported provider %q", cfg.Provider)
	}
}

// newNotifier publishes to Kafka when brokers are configured and logs otherwise.
func newNotifier(cfg config.KafkaConfig, logger ectologger.Logger) (notify.Notifier, func()) {
	if len(cfg.Brokers) == 0 {
		return notify.NewLogNotifier(logger), func() {}
	}
	n := notify.NewKafkaNotifier(notify.NewKafkaWriter(cfg.Brokers), cfg.Topic)
	return n, func() {
		if err := n.Close(); err != nil {
			logger.WithError(err).Warn("close kafka writer")
		}
	}
}
