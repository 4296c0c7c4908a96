package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sevakart/sevakart-backend/api/controllers/health"
	"github.com/sevakart/sevakart-backend/api/routes"
	"github.com/sevakart/sevakart-backend/internal/auth"
	"github.com/sevakart/sevakart-backend/internal/balance"
	"github.com/sevakart/sevakart-backend/internal/bookings"
	"github.com/sevakart/sevakart-backend/internal/cart"
	"github.com/sevakart/sevakart-backend/internal/clients"
	"github.com/sevakart/sevakart-backend/internal/inventory"
	"github.com/sevakart/sevakart-backend/internal/ledger"
	"github.com/sevakart/sevakart-backend/internal/orders"
	"github.com/sevakart/sevakart-backend/internal/referral"
	"github.com/sevakart/sevakart-backend/internal/users"
	"github.com/sevakart/sevakart-backend/internal/wallet"
	"github.com/sevakart/sevakart-backend/pkg/config"
	"github.com/sevakart/sevakart-backend/pkg/db"
	"github.com/sevakart/sevakart-backend/pkg/logger"
	"github.com/sevakart/sevakart-backend/pkg/migrate"
	"github.com/sevakart/sevakart-backend/pkg/outbox"
	"github.com/sevakart/sevakart-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	deps, err := buildServices(cfg, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}
	deps.Config = cfg
	deps.Logger = logg
	deps.Redis = redisClient
	deps.Pingers = map[string]health.Pinger{
		"database": dbClient,
		"redis":    redisClient,
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"tx_supported": cfg.FeatureFlags.TxSupported,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(deps),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

// buildServices wires the full domain stack. Inventory goes through the
// remote client when a products URL is configured, which also means stock
// writes cannot join the local order transaction.
func buildServices(cfg *config.Config, dbClient *db.Client, logg *logger.Logger) (routes.Deps, error) {
	var deps routes.Deps

	gdb := dbClient.DB()
	txSupported := cfg.FeatureFlags.TxSupported

	var inventorySvc inventory.Service
	if cfg.Remotes.ProductsURL != "" {
		remote, err := clients.NewInventoryClient(cfg.Remotes)
		if err != nil {
			return deps, err
		}
		inventorySvc = remote
		txSupported = false
	} else {
		local, err := inventory.NewService(inventory.NewRepository(gdb))
		if err != nil {
			return deps, err
		}
		inventorySvc = local
	}

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(gdb))
	if err != nil {
		return deps, err
	}
	balanceSvc, err := balance.NewService(balance.NewRepository(gdb))
	if err != nil {
		return deps, err
	}

	emitter := outbox.NewService(outbox.NewRepository(gdb), logg)

	walletSvc, err := wallet.NewService(wallet.Params{
		Runner:      dbClient,
		Ledger:      ledgerSvc,
		Balances:    balanceSvc,
		Emitter:     emitter,
		Logger:      logg,
		TxSupported: txSupported,
	})
	if err != nil {
		return deps, err
	}

	usersRepo := users.NewRepository(gdb)
	usersSvc, err := users.NewService(usersRepo)
	if err != nil {
		return deps, err
	}

	cartSvc, err := cart.NewService(cart.NewRepository(gdb), inventorySvc)
	if err != nil {
		return deps, err
	}

	var paymentsClient *clients.PaymentsClient
	if cfg.Remotes.PaymentsURL != "" {
		paymentsClient, err = clients.NewPaymentsClient(cfg.Remotes)
		if err != nil {
			return deps, err
		}
	}
	var ordersPayments orders.PaymentsReader
	var bookingsPayments bookings.PaymentsReader
	if paymentsClient != nil {
		ordersPayments = paymentsClient
		bookingsPayments = paymentsClient
	}

	ordersSvc, err := orders.NewService(orders.Params{
		Runner:      dbClient,
		Repo:        orders.NewRepository(gdb),
		Cart:        cartSvc,
		Inventory:   inventorySvc,
		Ledger:      ledgerSvc,
		Balances:    balanceSvc,
		Emitter:     emitter,
		Payments:    ordersPayments,
		Logger:      logg,
		TxSupported: txSupported,
	})
	if err != nil {
		return deps, err
	}

	bookingsSvc, err := bookings.NewService(bookings.NewRepository(gdb), bookingsPayments, logg)
	if err != nil {
		return deps, err
	}

	referralSvc, err := referral.NewService(referral.Params{
		Runner:      dbClient,
		Repo:        referral.NewRepository(gdb),
		Users:       usersSvc,
		UsersRepo:   usersRepo,
		Ledger:      ledgerSvc,
		Balances:    balanceSvc,
		Emitter:     emitter,
		Logger:      logg,
		BonusCoins:  cfg.Referral.BonusCoins,
		TxSupported: txSupported,
	})
	if err != nil {
		return deps, err
	}

	authSvc, err := auth.NewService(auth.Params{
		Users:     usersSvc,
		UsersRepo: usersRepo,
		Referrals: referralSvc,
		JWT:       cfg.JWT,
		Password:  cfg.Password,
		Logger:    logg,
	})
	if err != nil {
		return deps, err
	}

	deps.Auth = authSvc
	deps.Wallet = walletSvc
	deps.Orders = ordersSvc
	deps.Bookings = bookingsSvc
	deps.Cart = cartSvc
	deps.Referral = referralSvc
	return deps, nil
}
