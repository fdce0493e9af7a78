package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-appliance-care/internal/auth"
	"github.com/ariefcatur/go-appliance-care/internal/bookings"
	"github.com/ariefcatur/go-appliance-care/internal/catalog"
	"github.com/ariefcatur/go-appliance-care/internal/config"
	"github.com/ariefcatur/go-appliance-care/internal/httpx"
	kafkax "github.com/ariefcatur/go-appliance-care/internal/kafka"
	"github.com/ariefcatur/go-appliance-care/internal/notify"
	"github.com/ariefcatur/go-appliance-care/internal/orders"
	"github.com/ariefcatur/go-appliance-care/internal/payments"
	"github.com/ariefcatur/go-appliance-care/internal/postgres"
	"github.com/ariefcatur/go-appliance-care/internal/realtime"
	"github.com/ariefcatur/go-appliance-care/internal/redisx"
	"github.com/ariefcatur/go-appliance-care/internal/tracking"
	"github.com/ariefcatur/go-appliance-care/internal/users"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()})).
		With("service", cfg.App.Name)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("api stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}

	// Redis
	rdb, err := redisx.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	// Kafka producer outlives the HTTP server so late notifications still flush.
	prodCtx, stopProducer := context.WithCancel(context.Background())
	defer stopProducer()
	prod := kafkax.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Buffer, log)
	prod.Start(prodCtx)

	hub := realtime.NewHub(64, log.With("component", "realtime"))
	broker := realtime.NewRedisBroker(rdb, hub, log.With("component", "realtime-broker"))
	dispatcher := notify.NewDispatcher(broker, prod, cfg.App.Name, log)

	tokens := auth.NewTokens([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	tx := postgres.NewTxManager(db)
	catalogRepo := &catalog.Repo{DB: db}

	userSvc := users.NewService(&users.Repo{DB: db}, tx, tokens)
	catalogSvc := catalog.New(catalogRepo)
	orderSvc := orders.NewService(&orders.Repo{DB: db}, catalogRepo, tx, dispatcher)
	bookingSvc := bookings.NewService(&bookings.Repo{DB: db}, catalogSvc, userSvc, tx, dispatcher)
	trackingSvc := tracking.NewService(tracking.NewRedisStore(rdb), bookingSvc, dispatcher)
	paymentSvc := payments.NewService(
		&payments.Repo{DB: db},
		payments.NewRazorpayClient(cfg.Payment.BaseURL, cfg.Payment.KeyID, cfg.Payment.KeySecret),
		bookingSvc, orderSvc, tx, dispatcher,
		payments.Keys{KeyID: cfg.Payment.KeyID, KeySecret: cfg.Payment.KeySecret, Currency: cfg.Payment.Currency},
	)

	router := httpx.NewRouter(httpx.Deps{
		Log:            log,
		Tokens:         tokens,
		Users:          userSvc,
		Catalog:        catalogSvc,
		Orders:         orderSvc,
		Bookings:       bookingSvc,
		Payments:       paymentSvc,
		Tracking:       trackingSvc,
		Hub:            hub,
		Idempotency:    httpx.NewRedisIdempotencyStore(rdb),
		RequestTimeout: cfg.HTTP.RequestTimeout,
	})
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return broker.Run(gctx)
	})
	g.Go(func() error {
		log.Info("http listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// hijacked WebSocket connections are not tracked by Shutdown
		hub.Close()
		return srv.Shutdown(shutdownCtx)
	})
	err = g.Wait()

	dispatcher.Wait()
	stopProducer()
	prod.WaitClosed()
	return err
}
