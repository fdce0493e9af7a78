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

	"github.com/ariefcatur/go-appliance-care/internal/config"
	kafkax "github.com/ariefcatur/go-appliance-care/internal/kafka"
	"github.com/ariefcatur/go-appliance-care/internal/notify"
	"github.com/ariefcatur/go-appliance-care/internal/postgres"
	"github.com/ariefcatur/go-appliance-care/internal/redisx"
	"github.com/ariefcatur/go-appliance-care/internal/users"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
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
		With("service", cfg.App.Name+"-notifier")
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("notifier stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb, err := redisx.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	var mailer notify.Mailer = notify.LogMailer{Log: log}
	if cfg.Mail.Host != "" {
		smtp, err := notify.NewSMTPMailer(notify.SMTPOptions{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
			Timeout:  cfg.Mail.Timeout,
		})
		if err != nil {
			return err
		}
		mailer = smtp
	} else {
		log.Warn("SMTP_HOST not set, emails are only logged")
	}

	handler := notify.NewMailHandler(
		notify.NewRedisDeduper(rdb, cfg.Kafka.GroupID),
		&users.Repo{DB: db},
		mailer,
		log,
	)
	consumer := kafkax.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topic, cfg.Kafka.Workers, log)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	metricsSrv := &http.Server{Addr: cfg.Notifier.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("consumer started", "group", cfg.Kafka.GroupID, "topic", cfg.Kafka.Topic, "workers", cfg.Kafka.Workers)
		return consumer.Start(gctx, handler.Handle)
	})
	g.Go(func() error {
		log.Info("metrics listening", "addr", cfg.Notifier.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
