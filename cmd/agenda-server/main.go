package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"agenda/backend/internal/config"
	"agenda/backend/internal/mail"
	"agenda/backend/internal/metrics"
	"agenda/backend/internal/notify"
	"agenda/backend/internal/notify/feed"
	"agenda/backend/internal/queue"
	"agenda/backend/internal/service/appointments"
	"agenda/backend/internal/store/postgres"
	httpTransport "agenda/backend/internal/transport/http"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "agenda-server"),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", "agenda-server"),
	)
	slog.SetDefault(log)

	log.Info("starting", slog.String("http_addr", cfg.HTTPAddr), slog.String("log_level", cfg.LogLevel))

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		os.Exit(1)
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mongoCtx, cancelMongo := context.WithTimeout(ctx, 10*time.Second)
	mongoClient, err := mongo.Connect(mongoCtx, options.Client().ApplyURI(cfg.MongoURL))
	cancelMongo()
	if err != nil {
		log.Error("mongo connection failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Warn("mongo disconnect failed", slog.Any("err", err))
		}
	}()

	notificationFeed, err := feed.New(mongoClient, cfg.MongoDatabase, cfg.PageSize)
	if err != nil {
		log.Error("notification feed setup failed", slog.Any("err", err))
		os.Exit(1)
	}

	redisClient := queue.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Warn("redis close failed", slog.Any("err", err))
		}
	}()
	mailQueue := queue.New(redisClient)

	sender := mail.NewGomailSender(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
		FromName: cfg.MailFromName,
	})
	worker := queue.NewWorker(redisClient, sender, log)
	go worker.Run(ctx)

	dispatcher := notify.NewDispatcher(notificationFeed, mailQueue, log)

	repo := postgres.NewBookingRepo(db)
	svc := appointments.NewService(repo, dispatcher, appointments.Config{
		CancellationWindow: cfg.CancellationWindow,
		PageSize:           cfg.PageSize,
		DayStartHour:       cfg.DayStartHour,
		DayEndHour:         cfg.DayEndHour,
	}, log)

	metrics.Register()

	apiServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpTransport.NewServer(svc, notificationFeed, log).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- apiServer.ListenAndServe()
	}()
	go func() {
		errCh <- metricsServer.ListenAndServe()
	}()

	log.Info("http server started", slog.String("http_addr", cfg.HTTPAddr), slog.String("metrics_addr", cfg.MetricsAddr))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped with error", slog.Any("err", err))
		}
	}
	shutdown(log, cfg.ShutdownTimeout, apiServer, metricsServer)
}

func shutdown(log *slog.Logger, timeout time.Duration, servers ...*http.Server) {
	log.Info("shutting down http servers", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for _, s := range servers {
		if err := s.Shutdown(ctx); err != nil {
			log.Warn("http shutdown incomplete; forcing close", slog.Any("err", err))
			_ = s.Close()
		}
	}
	log.Info("http servers stopped")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
