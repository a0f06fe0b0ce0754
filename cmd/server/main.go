package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"onboarding/internal/platform/config"
	"onboarding/internal/platform/httpserver"
	"onboarding/internal/platform/logger"
	platformmetrics "onboarding/internal/platform/metrics"
	platformredis "onboarding/internal/platform/redis"
	"onboarding/internal/registration/adapters/mock"
	"onboarding/internal/registration/adapters/oneclick"
	"onboarding/internal/registration/adapters/otp"
	"onboarding/internal/registration/handler"
	"onboarding/internal/registration/metrics"
	"onboarding/internal/registration/ports"
	"onboarding/internal/registration/service"
	"onboarding/internal/registration/store"
	"onboarding/pkg/platform/audit"
	"onboarding/pkg/platform/audit/kafka"
	"onboarding/pkg/platform/audit/publisher"
	auditmemory "onboarding/pkg/platform/audit/store/memory"
	auditpostgres "onboarding/pkg/platform/audit/store/postgres"
	"onboarding/pkg/platform/audit/worker"
	"onboarding/pkg/platform/tx"
)

// main wires high-level dependencies, exposes the HTTP router and runs the
// background loops until SIGINT or SIGTERM. Business logic lives in the
// internal service packages.
func main() {
	configPath := flag.String("config", os.Getenv("ONBOARDING_CONFIG"), "path to a YAML config file")
	envFile := flag.String("env", ".env", "path to a .env file, ignored when missing")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	sessions, redisClient, err := buildSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	auditSink, err := buildAudit(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer auditSink.close()

	otpGateway, oneClickGateway := buildGateways(cfg)
	svc := service.New(sessions, otpGateway, oneClickGateway,
		service.WithLogger(log),
		service.WithAuditPublisher(auditSink.publisher),
		service.WithMetrics(metrics.New(prometheus.DefaultRegisterer)),
		service.WithRedirectDelay(cfg.Flow.RedirectDelay),
		service.WithCallbackBaseURL(cfg.Flow.CallbackBaseURL),
		service.WithDefaultOTP(cfg.Flow.DefaultOTP),
		service.WithContent(ports.Content{Title: cfg.Flow.ContentTitle, Description: cfg.Flow.ContentBody}),
	)
	defer svc.Close()

	httpMetrics := platformmetrics.New(prometheus.DefaultRegisterer)
	router := chi.NewRouter()
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())
	handler.New(svc, log, httpMetrics, cfg.Server.RequestTimeout).Register(router)

	srv := httpserver.New(cfg.Server.Addr, router, cfg.Server.RequestTimeout+cfg.Server.RequestTimeout/2)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting onboarding server", "addr", cfg.Server.Addr, "mock_gateways", cfg.Gateways.Mock)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return svc.RunJanitor(gctx, cfg.Session.JanitorInterval)
	})
	if auditSink.worker != nil {
		g.Go(func() error {
			return auditSink.worker.Run(gctx)
		})
	}
	return g.Wait()
}

func buildSessionStore(ctx context.Context, cfg config.Config) (service.Store, *platformredis.Client, error) {
	client, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return store.NewInMemory(cfg.Session.TTL), nil, nil
	}
	return store.NewRedis(client.Client, cfg.Session.TTL), client, nil
}

func buildGateways(cfg config.Config) (ports.OtpGateway, ports.OneClickGateway) {
	gw := cfg.Gateways
	if gw.Mock {
		return mock.NewOtpGateway(gw.MockLatency), mock.NewOneClickGateway(gw.MockLatency, gw.WalletURL)
	}
	return otp.New(gw.OtpURL, gw.OtpAPIKey, gw.Timeout), oneclick.New(gw.OneClickURL, gw.OneClickKey, gw.Timeout)
}

// auditPipeline is the audit publisher plus whatever it needs torn down.
type auditPipeline struct {
	publisher *publisher.Publisher
	worker    *worker.Worker
	closers   []func()
}

// close drains the publisher before tearing down the sinks it writes to.
func (p *auditPipeline) close() {
	p.publisher.Close()
	p.closeAll()
}

// buildAudit picks the audit sink. Kafka brokers make the publisher produce
// to the topic, with a worker draining it into Postgres when a DSN is set.
// A DSN alone writes to Postgres directly. Otherwise events stay in memory.
func buildAudit(ctx context.Context, cfg config.Config, log *slog.Logger) (*auditPipeline, error) {
	ac := cfg.Audit
	dropped := promauto.NewCounter(prometheus.CounterOpts{
		Name: "onboarding_audit_events_dropped_total",
		Help: "Audit events dropped because the publisher buffer was full",
	})
	opts := []publisher.Option{
		publisher.WithLogger(log),
		publisher.WithAsyncBuffer(ac.BufferSize),
		publisher.WithDroppedCounter(dropped),
	}
	p := &auditPipeline{}

	var pg *auditpostgres.Store
	var db *sql.DB
	if ac.PostgresDSN != "" {
		var err error
		db, err = sql.Open("postgres", ac.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open audit database: %w", err)
		}
		p.closers = append(p.closers, func() { _ = db.Close() })
		if err := db.PingContext(ctx); err != nil {
			p.closeAll()
			return nil, fmt.Errorf("ping audit database: %w", err)
		}
		pg = auditpostgres.New(db)
		if err := pg.Migrate(ctx); err != nil {
			p.closeAll()
			return nil, fmt.Errorf("migrate audit database: %w", err)
		}
	}

	var sink audit.Store
	switch {
	case len(ac.KafkaBrokers) > 0:
		if err := kafka.EnsureTopic(ctx, ac.KafkaBrokers, ac.KafkaTopic, 3, 1); err != nil {
			p.closeAll()
			return nil, fmt.Errorf("ensure audit topic: %w", err)
		}
		producer, err := kafka.NewSink(ac.KafkaBrokers, ac.KafkaTopic)
		if err != nil {
			p.closeAll()
			return nil, fmt.Errorf("audit kafka sink: %w", err)
		}
		p.closers = append(p.closers, producer.Close)
		sink = producer
		if pg != nil {
			consumer, err := kafka.NewConsumer(ac.KafkaBrokers, ac.KafkaTopic, ac.KafkaGroup, kafka.WithLogger(log))
			if err != nil {
				p.closeAll()
				return nil, fmt.Errorf("audit kafka consumer: %w", err)
			}
			p.closers = append(p.closers, consumer.Close)
			p.worker = worker.NewWorker(pg, consumer, log, worker.WithBatchRunner(func(ctx context.Context, fn func(ctx context.Context) error) error {
				return tx.Run(ctx, db, fn)
			}))
		}
	case pg != nil:
		sink = pg
	default:
		sink = auditmemory.NewInMemoryStore()
	}

	p.publisher = publisher.NewPublisher(sink, opts...)
	return p, nil
}

func (p *auditPipeline) closeAll() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}
