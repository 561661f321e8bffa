package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"correio/internal/audit"
	auditkafka "correio/internal/audit/kafka"
	auditmemory "correio/internal/audit/store/memory"
	auditpostgres "correio/internal/audit/store/postgres"
	"correio/internal/jwttoken"
	"correio/internal/moderation"
	"correio/internal/platform/config"
	"correio/internal/platform/httpserver"
	"correio/internal/platform/logger"
	"correio/internal/platform/metrics"
	platformredis "correio/internal/platform/redis"
	"correio/internal/relay"
	"correio/internal/relay/ratelimit"
	"correio/internal/relay/scheduler"
	relayservice "correio/internal/relay/service"
	relaymemory "correio/internal/relay/store/memory"
	relaypostgres "correio/internal/relay/store/postgres"
	"correio/internal/reply"
	replyservice "correio/internal/reply/service"
	replymemory "correio/internal/reply/store/memory"
	replyredis "correio/internal/reply/store/redis"
	"correio/internal/reveal"
	revealservice "correio/internal/reveal/service"
	revealmemory "correio/internal/reveal/store/memory"
	revealpostgres "correio/internal/reveal/store/postgres"
	httptransport "correio/internal/transport/http"
	"correio/internal/transport/telegram"
)

// main wires dependencies and runs the HTTP server, the publication
// scheduler and the audit outbox worker under one lifecycle. Business logic
// lives in the internal services packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Stores. Without a database URL everything runs in memory, which is
	// enough for local development but loses state on restart.
	var (
		db           *sql.DB
		relayStore   relay.Store
		revealStore  reveal.Store
		auditStore   audit.Store
		outboxSource audit.OutboxSource
	)
	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("pinging database: %w", err)
		}

		rs := relaypostgres.New(db)
		ps := revealpostgres.New(db, cfg.Reveal.RequestTTL)
		as := auditpostgres.New(db)
		for _, ensure := range []func(context.Context) error{rs.EnsureSchema, ps.EnsureSchema, as.EnsureSchema} {
			if err := ensure(ctx); err != nil {
				return fmt.Errorf("ensuring schema: %w", err)
			}
		}
		relayStore, revealStore, auditStore, outboxSource = rs, ps, as, as
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		relayStore = relaymemory.New()
		revealStore = revealmemory.New(cfg.Reveal.RequestTTL)
		auditStore = auditmemory.New()
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	var associations reply.AssociationStore
	if redisClient != nil {
		defer redisClient.Close()
		associations = replyredis.New(redisClient.Client)
	} else {
		log.Warn("REDIS_URL not set, using in-memory reply associations")
		associations = replymemory.New()
	}

	chat, err := telegram.New(cfg.Telegram, log)
	if err != nil {
		return fmt.Errorf("connecting to telegram: %w", err)
	}

	auditPublisher := audit.NewPublisher(auditStore)

	// Domain services.
	limiter := ratelimit.New(relayStore, cfg.Relay.DailyQuota)
	submitSvc, err := relayservice.New(relayStore, limiter,
		relayservice.WithLogger(log), relayservice.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("building submission service: %w", err)
	}

	sched, err := scheduler.New(relayStore, chat, cfg.Relay.ChannelName,
		scheduler.WithPeriod(cfg.Relay.PublishPeriod),
		scheduler.WithStagger(cfg.Relay.PublishStagger),
		scheduler.WithLogger(log),
		scheduler.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("building scheduler: %w", err)
	}

	confirmer, err := revealservice.NewManualConfirmer(chat, cfg.Reveal.ApproverID, log)
	if err != nil {
		return fmt.Errorf("building confirmer: %w", err)
	}
	revealSvc, err := revealservice.New(revealStore, relayStore, chat, confirmer, cfg.Reveal,
		revealservice.WithLogger(log),
		revealservice.WithMetrics(m),
		revealservice.WithAuditPublisher(auditPublisher))
	if err != nil {
		return fmt.Errorf("building reveal service: %w", err)
	}

	replySvc, err := replyservice.New(associations, relayStore, chat,
		replyservice.WithLogger(log), replyservice.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("building reply service: %w", err)
	}

	moderationSvc, err := moderation.New(relayStore,
		moderation.WithLogger(log),
		moderation.WithMetrics(m),
		moderation.WithAuditPublisher(auditPublisher))
	if err != nil {
		return fmt.Errorf("building moderation service: %w", err)
	}

	// HTTP surface.
	checks := map[string]httptransport.HealthCheck{}
	if db != nil {
		checks["postgres"] = db.PingContext
	}
	if redisClient != nil {
		checks["redis"] = redisClient.Health
	}
	jwtSvc := jwttoken.NewJWTService(cfg.JWTSigningKey, "correio")
	router := httptransport.NewRouter(httptransport.Deps{
		Submission:   submitSvc,
		Publication:  sched,
		Moderation:   moderationSvc,
		Messages:     relayStore,
		Reply:        replySvc,
		Reveal:       revealSvc,
		Logger:       log,
		JWTValidator: jwtSvc,
		HealthChecks: checks,
	})
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		handle := sched.Start(ctx)
		<-ctx.Done()
		handle.Stop()
		return nil
	})

	// Audit relay: only meaningful with a durable outbox and brokers.
	if outboxSource != nil && len(cfg.Kafka.Brokers) > 0 {
		sink, err := auditkafka.New(ctx, cfg.Kafka)
		if err != nil {
			return fmt.Errorf("connecting to kafka: %w", err)
		}
		defer sink.Close()
		worker := audit.NewWorker(outboxSource, sink, 0, log)
		g.Go(func() error {
			return worker.Run(ctx)
		})
	} else {
		log.Warn("audit relay disabled", "outbox", outboxSource != nil, "brokers", len(cfg.Kafka.Brokers))
	}

	log.Info("correio started", "channel", cfg.Relay.ChannelName)
	return g.Wait()
}
