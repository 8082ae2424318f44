// Command server hosts the privacy core: the pseudonym vault, transcript
// redaction, small-group suppression, and the dual-control reidentification
// workflow. Domain operations are invoked in process by the surrounding
// platform; over HTTP the binary exposes only /healthz and /metrics.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"runadata/internal/disclosure"
	"runadata/internal/insight"
	"runadata/internal/platform/config"
	"runadata/internal/platform/httpserver"
	"runadata/internal/platform/logger"
	"runadata/internal/platform/metrics"
	redisclient "runadata/internal/platform/redis"
	"runadata/internal/redaction"
	reidentservice "runadata/internal/reident/service"
	reidentstore "runadata/internal/reident/store"
	"runadata/internal/vault/keyset"
	vaultservice "runadata/internal/vault/service"
	vaultstore "runadata/internal/vault/store"
	"runadata/pkg/platform/audit"
)

func main() {
	log := logger.New()
	if err := run(log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	m := metrics.New()

	// Stores: Postgres when a DSN is configured, in-memory otherwise.
	var (
		mappings    vaultstore.Store
		requests    reidentstore.Store
		insights    insight.Store
		transcripts redaction.TranscriptStore
	)
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		mappings = vaultstore.NewPostgres(db)
		requests = reidentstore.NewPostgres(db)
		insights = insight.NewPostgresStore(db)
		transcripts = redaction.NewPostgresTranscriptStore(db)
	} else {
		log.Warn("no postgres dsn configured, using in-memory stores")
		mappings = vaultstore.NewMemoryStore()
		requests = reidentstore.NewMemoryStore()
		insights = insight.NewMemoryStore()
		transcripts = redaction.NewMemoryTranscriptStore()
	}

	// Audit trail: Kafka sink and Redis spill overflow when configured.
	var sink audit.Sink
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			return err
		}
		defer kafkaSink.Close()
		sink = kafkaSink
	} else {
		log.Warn("no kafka brokers configured, audit events stay in memory")
		sink = audit.NewMemorySink()
	}
	trailOpts := []audit.Option{
		audit.WithLogger(log),
		audit.WithDropCallback(func(n int) { m.AuditEventsDropped.Add(float64(n)) }),
	}
	if cfg.RedisAddr != "" {
		rdb, err := redisclient.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		trailOpts = append(trailOpts, audit.WithSpill(audit.NewRedisSpill(rdb)))
	}
	trail := audit.NewTrail(sink, trailOpts...)

	// Services. The registry and the workflow reference each other, so the
	// approval gate is bound after both exist.
	keyring, err := keyset.NewKeyring(cfg.VaultMasterKey)
	if err != nil {
		return err
	}
	registry := vaultservice.New(mappings, keyring,
		vaultservice.WithLogger(log),
		vaultservice.WithAuditTrail(trail),
	)
	receipts, err := disclosure.NewIssuer(cfg.ReceiptSigningKey, 0)
	if err != nil {
		return err
	}
	workflow := reidentservice.New(requests, registry,
		reidentservice.WithLogger(log),
		reidentservice.WithAuditTrail(trail),
		reidentservice.WithMetrics(m),
		reidentservice.WithRequestTTL(cfg.ReidentRequestTTL),
		reidentservice.WithReceiptIssuer(receipts),
	)
	registry.SetApprovalGate(workflow)

	redactor := redaction.New(transcripts, registry,
		redaction.WithLogger(log),
		redaction.WithAuditTrail(trail),
		redaction.WithMetrics(m),
	)
	suppressor := insight.New(insights,
		insight.WithThreshold(cfg.SmallGroupThreshold),
		insight.WithLogger(log),
		insight.WithAuditTrail(trail),
		insight.WithMetrics(m),
	)

	srv := httpserver.New(cfg.Addr)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("ops server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return trail.Run(ctx) })
	g.Go(func() error { return redactor.Run(ctx, 0) })
	g.Go(func() error { return suppressor.Run(ctx, 0) })
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
