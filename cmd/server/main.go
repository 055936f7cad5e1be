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

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"medvault/internal/catalog"
	"medvault/internal/consent"
	"medvault/internal/grants"
	"medvault/internal/ledger"
	"medvault/internal/notify"
	"medvault/internal/platform/config"
	"medvault/internal/platform/httpserver"
	"medvault/internal/platform/logger"
	"medvault/internal/platform/metrics"
	"medvault/internal/platform/middleware"
	"medvault/internal/platform/redis"
	"medvault/internal/request"
	httptransport "medvault/internal/transport/http"
	"medvault/internal/vault"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	var (
		catalogStore catalog.Store
		requestStore request.Store
		ledgerStore  ledger.Store
		vaultTx      vault.Tx
	)
	if cfg.PostgresURL != "" {
		db, err := sql.Open("pgx", cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		catalogStore = catalog.NewPostgres(db)
		requestStore = request.NewPostgres(db)
		ledgerStore = ledger.NewPostgres(db)
		vaultTx = newPostgresVaultTx(db)
		log.Info("using postgres storage")
	} else {
		catalogStore = catalog.NewInMemoryStore()
		requestStore = request.NewInMemoryStore()
		ledgerStore = ledger.NewInMemoryStore()
		vaultTx = vault.NewMemoryTx()
		log.Info("using in-memory storage")
	}

	index := grants.NewIndex()

	var checkpoint grants.Checkpoint
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		checkpoint = grants.NewRedisCheckpoint(redisClient)
		snap, err := checkpoint.Load(ctx)
		if err != nil {
			log.Warn("checkpoint load failed, rebuilding from sequence 0", "error", err.Error())
		} else if snap != nil {
			if err := index.Restore(*snap); err != nil {
				log.Warn("checkpoint restore failed, rebuilding from sequence 0", "error", err.Error())
				index = grants.NewIndex()
			}
		}
	}
	if err := index.Rebuild(ctx, ledgerStore); err != nil {
		return err
	}
	log.Info("grant index ready", "last_seq", index.LastSeq())

	var sink notify.Sink = notify.NewLogSink(log)
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err := notify.NewKafkaSink(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		sink = kafkaSink
		log.Info("publishing decisions to kafka", "topic", cfg.Kafka.Topic)
	}
	publisher := notify.NewPublisher(sink, log)

	consentService := consent.NewService(requestStore, ledgerStore, index, vaultTx, log, m, publisher)
	requestService := request.NewService(requestStore, catalogStore, ledgerStore, vaultTx, m)

	verifier := middleware.NewHMACVerifier(cfg.JWTSigningKey)
	handler := httptransport.NewHandler(log, catalogStore, requestService, consentService, ledgerStore, verifier)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting medvault", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := publisher.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}

		if err := publisher.Close(); err != nil {
			log.Warn("notifier close failed", "error", err.Error())
		}

		if checkpoint != nil {
			if err := checkpoint.Save(shutdownCtx, index.Snapshot()); err != nil {
				log.Warn("checkpoint save failed", "error", err.Error())
			}
		}
		return nil
	})

	return g.Wait()
}
