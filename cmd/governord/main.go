// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/go-core-stack/governor/api"
	"github.com/go-core-stack/governor/auth"
	"github.com/go-core-stack/governor/config"
	"github.com/go-core-stack/governor/db"
	"github.com/go-core-stack/governor/errors"
	"github.com/go-core-stack/governor/governor"
	"github.com/go-core-stack/governor/metrics"
	"github.com/go-core-stack/governor/model"
	"github.com/go-core-stack/governor/rate"
	"github.com/go-core-stack/governor/table"
	"github.com/go-core-stack/governor/txn"
	"github.com/go-core-stack/governor/values"
)

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

func newLimiter(ctx context.Context, cfg *config.Config, logger *zap.Logger) (rate.Limiter, func(), error) {
	switch cfg.RateLimit.Backend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			// checks fail closed until redis is reachable
			logger.Warn("redis not reachable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		return rate.NewRedisLimiter(client, rate.WithLogger(logger)), func() { _ = client.Close() }, nil
	case config.BackendMemory:
		limiter := rate.NewMemoryLimiter(
			rate.WithLogger(logger),
			rate.WithSweepInterval(cfg.RateLimit.SweepInterval),
		)
		go limiter.Start(ctx)
		return limiter, func() {}, nil
	}
	return nil, nil, errors.Wrapf(errors.InvalidArgument, "unknown rate limit backend %q", cfg.RateLimit.Backend)
}

func main() {
	configPath := flag.String("config", values.Lookup(values.ConfigPathEnv, ""), "path to the yaml configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %s\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %s\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	if !cfg.Database.Configured {
		logger.Warn("no database configured, data operations will fail",
			zap.String("env", values.DatabaseURIEnv))
	}
	client, err := db.NewMongoClient(cfg.Database.MongoConfig())
	if err != nil {
		logger.Fatal("failed to create store client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := client.Close(closeCtx); err != nil {
			logger.Error("failed to close store client", zap.Error(err))
		}
	}()
	store := client.GetDataStore(cfg.Database.Name)

	accounts := &table.Table[model.AccountKey, model.Account]{}
	if err := accounts.Initialize(store.GetCollection(auth.AccountCollection)); err != nil {
		logger.Fatal("failed to initialize account table", zap.Error(err))
	}
	resolver, err := auth.NewResolver(cfg.Session.AuthConfig(), auth.NewTableAccountStore(accounts))
	if err != nil {
		logger.Fatal("failed to create session resolver", zap.Error(err))
	}

	limiter, closeLimiter, err := newLimiter(ctx, cfg, logger.Named("rate"))
	if err != nil {
		logger.Fatal("failed to create rate limiter", zap.Error(err))
	}
	defer closeLimiter()

	txnOpts, err := cfg.Txn.Options()
	if err != nil {
		logger.Fatal("invalid transaction options", zap.Error(err))
	}
	runner, err := txn.NewRunner(client, txnOpts, logger.Named("txn"), m)
	if err != nil {
		logger.Fatal("failed to create transaction runner", zap.Error(err))
	}

	gov, err := governor.New(resolver, limiter,
		governor.WithLogger(logger.Named("governor")),
		governor.WithMetrics(m))
	if err != nil {
		logger.Fatal("failed to create governor", zap.Error(err))
	}

	limit := cfg.RateLimit.Limit()
	sc := &model.ServerContext{
		Server: grpc.NewServer(grpc.UnaryInterceptor(gov.UnaryServerInterceptor(
			map[string]governor.RouteConfig{
				healthpb.Health_Check_FullMethodName: {Name: "grpc.health"},
			},
			governor.RouteConfig{RateLimit: &limit, RequireAuth: true},
		))),
		Router: chi.NewRouter(),
	}

	svc, err := api.NewService(client, store, runner, api.WithLogger(logger.Named("api")))
	if err != nil {
		logger.Fatal("failed to create api service", zap.Error(err))
	}
	if err := svc.Register(sc, gov, limit); err != nil {
		logger.Fatal("failed to register api routes", zap.Error(err))
	}
	sc.Router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(sc.Server, healthServer)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: sc.Router,
	}
	go func() {
		logger.Info("starting http server", zap.String("address", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	lis, err := net.Listen("tcp", cfg.Server.GrpcAddr)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("address", cfg.Server.GrpcAddr), zap.Error(err))
	}
	go func() {
		logger.Info("starting grpc server", zap.String("address", cfg.Server.GrpcAddr))
		if err := sc.Server.Serve(lis); err != nil {
			logger.Error("grpc server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}
	sc.Server.GracefulStop()
}
