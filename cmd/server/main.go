// Command passkit-server serves the passkit credential API over TLS gRPC.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/passkit/internal/config"
	"github.com/and161185/passkit/internal/limiter"
	"github.com/and161185/passkit/internal/migrate"
	"github.com/and161185/passkit/internal/repository/postgres"
	grpcserver "github.com/and161185/passkit/internal/server/grpc"
	"github.com/and161185/passkit/internal/service"
	"github.com/and161185/passkit/migrations"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main parses configuration, runs migrations, and starts a TLS-enabled gRPC server.
func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.FromOS()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	hasher, err := cfg.NewHasher()
	if err != nil {
		logger.Fatal("hasher", zap.Error(err))
	}
	p := hasher.Params()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.Stringer("argonMemory", cfg.ArgonMemory),
		zap.Uint32("argonTime", p.Time),
		zap.Uint8("argonThreads", p.Threads),
	)

	creds, err := credentials.NewServerTLSFromFile(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		logger.Fatal("failed to load TLS cert/key", zap.Error(err))
	}

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DSN); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}
	versions, err := migrate.Versions(migrations.FS)
	if err != nil {
		logger.Fatal("migration versions", zap.Error(err))
	}
	logger.Info("schema up to date", zap.Int64s("versions", versions))

	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		logger.Fatal("postgres", zap.Error(err))
	}
	defer db.Close()

	userRepo := postgres.NewUserRepo(db)
	lim := limiter.NewPG(db.Pool, cfg.LimitWindow, cfg.LimitMaxFails, cfg.LimitBlockFor)
	fp := limiter.NewFingerprinter([]byte(cfg.IPPepper))

	authSvc := service.NewAuthService(userRepo, hasher, lim, fp, []byte(cfg.JWTKey), cfg.AccessTTL, logger.Named("auth"))
	app := grpcserver.New(authSvc, []byte(cfg.JWTKey))

	// gRPC server with interceptors
	s := grpc.NewServer(
		grpc.Creds(creds),
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.LoggingUnary(logger),
			app.AuthUnary(grpcserver.PublicMethods...),
		),
	)
	grpcserver.RegisterCredentialsServer(s, app)

	// Health & reflection (dev)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus(grpcserver.ServiceName, healthpb.HealthCheckResponse_SERVING)
	if cfg.Dev {
		reflection.Register(s)
	}

	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening (TLS)", zap.String("addr", cfg.Addr))
		errCh <- s.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		hs.Shutdown()
		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			s.Stop()
		}
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
