package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"pastorcare/backend/internal/auth"
	"pastorcare/backend/internal/config"
	"pastorcare/backend/internal/directory"
	"pastorcare/backend/internal/logging"
	"pastorcare/backend/internal/notify"
	"pastorcare/backend/internal/service/availability"
	"pastorcare/backend/internal/service/booking"
	"pastorcare/backend/internal/store"
	"pastorcare/backend/internal/store/postgres"
	"pastorcare/backend/internal/store/sqlite"
	grpcTransport "pastorcare/backend/internal/transport/grpc"
	"pastorcare/backend/internal/transport/rest"
)

const serviceName = "pastorcare-server"

type storage struct {
	availability store.AvailabilityRepository
	appointments store.AppointmentRepository
	ping         func(ctx context.Context) error
	close        func() error
}

func main() {
	log, err := logging.New("info", "json", serviceName)
	if err != nil {
		os.Stderr.WriteString("logger init failed: " + err.Error() + "\n")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", zap.Error(err))
		os.Exit(1)
	}

	log, err = logging.New(cfg.LogLevel, cfg.LogFormat, serviceName)
	if err != nil {
		os.Stderr.WriteString("logger init failed: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting",
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("grpc_addr", cfg.GRPCAddr()),
		zap.String("db_driver", cfg.DatabaseDriver),
		zap.String("log_level", cfg.LogLevel),
		zap.String("location", cfg.Location.String()),
	)

	st, err := openStorage(cfg, log)
	if err != nil {
		log.Error("storage init failed", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		if err := st.close(); err != nil {
			log.Warn("database close failed", zap.Error(err))
		}
	}()

	notifier, closeNotifier := newNotifier(cfg, log)
	defer closeNotifier()

	dir := directory.NewStatic(cfg.Pastors)
	if len(cfg.Pastors) == 0 {
		log.Warn("pastor directory is empty; pastor ids are not checked")
	}

	availSvc := availability.NewService(st.availability, log, availability.WithStoreTimeout(cfg.StoreTimeout))
	bookingOpts := []booking.Option{
		booking.WithNotifier(notifier),
		booking.WithLogger(log),
		booking.WithLocation(cfg.Location),
		booking.WithStoreTimeout(cfg.StoreTimeout),
	}
	if len(cfg.Pastors) > 0 {
		bookingOpts = append(bookingOpts, booking.WithDirectory(dir))
	}
	engine := booking.NewEngine(st.appointments, availSvc, bookingOpts...)

	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)

	handler := rest.NewHandler(engine, availSvc,
		rest.WithDirectory(dir),
		rest.WithCountdown(rest.CountdownSettings{
			Interval:     cfg.CountdownInterval,
			ReadRetries:  cfg.CountdownReadRetries,
			RetryBackoff: cfg.CountdownRetryBackoff,
		}),
		rest.WithHealthCheck(st.ping),
		rest.WithLogger(log),
	)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           rest.NewRouter(handler, verifier, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer, healthServer := grpcTransport.NewServer(
		grpcTransport.NewBookingServer(engine, availSvc, log,
			grpcTransport.WithCountdownReads(cfg.CountdownReadRetries, cfg.CountdownRetryBackoff),
		),
		verifier,
		cfg.GRPCRequestTimeout,
		log,
	)

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error("grpc listen failed", zap.Error(err), zap.String("grpc_addr", cfg.GRPCAddr()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	log.Info("servers started", zap.String("grpc_addr", cfg.GRPCAddr()), zap.String("http_addr", cfg.HTTPAddr))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdown(log, grpcServer, healthServer, httpServer, cfg.ShutdownTimeout)
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped with error", zap.Error(err))
			shutdown(log, grpcServer, healthServer, httpServer, cfg.ShutdownTimeout)
			os.Exit(1)
		}
	}
}

func openStorage(cfg config.Config, log *zap.Logger) (storage, error) {
	switch cfg.DatabaseDriver {
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLitePath, log)
		if err != nil {
			return storage{}, err
		}
		return storage{
			availability: sqlite.NewAvailabilityRepo(db),
			appointments: sqlite.NewAppointmentRepo(db),
			ping: func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
			close: func() error { return sqlite.Close(db) },
		}, nil
	default:
		log.Info("connecting to database", databaseLogFields(cfg.DatabaseURL)...)
		db, err := postgres.Open(cfg.DatabaseURL, postgres.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
			ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		})
		if err != nil {
			fields := append([]zap.Field{zap.Error(err)}, databaseLogFields(cfg.DatabaseURL)...)
			log.Error("database connection failed", fields...)
			return storage{}, err
		}
		if cfg.AutoMigrate {
			if err := postgres.Migrate(db, log); err != nil {
				_ = postgres.Close(db)
				return storage{}, err
			}
		}
		return storage{
			availability: postgres.NewAvailabilityRepo(db),
			appointments: postgres.NewAppointmentRepo(db),
			ping:         db.PingContext,
			close:        func() error { return postgres.Close(db) },
		}, nil
	}
}

func newNotifier(cfg config.Config, log *zap.Logger) (booking.Notifier, func()) {
	if !cfg.RedisEnabled {
		return notify.NewLog(log), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis ping failed; notifications will be retried per event", zap.Error(err), zap.String("redis_addr", cfg.RedisAddr))
	} else {
		log.Info("redis notifier ready", zap.String("redis_addr", cfg.RedisAddr), zap.String("channel", cfg.RedisChannel))
	}
	return notify.NewRedis(client, cfg.RedisChannel), func() {
		if err := client.Close(); err != nil {
			log.Warn("redis close failed", zap.Error(err))
		}
	}
}

func shutdown(log *zap.Logger, s *grpc.Server, hs *health.Server, hsrv *http.Server, timeout time.Duration) {
	log.Info("shutting down servers", zap.Duration("timeout", timeout))
	hs.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := hsrv.Shutdown(ctx); err != nil {
		log.Warn("http graceful shutdown failed", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-ctx.Done():
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}

func databaseLogFields(databaseURL string) []zap.Field {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []zap.Field{zap.String("db_url", "invalid")}
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
	return []zap.Field{
		zap.String("db_host", host),
		zap.String("db_port", port),
		zap.String("db_name", name),
	}
}
