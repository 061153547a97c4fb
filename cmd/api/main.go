package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"booklending/db"
	"booklending/internal/acquisition"
	"booklending/internal/book"
	"booklending/internal/circulation"
	"booklending/internal/clock"
	"booklending/internal/config"
	"booklending/internal/httpx"
	"booklending/internal/platform/openlibrary"
	"booklending/internal/platform/postgres"
	"booklending/internal/seed"
	"booklending/internal/store"
	"booklending/internal/user"
)

type repositories struct {
	books       book.Repository
	users       user.Repository
	circulation circulation.Repository
	acquisition acquisition.Repository
	db          pinger
	close       func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("cannot open storage")
	}
	defer repos.close()

	policy := circulation.Policy{
		MaxOpenCheckouts: cfg.MaxOpenCheckouts,
		CooldownDays:     cfg.CooldownDays,
		PagesPerDay:      cfg.PagesPerDay,
	}
	acqOpts := []acquisition.Option{}
	if cfg.OpenLibraryEnabled {
		client := openlibrary.NewClient(cfg.OpenLibraryUserAgent, cfg.OpenLibraryRPS, 3)
		acqOpts = append(acqOpts, acquisition.WithMetadataSource(acquisition.NewOpenLibrarySource(client)))
	}

	h := handlers{
		books:       book.NewHTTPHandler(book.NewService(repos.books)),
		users:       user.NewHTTPHandler(user.NewService(repos.users)),
		circulation: circulation.NewHTTPHandler(circulation.NewService(repos.circulation, circulation.WithPolicy(policy))),
		acquisition: acquisition.NewHTTPHandler(acquisition.NewService(repos.acquisition, acquisition.DefaultTransitions(), acqOpts...)),
	}

	limiter := httpx.NewRateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer limiter.Close()

	httpServer := &http.Server{
		Addr: cfg.Addr,
		Handler: newRouter(routerConfig{
			jwtSecret:   cfg.JWTSecret,
			corsOrigins: cfg.CORSOrigins,
			enableHSTS:  cfg.EnableHSTS,
			rateLimiter: limiter,
			db:          repos.db,
		}, h),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Error("graceful shutdown failed")
		}
	}()

	logrus.WithFields(logrus.Fields{
		"addr":  cfg.Addr,
		"store": cfg.Store,
	}).Info("starting server")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logrus.WithError(err).Fatal("server error")
	}
	logrus.Info("server stopped")
}

func setupLogging(level string) {
	logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.WithField("level", level).Warn("unknown LOG_LEVEL, using info")
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}

func openRepositories(ctx context.Context, cfg config.Config) (repositories, error) {
	if cfg.Store == config.StoreMemory {
		mem := store.NewMemory()
		sum, err := seed.Demo(ctx, mem, clock.NewSystem().Now())
		if err != nil {
			return repositories{}, err
		}
		logrus.WithFields(logrus.Fields{
			"offices":  len(sum.Offices),
			"users":    len(sum.Users),
			"books":    sum.Books,
			"requests": sum.Requests,
		}).Info("memory store seeded with demo data")

		return repositories{
			books:       mem,
			users:       mem,
			circulation: mem,
			acquisition: mem,
			close:       func() {},
		}, nil
	}

	pool, err := postgres.Open(ctx, cfg.DSN)
	if err != nil {
		return repositories{}, err
	}
	logrus.WithField("dsn", postgres.RedactDSN(cfg.DSN)).Info("database connection OK")

	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, pool, db.Migrations, db.MigrationsDir); err != nil {
			pool.Close()
			return repositories{}, err
		}
		logrus.Info("migrations applied")
	}

	pg := postgres.NewDB(pool, cfg.DBTimeout)
	return repositories{
		books:       book.NewPostgresRepo(pg),
		users:       user.NewPostgresRepo(pg),
		circulation: circulation.NewPostgresRepo(pg),
		acquisition: acquisition.NewPostgresRepo(pg),
		db:          pg,
		close:       pool.Close,
	}, nil
}
