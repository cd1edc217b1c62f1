package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	goredis "github.com/redis/go-redis/v9"

	api "github.com/mind-engage/engineering-lms/internal/api/http"
	"github.com/mind-engage/engineering-lms/internal/backend/authbus"
	"github.com/mind-engage/engineering-lms/internal/backend/sqlbackend"
	"github.com/mind-engage/engineering-lms/internal/config"
	"github.com/mind-engage/engineering-lms/internal/db"
	"github.com/mind-engage/engineering-lms/internal/guard"
	"github.com/mind-engage/engineering-lms/internal/platform/logger"
	"github.com/mind-engage/engineering-lms/internal/quiz"
	"github.com/mind-engage/engineering-lms/internal/rbac"
	"github.com/mind-engage/engineering-lms/internal/seed"
	"github.com/mind-engage/engineering-lms/internal/session"
)

func main() {
	cfg := config.FromEnv()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	driver, err := db.ParseDriver(cfg.DBDriver)
	if err != nil {
		log.Fatal("bad DB_DRIVER", "error", err)
	}
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, driver, cfg.DBDSN)
	cancel()
	if err != nil {
		log.Fatal("db open failed", "error", err)
	}
	defer dbh.Close()

	// --- Auth bus + quiz state (redis when configured) ---
	var (
		bus   authbus.Bus
		state quiz.StateStore
	)
	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		rbus, err := authbus.NewRedisWithClient(ctx, log, rdb, cfg.RedisChannel)
		if err != nil {
			log.Fatal("redis auth bus", "addr", cfg.RedisAddr, "error", err)
		}
		bus = rbus
		state = quiz.NewRedis(rdb, "", cfg.QuizStateTTL)
	} else {
		bus = authbus.NewMemory(log)
		mem := quiz.NewMemory(cfg.QuizStateTTL)
		go sweepQuiz(ctx, mem, cfg.QuizStateTTL)
		state = mem
	}
	defer bus.Close()

	svc := sqlbackend.New(dbh, bus, log, sqlbackend.Options{
		Secret:     cfg.AuthHMACSecret,
		SessionTTL: cfg.SessionTTL,
	})

	sessions := session.NewManager(svc.Client, log, cfg.SessionIdleTTL)
	defer sessions.Close()
	go sessions.Run(ctx)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Location"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	api.Mount(r, api.Deps{
		Accounts: svc,
		Sessions: sessions,
		Guard:    guard.New(rbac.NewChecker(nil)),
		Quiz:     quiz.NewService(state),
		Users:    seed.NewImporter(dbh, svc, log),
		Log:      log,
		Ready: func(ctx context.Context) error {
			return dbh.PingContext(ctx)
		},
		RegistrationEnabled: cfg.EnableRegistration,
		SecureCookies:       cfg.Mode == config.ModeOnline,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sessions.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", "error", err)
		}
	}()

	log.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "db", driver, "redis", cfg.RedisAddr != "")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("http server", "error", err)
	}
}

func sweepQuiz(ctx context.Context, mem *quiz.Memory, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	t := time.NewTicker(ttl / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			mem.Sweep()
		}
	}
}
