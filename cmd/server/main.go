package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Hexo/internal/adapters/http"
	wsignal "github.com/dkeye/Hexo/internal/adapters/signal"
	"github.com/dkeye/Hexo/internal/app"
	"github.com/dkeye/Hexo/internal/app/orch"
	"github.com/dkeye/Hexo/internal/auth"
	"github.com/dkeye/Hexo/internal/config"
	"github.com/dkeye/Hexo/internal/history"
)

const memoryHistory = 1000

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.Mode != "debug" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	store, closeStore := openHistory(ctx, cfg)
	defer closeStore()

	rooms := app.NewRoomManager(app.MatchOptions{
		Recorder:        store,
		NextGameDelay:   cfg.NextGameDelay,
		DisconnectGrace: cfg.DisconnectGrace,
		Capacity:        cfg.MailboxCapacity,
	})
	defer rooms.Stop()

	reg := app.NewRegistry()
	kernel := &orch.Orchestrator{
		Registry: reg,
		Rooms:    rooms,
		Policy:   app.SimplePolicy{},
		Matches:  store,
	}

	g, gctx := errgroup.WithContext(ctx)

	dispatcher := orch.NewDispatcher(kernel, cfg.DispatchWorkers, cfg.MailboxCapacity)
	g.Go(func() error { dispatcher.Run(gctx); return nil })
	g.Go(func() error { reg.RunLiveness(gctx, cfg.LivenessInterval); return nil })

	issuer := auth.NewIssuer(cfg.Secret, cfg.TokenTTL)
	ctl := &wsignal.SignalWSController{
		Registry: reg,
		Inbox:    dispatcher.Inbox(),
		Verifier: issuer,
		Limiter:  wsignal.NewRoomRateLimiter(cfg.RoomRateLimit, cfg.RoomRateInterval),
		Settings: wsignal.Settings{
			ReadLimit:   cfg.ReadLimit,
			PingPeriod:  cfg.PingPeriod,
			AuthTimeout: cfg.AuthTimeout,
			SendBuffer:  cfg.SendBuffer,
		},
	}

	r := router.SetupRouter(gctx, cfg, router.Deps{Orch: kernel, Signal: ctl, Issuer: issuer})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Hexo server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server error")
	}
	log.Info().Msg("Server exited gracefully")
}

// openHistory picks Postgres when a database is configured and memory
// otherwise. With a NATS url every record is also published.
func openHistory(ctx context.Context, cfg *config.Config) (history.Store, func()) {
	var (
		store   history.Store = history.NewMemory(memoryHistory)
		closers []func()
	)
	if cfg.DatabaseURL != "" {
		pg, err := history.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error().Err(err).Msg("postgres unavailable, keeping history in memory")
		} else {
			store = pg
			closers = append(closers, pg.Close)
		}
	}

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	if cfg.NatsURL == "" {
		return store, closeAll
	}

	pub, err := history.ConnectNATS(cfg.NatsURL, cfg.NatsSubject)
	if err != nil {
		log.Error().Err(err).Msg("nats unavailable, match events will not be published")
		return store, closeAll
	}
	closers = append(closers, pub.Close)
	return history.Tee(store, pub), closeAll
}
