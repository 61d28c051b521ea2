// Command memebot runs the activity ledger: the HTTP API the chat gateway
// relays events to, the refresh and reminder jobs, and the claim timers.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm/logger"

	"github.com/izikdepth/MemeBot/internal/claims"
	"github.com/izikdepth/MemeBot/internal/config"
	httpapi "github.com/izikdepth/MemeBot/internal/http"
	"github.com/izikdepth/MemeBot/internal/http/handlers"
	"github.com/izikdepth/MemeBot/internal/observability"
	"github.com/izikdepth/MemeBot/internal/repo"
	"github.com/izikdepth/MemeBot/internal/scheduler"
	"github.com/izikdepth/MemeBot/internal/services"
	"github.com/izikdepth/MemeBot/internal/sysutil"
	"github.com/izikdepth/MemeBot/internal/transport"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const purgePeriod = time.Hour

func main() {
	// A missing .env is fine; real deployments use the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	sysutil.ConfigureLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)
	gin.SetMode(cfg.GinMode)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("memebot stopped")
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}

	db, err := repo.Open(repo.Options{
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.DBPath,
		Tracing:     cfg.OTEL.Enabled,
		LogLevel:    logger.Warn,
	})
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	var tr transport.Transport = &transport.LogTransport{}
	if cfg.Gateway.URL != "" {
		tr = transport.NewGateway(cfg.Gateway.URL, cfg.Gateway.Token, cfg.Gateway.Timeout)
	} else {
		log.Warn().Msg("GATEWAY_URL not set; chat side effects are only logged")
	}

	mgr := claims.NewManager(nil, claims.TransportTeardown(tr))
	mgr.OnExpired = func(res claims.Resource) {
		observability.PendingClaims.Set(float64(len(mgr.Pending())))
		log.Info().Str("component", "claims").Str("user_id", res.UserID).Str("resource_id", res.ID).Msg("claim window expired")
	}

	ledger := services.NewLedgerService(db, cfg.IdempotencyTTL)
	acc := services.NewAccumulator()
	refresh := services.NewRefreshService(ledger, tr, mgr, acc, services.RefreshConfig{
		Mode:              cfg.RefreshMode,
		TopN:              cfg.RankedTopN,
		MaxUserPoints:     cfg.MaxUserPoints,
		ClaimWindow:       cfg.ClaimWindow,
		PromotionReaction: cfg.PromotionReaction,
	})
	reminder := &services.ReminderService{Ledger: ledger, Transport: tr, ChannelID: cfg.ReminderChannelID}
	games := services.NewGameService(ledger, tr, cfg.Connect4, cfg.TicTacToe, cfg.GameTimeout, cfg.GameCooldown)

	svcs := handlers.Services{
		Activity: &services.ActivityService{
			Ledger:    ledger,
			Transport: tr,
			Acc:       acc,
			Cfg: services.ActivityConfig{
				GuildID:          cfg.GuildScopeID,
				PointsPerMessage: cfg.PointsPerMessage,
				MaxUserPoints:    cfg.MaxUserPoints,
				MaxDailyPoints:   cfg.MaxDailyPoints,
				DailyLimit:       cfg.TotalDistributionLimit,
				OneInN:           cfg.AwardOneInN,
				Reaction:         cfg.AwardReaction,
			},
		},
		Claims: &services.ClaimService{
			Ledger:         ledger,
			Claims:         mgr,
			Transport:      tr,
			AdminUserID:    cfg.AdminUserID,
			AllowOverwrite: cfg.ClaimAddressOverwrite,
		},
		Games:    games,
		Query:    &services.QueryService{Ledger: ledger},
		Refresh:  refresh,
		Reminder: reminder,
	}

	tasks := scheduler.Tasks{
		Refresh: func(ctx context.Context) error {
			_, err := refresh.RunCycle(ctx)
			return err
		},
		Purge: func(ctx context.Context) error {
			n, err := repo.PurgeExpiredEvents(ctx, db, time.Now())
			if n > 0 {
				log.Debug().Str("component", "purge").Int64("rows", n).Msg("expired events removed")
			}
			return err
		},
	}
	if cfg.ReminderChannelID != "" {
		tasks.Remind = func(ctx context.Context) error {
			_, err := reminder.Run(ctx)
			return err
		}
	}
	sched, err := scheduler.New(scheduler.Config{
		RefreshPeriod: cfg.RefreshPeriod,
		ReminderCron:  cfg.ReminderCron,
		PurgePeriod:   purgePeriod,
	}, tasks)
	if err != nil {
		return err
	}

	if cfg.ServiceToken == "" {
		log.Warn().Msg("SERVICE_TOKEN and GATEWAY_TOKEN unset; the ledger API rejects every call")
	}
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{DB: db, Services: svcs}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Str("refresh_mode", cfg.RefreshMode).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	sched.Start()
	log.Info().Strs("jobs", sched.Jobs()).Msg("scheduler started")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := sched.Shutdown(); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown")
	}
	games.Close()
	mgr.Close()
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("stopped")
	return nil
}
