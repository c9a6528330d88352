// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"telegram-tts-bot/internal/application"
	"telegram-tts-bot/internal/config"
	"telegram-tts-bot/internal/domain/ports/adapter"
	"telegram-tts-bot/internal/domain/ports/repository"
	tele "telegram-tts-bot/internal/infra/adapters/telegram"
	"telegram-tts-bot/internal/infra/adapters/tts"
	pg "telegram-tts-bot/internal/infra/db/postgres"
	"telegram-tts-bot/internal/infra/db/sqlite"
	"telegram-tts-bot/internal/infra/i18n"
	"telegram-tts-bot/internal/infra/logging"
	"telegram-tts-bot/internal/infra/metrics"
	red "telegram-tts-bot/internal/infra/redis"
	"telegram-tts-bot/internal/infra/sched"
	"telegram-tts-bot/internal/infra/web"
	"telegram-tts-bot/internal/infra/worker"
	"telegram-tts-bot/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, bot token optional)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister(nil)
	metrics.SetBuildInfo(version, commit)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("exited with error")
	}
	logger.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	tr := i18n.MustDefault()
	checks := map[string]web.Pinger{}
	g, gctx := errgroup.WithContext(ctx)

	// ---- Redis ----
	rc, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer rc.Close()
	checks["redis"] = rc

	// ---- Job record store ----
	var jobs repository.PendingJobRepository
	switch strings.ToLower(cfg.Store.Driver) {
	case "postgres":
		pool, err := pg.NewPool(ctx, &cfg.Database)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		jobs = pg.NewPendingJobRepo(pool)
		checks["store"] = web.PingFunc(pool.Ping)
		g.Go(func() error {
			pg.ReportPoolStats(gctx, pool, 15*time.Second, logger)
			return nil
		})
	default:
		store, err := sqlite.NewStore(cfg.Store.SQLitePath)
		if err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
		defer store.Close()
		jobs = store
		checks["store"] = store
	}
	logger.Info().Str("driver", cfg.Store.Driver).Msg("job record store ready")

	// ---- TTS service ----
	ttsClient, err := tts.NewHTTPClient(cfg.TTS.BaseURL, cfg.TTS.Timeout, cfg.TTS.MaxArtifactBytes)
	if err != nil {
		return fmt.Errorf("tts client: %w", err)
	}
	checks["tts"] = ttsClient
	ttsSvc := tts.NewLimitedTTS(ttsClient, cfg.TTS.MaxConcurrentDownloads)

	// ---- Telegram ----
	var (
		sink    adapter.TelegramBotAdapter
		realBot *tele.RealTelegramBotAdapter
	)
	if cfg.Bot.Token == "" {
		logger.Warn().Msg("bot.token is empty; messages are only logged")
		sink = tele.NewNoopBotAdapter(logger)
	} else {
		realBot, err = tele.NewRealTelegramBotAdapter(&cfg.Bot, red.NewChatLimiter(rc, cfg.Bot.RateLimit, time.Minute), tr, logger)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		sink = realBot
	}

	// ---- Use cases ----
	supervisor := worker.NewSupervisor(logger)
	settingsUC := usecase.NewSettingsUseCase(
		red.NewSettingsRepo(rc, cfg.Redis.SettingsTTL),
		red.NewStateRepo(rc),
		red.NewCatalogCache(rc, cfg.Redis.TTL),
		ttsSvc,
		logger,
	)
	deliveryUC := usecase.NewDeliveryUseCase(
		ttsSvc,
		sink,
		jobs,
		red.NewDeliveryLedger(rc, cfg.Delivery.LedgerTTL),
		supervisor,
		tr,
		usecase.DeliveryConfig{
			PollInterval:     cfg.Delivery.PollInterval,
			MaxRounds:        cfg.Delivery.MaxRounds,
			CaptionLimit:     cfg.Delivery.CaptionLimit,
			FailedLinesLimit: cfg.Delivery.FailedLinesLimit,
			MaxBackoff:       cfg.Delivery.MaxBackoff,
			StatusRetries:    cfg.Delivery.StatusRetries,
		},
		logger,
	)
	facade := application.NewBotFacade(deliveryUC, settingsUC, sink, tr, logger)

	// ---- Recovery ----
	sweeper, err := sched.NewOrphanSweeper(cfg.Sweeper.Cron, cfg.Sweeper.StaleAfter, deliveryUC, red.NewLocker(rc), logger)
	if err != nil {
		return err
	}
	g.Go(func() error { return sweeper.Recover(gctx, deliveryUC.ResumeGrace()) })

	// ---- Long-running components ----
	if realBot != nil {
		realBot.Bind(facade)
		g.Go(func() error { return realBot.Run(gctx) })
	}
	g.Go(func() error { return sweeper.Run(gctx) })
	admin := web.NewServer(deliveryUC, web.NewAuthManager(cfg.Admin.JWTSecret, 0), checks, logger)
	g.Go(func() error { return admin.Run(gctx, fmt.Sprintf(":%d", cfg.Admin.Port)) })

	err = g.Wait()
	logger.Info().Msg("shutdown requested")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if serr := supervisor.Stop(stopCtx); serr != nil {
		logger.Error().Err(serr).Msg("sessions did not stop in time")
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
