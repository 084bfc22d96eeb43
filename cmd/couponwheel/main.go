// Package main запускает телеграм-бота купонного колеса и админ-API.
package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/bot"
	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/botstate"
	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/clock"
	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/config"
	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/handler"
	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/middleware"
	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/repository"
	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/service"
	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/wheel"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	zone, err := clock.NewZone(cfg.TimeZone)
	if err != nil {
		sugar.Fatalw("time zone error", "error", err.Error())
	}

	tiers, err := cfg.Tiers()
	if err != nil {
		sugar.Fatalw("tier table error", "error", err.Error())
	}

	rnd := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(os.Getpid())))
	w, err := wheel.New(tiers, rnd)
	if err != nil {
		sugar.Fatalw("wheel initialization error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	states, err := botstate.Connect(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		sugar.Fatalw("redis initialization error", "error", err.Error())
	}
	defer states.Close()

	svc := service.NewService(repo, w, zone, cfg.ValidityDays, cfg.DailyCap)

	tgBot, err := bot.New(cfg.BotToken, svc, states, zone, logger, cfg.AdminID)
	if err != nil {
		sugar.Fatalw("bot initialization error", "error", err.Error())
	}

	auth := middleware.NewTokenAuth(cfg.AdminAPIToken)
	h := handler.NewHandler(svc, logger, auth)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: h.SetupRouter(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск телеграм-бота
	g.Go(func() error {
		sugar.Infow("starting coupon wheel bot", "admin_id", cfg.AdminID)
		if err := tgBot.Run(ctx); err != nil {
			return fmt.Errorf("bot error: %w", err)
		}
		return nil
	})

	// Запуск HTTP-сервера админ-API
	g.Go(func() error {
		sugar.Infow("starting admin API server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
