// Command bmpresence держит по Discord-боту на каждый сервер BattleMetrics и
// показывает в кастомном статусе бота онлайн, очередь и карту сервера.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/EgorLis/bmpresence/internal/bmapi"
	"github.com/EgorLis/bmpresence/internal/bot"
	"github.com/EgorLis/bmpresence/internal/config"
	"github.com/EgorLis/bmpresence/internal/discord"
	"github.com/EgorLis/bmpresence/internal/logging"
	"github.com/EgorLis/bmpresence/internal/netproxy"
)

func fatal(msg string, err error, attrs ...any) {
	args := make([]any, 0, 2+len(attrs))
	args = append(args, "err", err)
	args = append(args, attrs...)
	slog.Error(msg, args...)
	os.Exit(1)
}

func runID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return "run-unknown"
	}
	return "run-" + id.String()
}

func main() {
	flags := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	config.Flags(flags)
	_ = flags.Parse(os.Args[1:])

	// временный логгер, пока настоящий не собран
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	v, err := config.New(flags)
	if err != nil {
		fatal("config load failed", err)
	}
	cfg, err := config.Load(v)
	if err != nil {
		fatal("config load failed", err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		fatal("config load failed", err)
	}
	logger, err := logging.New(os.Stderr, level, cfg.LogFormat)
	if err != nil {
		fatal("config load failed", err)
	}
	logger = logger.With("run_id", runID())
	slog.SetDefault(logger)
	discordgo.Logger = logging.DiscordLogger(logger)

	for _, w := range cfg.Warnings {
		logger.Warn("config", "warning", w)
	}

	route, err := netproxy.Parse(cfg.ProxyURL)
	if err != nil {
		fatal("proxy setup failed", err)
	}

	bm := bmapi.NewClientFromConf(bmapi.BMConf{
		BaseURL: cfg.BMBaseURL,
		Token:   cfg.BMToken,
		Timeout: cfg.HTTPTimeout,
	}, route.HTTPClient(cfg.HTTPTimeout))

	factory := func(acc config.Account, log *slog.Logger) (bot.Presence, error) {
		c, err := discord.New(acc.Token, discord.Options{
			Dialer: route.Dialer(),
			HTTP:   route.HTTPClient(cfg.HTTPTimeout),
			Logger: log,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()

	logger.Info("starting bmpresence",
		"accounts", len(cfg.Accounts),
		"interval", cfg.Interval,
		"stagger", cfg.Stagger,
		"proxy", route.String(),
	)

	fleet := bot.NewFleet(bm, factory, bot.Options{
		Interval:      cfg.Interval,
		Stagger:       cfg.Stagger,
		LoginTimeout:  cfg.LoginTimeout,
		UpdateOnReady: cfg.UpdateOnReady,
	}, logger)

	if err := fleet.Start(ctx, cfg.Accounts); err != nil {
		var ce *config.Error
		if errors.As(err, &ce) {
			fatal("config load failed", err)
		}
		fatal("fleet start failed", err)
	}

	<-ctx.Done()
	logger.Info("shutdown requested", "sessions", fmt.Sprint(fleet.Summary()))
	fleet.Stop()
}
