// Package cmd hosts the reusable process entrypoint: config loading, signal
// handling, and the run loop shared by bot binaries.
package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quizbot/core/bootstrap"
	coreconfig "quizbot/core/config"
	"quizbot/core/logger"
	coretelegram "quizbot/core/telegram"

	tele "gopkg.in/telebot.v4"
	"log/slog"
)

// Options describe how to load configuration and run the bot.
type Options struct {
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig     func(path string) (*coreconfig.Config, error)
	Bootstrap      func(bootstrap.Options) (*bootstrap.App, error)
	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, bot *tele.Bot, opts coretelegram.RunOptions) error
}

// Run loads configuration, bootstraps the app, and runs the bot until a
// termination signal arrives.
func Run(opts Options) error {
	env := opts.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	cfgPath := os.Getenv(env)
	if cfgPath == "" {
		cfgPath = opts.DefaultConfigPath
	}
	if cfgPath == "" {
		return fmt.Errorf("cmd: config path not provided via %s or DefaultConfigPath", env)
	}

	loadConfig := opts.LoadConfig
	if loadConfig == nil {
		loadConfig = coreconfig.Load
	}

	log.Printf("loading config: %s", cfgPath)
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}

	boot := opts.Bootstrap
	if boot == nil {
		boot = bootstrap.Run
	}
	app, err := boot(bootstrap.Options{Config: cfg})
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}

	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go app.Maintenance.Run(ctx)

	runOpts := app.RunOptions()
	startedAt := time.Now()
	runOpts.OnStart = func(ctx context.Context) error {
		logger.Info(ctx, "app", "ready",
			slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
		)
		return nil
	}
	runOpts.OnStop = func(ctx context.Context) error {
		logger.Info(ctx, "app", "shutdown")
		return nil
	}

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.Run
	}
	return run(ctx, app.Bot, runOpts)
}
