// Package bootstrap wires configuration into the running application:
// logger, health monitor, call executor, session store, workflow, and the
// Telegram transport.
package bootstrap

import (
	"fmt"
	"time"

	coreconfig "quizbot/core/config"
	"quizbot/core/health"
	"quizbot/core/logger"
	"quizbot/core/session"
	coretelegram "quizbot/core/telegram"
	"quizbot/core/telegram/executor"
	"quizbot/core/workflow"

	tele "gopkg.in/telebot.v4"
)

// Options control the bootstrap pipeline.
type Options struct {
	Config *coreconfig.Config

	LoggerInit func(*coreconfig.Config) error
	NewBot     func(*coreconfig.Config) (*tele.Bot, error)
}

// App exposes the components initialized by the bootstrap pipeline.
type App struct {
	Config      *coreconfig.Config
	Bot         *tele.Bot
	Monitor     *health.Monitor
	Sessions    *session.Store
	Workflow    *workflow.Workflow
	Maintenance *workflow.Maintenance
	Registry    *coretelegram.Registry
}

// Run initializes the logger and assembles the application graph.
func Run(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	newBot := opts.NewBot
	if newBot == nil {
		newBot = coretelegram.NewBot
	}
	bot, err := newBot(cfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	monitor := health.NewMonitor(0)

	exec := executor.New(executor.Options{
		MaxRetries:       cfg.Executor.MaxRetries,
		BaseDelay:        secondsToDuration(cfg.Executor.BaseRetryDelaySeconds),
		MaxDelay:         secondsToDuration(cfg.Executor.MaxRetryDelaySeconds),
		CallTimeout:      time.Duration(cfg.Executor.CallTimeoutSeconds) * time.Second,
		MaxRateLimitWait: time.Duration(cfg.Executor.MaxRateLimitWaitSeconds) * time.Second,
		Reporter:         monitor,
	})

	store := session.NewStore(session.Options{
		MaxUsers: cfg.Sessions.MaxUsers,
		TTL:      time.Duration(cfg.Sessions.TTLSeconds) * time.Second,
	})

	client := coretelegram.NewClient(bot, exec)
	wf := workflow.New(store, client, monitor)
	maint := workflow.NewMaintenance(store, monitor,
		time.Duration(cfg.Maintenance.IntervalSeconds)*time.Second)

	return &App{
		Config:      cfg,
		Bot:         bot,
		Monitor:     monitor,
		Sessions:    store,
		Workflow:    wf,
		Maintenance: maint,
		Registry:    coretelegram.BuildRegistry(wf),
	}, nil
}

// RunOptions assembles the transport run options for the wired app.
func (a *App) RunOptions() coretelegram.RunOptions {
	return coretelegram.RunOptions{
		Config:      a.Config,
		Registry:    a.Registry,
		Middlewares: coretelegram.DefaultMiddlewares(a.Config, nil),
		Routes:      coretelegram.BuildRoutes(a.Registry),
	}
}

func secondsToDuration(sec float64) time.Duration {
	if sec <= 0 {
		return 0
	}
	return time.Duration(sec * float64(time.Second))
}
