package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	coreconfig "quizbot/core/config"
	"quizbot/core/logger"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// RunOptions controls the behaviour of Run.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	Middlewares []Middleware
	Routes      []Route

	DisableWebhookCleanup bool

	OnStart func(ctx context.Context) error
	OnStop  func(ctx context.Context) error
}

// NewBot constructs the telebot instance from configuration. Handlers are
// attached later by Run.
func NewBot(cfg *coreconfig.Config) (*tele.Bot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("telegram: nil config provided")
	}

	poller := BuildPoller(PollerOptions{
		RunMode:                cfg.Telegram.RunMode,
		LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
		Webhook: WebhookOptions{
			Listen:      cfg.Webhook.Listen,
			Port:        cfg.Webhook.Port,
			URL:         cfg.Webhook.URL,
			DropPending: cfg.Webhook.DropPending,
		},
	})

	settings := tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: poller,
		Client: BuildHTTPClient(),
	}

	start := time.Now()
	bot, err := tele.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}

	switch p := poller.(type) {
	case *tele.Webhook:
		logger.Info(context.Background(), "tg", "mode",
			slog.String("mode", "webhook"),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		)
	case *tele.LongPoller:
		logger.Info(context.Background(), "tg", "mode",
			slog.String("mode", "polling"),
			slog.Duration("timeout", p.Timeout),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		)
	}

	return bot, nil
}

// Run wires middlewares and routes into bot and blocks until the provided
// context is done or the poller stops on its own.
func Run(ctx context.Context, bot *tele.Bot, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if bot == nil {
		return fmt.Errorf("telegram: nil bot provided")
	}
	if opts.Config == nil {
		return fmt.Errorf("telegram: nil config provided")
	}
	cfg := opts.Config

	switch {
	case strings.EqualFold(cfg.Telegram.RunMode, coreconfig.RunModeLongpoll):
		if !opts.DisableWebhookCleanup {
			if err := deleteWebhook(cfg.Telegram.Token, cfg.Webhook.DropPending); err != nil {
				logger.Warn(ctx, "tg", "delete_webhook",
					slog.String("mode", "polling"),
					slog.String("err", logger.SanitizeError(err)),
				)
			} else {
				logger.Info(ctx, "tg", "delete_webhook",
					slog.String("mode", "polling"),
				)
			}
		}
	case strings.EqualFold(cfg.Telegram.RunMode, coreconfig.RunModeWebhook):
		if err := setWebhook(cfg.Telegram.Token, cfg.Webhook.URL, cfg.Webhook.DropPending); err != nil {
			logger.Warn(ctx, "tg", "set_webhook",
				slog.String("err", logger.SanitizeError(err)),
			)
		}
		if info, err := getWebhookInfo(cfg.Telegram.Token); err == nil {
			attrs := []slog.Attr{
				slog.String("url", info.URL),
				slog.Int("pending", info.PendingUpdateCount),
			}
			if info.LastErrorMessage != "" {
				attrs = append(attrs, slog.String("last_error", logger.SanitizeLimit(info.LastErrorMessage, 256)))
			}
			logger.Info(ctx, "tg", "webhook_info", attrs...)
		}
	}

	for _, mw := range opts.Middlewares {
		if mw.Use == nil {
			continue
		}
		bot.Use(mw.Use)
	}

	for _, route := range opts.Routes {
		if route.Endpoint == nil || route.Handler == nil {
			continue
		}
		bot.Handle(route.Endpoint, route.Handler)
	}

	if opts.Registry != nil {
		InitBotCommands(bot, opts.Registry)
	}

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx); err != nil {
			return err
		}
	}

	runDone := make(chan struct{})
	go func() {
		bot.Start()
		close(runDone)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		bot.Stop()
		<-runDone
		runErr = ctx.Err()
	case <-runDone:
	}

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(ctx)
	}

	if stopErr != nil {
		return stopErr
	}
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return nil
		}
		return runErr
	}
	return nil
}
