package telegram

import (
	"context"
	"strings"
	"time"

	"quizbot/core/logger"
	"quizbot/core/telegram/commands"
	"quizbot/core/telegram/middleware"
	"quizbot/core/workflow"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// BuildRegistry registers the quiz bot command set and the anonymity
// callbacks, all backed by the workflow.
func BuildRegistry(wf *workflow.Workflow) *Registry {
	reg := NewRegistry()

	reg.RegisterCommand("/start", commands.Command{
		Handler:     commandHandler(wf, "start"),
		Description: "Start creating quizzes",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     commandHandler(wf, "help"),
		Description: "How the bot works",
	})
	reg.RegisterCommand("/template", commands.Command{
		Handler:     commandHandler(wf, "template"),
		Description: "Get the JSON template",
	})
	reg.RegisterCommand("/quickstart", commands.Command{
		Handler:     commandHandler(wf, "quickstart"),
		Description: "Three steps to your first quiz",
	})
	reg.RegisterCommand("/status", commands.Command{
		Handler:     commandHandler(wf, "status"),
		Description: "Bot and session status",
	})
	reg.RegisterCommand("/toggle", commands.Command{
		Handler:     commandHandler(wf, "toggle"),
		Description: "Switch anonymous mode",
	})

	reg.RegisterCallback(workflow.CallbackAnonymous, callbackHandler(wf, workflow.CallbackAnonymous))
	reg.RegisterCallback(workflow.CallbackNonAnonymous, callbackHandler(wf, workflow.CallbackNonAnonymous))

	reg.SetTextFallback(func(c tele.Context) error {
		user, chat := c.Sender(), c.Chat()
		if user == nil || chat == nil {
			return nil
		}
		wf.OnText(middleware.BuildContext(c), c.Text(), user.ID, chat.ID)
		return nil
	})

	return reg
}

// BuildRoutes converts the registry into telebot routes wrapped with the
// shared middleware chain.
func BuildRoutes(reg *Registry) []Route {
	routes := make([]Route, 0, len(reg.Commands())+2)
	for cmd, def := range reg.Commands() {
		h := def.Handler
		h = middleware.LoggerMiddleware(h)
		h = middleware.RecoverMiddleware(h)
		routes = append(routes, Route{Endpoint: cmd, Handler: h})
	}

	routes = append(routes, callbackRoute(reg), textRoute(reg))

	logger.Info(context.Background(), "tg", "tg.wire",
		slog.Int("commands", len(reg.Commands())),
	)
	return routes
}

func commandHandler(wf *workflow.Workflow, name string) tele.HandlerFunc {
	return func(c tele.Context) error {
		user, chat := c.Sender(), c.Chat()
		if user == nil || chat == nil {
			return nil
		}
		start := time.Now()
		ctx := middleware.BuildContext(c)
		wf.OnCommand(ctx, name, user.ID, chat.ID, displayName(user))
		logHandled(c, "command."+name, start, nil)
		return nil
	}
}

func callbackHandler(wf *workflow.Workflow, key string) tele.HandlerFunc {
	return func(c tele.Context) error {
		user, chat := c.Sender(), c.Chat()
		if user == nil || chat == nil {
			return nil
		}
		messageID := 0
		if cb := c.Callback(); cb != nil && cb.Message != nil {
			messageID = cb.Message.ID
		}
		wf.OnCallback(middleware.BuildContext(c), key, user.ID, chat.ID, messageID)
		return nil
	}
}

// callbackRoute routes every callback through the registry, acknowledging
// the press before the handler runs so the client spinner clears early.
func callbackRoute(reg *Registry) Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		cb := c.Callback()
		if cb == nil {
			return nil
		}

		key, _ := middleware.ParseCallback(cb)
		_ = c.Respond()

		h, ok := reg.GetCallback(key)
		if !ok || h == nil {
			h = reg.CallbackNotFound()
			if h == nil {
				return nil
			}
		}
		err := h(c)
		logHandled(c, "callback."+normalizeHandlerName(key), start, err)
		return err
	}
	return Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}

// textRoute forwards free text to the registry fallback, resolving text that
// spells a known command to its handler first.
func textRoute(reg *Registry) Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
			err := cmd.Handler(c)
			logHandled(c, normalizeHandlerName(key), start, err)
			return err
		}

		if fb := reg.TextFallback(); fb != nil {
			err := fb(c)
			logHandled(c, "text", start, err)
			return err
		}
		return nil
	}
	return Route{
		Endpoint: tele.OnText,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}

func logHandled(c tele.Context, handlerName string, start time.Time, err error) {
	ctx := middleware.BuildContext(c)
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("handler", handlerName),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", logger.SanitizeError(err)))
	}
	logger.Info(ctx, "tg", "handler.handled", attrs...)
}

func normalizeHandlerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	name = strings.TrimPrefix(name, "/")
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

func displayName(user *tele.User) string {
	name := strings.TrimSpace(user.FirstName)
	if name == "" {
		name = strings.TrimSpace(user.Username)
	}
	return name
}
