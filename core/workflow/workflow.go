// Package workflow drives the per-user quiz conversation: the state
// machine, payload validation, and batch delivery. It is transport-agnostic;
// the Telegram layer feeds it events through the three entry points and
// provides a Messenger for outbound sends.
package workflow

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"quizbot/core/health"
	"quizbot/core/logger"
	"quizbot/core/quiz"
	"quizbot/core/session"
)

// Callback payload contract for the anonymity selection keyboard.
const (
	CallbackAnonymous    = "anonymous_true"
	CallbackNonAnonymous = "anonymous_false"
)

const (
	cleanSendDelay = 100 * time.Millisecond
	dirtySendDelay = 500 * time.Millisecond
	betweenMsgs    = 200 * time.Millisecond
)

// Choice is one inline keyboard button offered to the user.
type Choice struct {
	Label string
	Data  string
}

// Messenger performs outbound chat operations. Implementations route every
// call through the retrying executor; errors returned here are terminal.
type Messenger interface {
	// SendMessage delivers formatted text, optionally with an inline
	// keyboard, and returns the id of the sent message.
	SendMessage(ctx context.Context, chatID int64, text string, choices [][]Choice) (int, error)
	// SendQuizPoll delivers one question as a quiz poll.
	SendQuizPoll(ctx context.Context, chatID int64, question quiz.QuestionRecord, anonymous bool) error
	// EditMessageText replaces the text of a previously sent message.
	EditMessageText(ctx context.Context, chatID int64, messageID int, text string) error
}

// Workflow orchestrates sessions, validation, and delivery for one bot.
type Workflow struct {
	sessions  *session.Store
	messenger Messenger
	monitor   *health.Monitor

	// sleep is swapped out by tests.
	sleep func(time.Duration)
}

// New constructs a Workflow. The monitor may be nil; /status then reports
// no health data.
func New(sessions *session.Store, messenger Messenger, monitor *health.Monitor) *Workflow {
	return &Workflow{
		sessions:  sessions,
		messenger: messenger,
		monitor:   monitor,
		sleep:     time.Sleep,
	}
}

// OnCommand handles a slash command. Unknown command names produce a hint
// rather than an error.
func (w *Workflow) OnCommand(ctx context.Context, name string, userID, chatID int64, userName string) {
	defer w.recoverInternal(ctx, "command."+name, userID, chatID)

	w.sessions.Touch(userID)

	switch name {
	case "start":
		w.startCycle(ctx, userID, chatID, userName)
	case "help":
		w.send(ctx, chatID, helpMessage, nil)
	case "quickstart":
		w.send(ctx, chatID, quickstartMessage, nil)
	case "template":
		w.sendTemplate(ctx, chatID)
	case "status":
		w.sendStatus(ctx, userID, chatID, userName)
	case "toggle":
		w.sendToggle(ctx, userID, chatID)
	default:
		w.send(ctx, chatID, unknownCommandMessage, nil)
	}
}

// OnCallback handles an inline keyboard press carrying the anonymity
// selection. Data outside the contract is ignored.
func (w *Workflow) OnCallback(ctx context.Context, data string, userID, chatID int64, messageID int) {
	defer w.recoverInternal(ctx, "callback", userID, chatID)

	if data != CallbackAnonymous && data != CallbackNonAnonymous {
		logger.Debug(ctx, "workflow", "callback.ignored",
			slog.Int64("user_id", userID),
			slog.String("data", logger.SanitizeLimit(data, 64)),
		)
		return
	}

	w.sessions.Touch(userID)
	anonymous := data == CallbackAnonymous

	sess, _ := w.sessions.Get(userID)
	sess.Anonymous = anonymous
	sess.State = session.StateWaitingForJSON
	w.sessions.Set(userID, sess)

	logger.Info(ctx, "workflow", "state.waiting_for_json",
		slog.Int64("user_id", userID),
		slog.Bool("anonymous", anonymous),
	)

	if err := w.messenger.EditMessageText(ctx, chatID, messageID, typeSelectedMessage(anonymous)); err != nil {
		// Edit can legitimately fail (message too old); fall through and
		// keep the flow moving with fresh messages.
		logger.Warn(ctx, "workflow", "edit.fallback",
			slog.Int64("chat_id", chatID),
			slog.String("err", logger.SanitizeError(err)),
		)
	}

	w.sleep(betweenMsgs)
	w.send(ctx, chatID, templateJSON, nil)
	w.sleep(betweenMsgs)
	w.send(ctx, chatID, payloadInstructionsMessage(anonymous), nil)
}

// OnText handles free text. Outside the waiting_for_json state this is an
// implicit restart; inside it the text is treated as a quiz payload. Every
// payload outcome routes the user back to the type selection menu.
func (w *Workflow) OnText(ctx context.Context, text string, userID, chatID int64) {
	defer w.recoverInternal(ctx, "text", userID, chatID)

	w.sessions.Touch(userID)

	sess, _ := w.sessions.Get(userID)
	if sess.State != session.StateWaitingForJSON {
		w.send(ctx, chatID, wrongStateMessage, nil)
		w.startCycle(ctx, userID, chatID, "")
		return
	}

	processingID, perr := w.send(ctx, chatID, processingMessage, nil)

	batch, err := quiz.Validate(text, chatID, sess.Anonymous)
	if err != nil {
		reason := "invalid"
		if coded, ok := err.(interface{ Code() string }); ok {
			reason = coded.Code()
		}
		logger.Info(ctx, "workflow", "payload.rejected",
			slog.Int64("user_id", userID),
			slog.String("reason", reason),
		)
		w.editOrSend(ctx, chatID, processingID, perr, rejectionMessage(err))
		w.restartCycle(ctx, userID, chatID)
		return
	}

	w.editOrSend(ctx, chatID, processingID, perr, validatedMessage(len(batch.Questions), batch.Anonymous))

	delivered := w.sendBatch(ctx, batch)

	logger.Info(ctx, "workflow", "batch.done",
		slog.Int64("user_id", userID),
		slog.Int("delivered", delivered),
		slog.Int("total", len(batch.Questions)),
	)

	if delivered > 0 {
		w.editOrSend(ctx, chatID, processingID, perr, completionMessage(delivered, len(batch.Questions), batch.Anonymous))
	} else {
		w.editOrSend(ctx, chatID, processingID, perr, sendFailedMessage)
	}

	w.sleep(betweenMsgs)
	w.restartCycle(ctx, userID, chatID)
}

// sendBatch delivers the batch in order, never aborting early. The
// inter-question delay stays short while every send has succeeded and grows
// once any failure is observed, self-throttling under adverse conditions.
func (w *Workflow) sendBatch(ctx context.Context, batch *quiz.Batch) int {
	delivered := 0
	clean := true
	for i, q := range batch.Questions {
		if err := w.messenger.SendQuizPoll(ctx, batch.ChatID, q, batch.Anonymous); err != nil {
			clean = false
			logger.Warn(ctx, "workflow", "poll.send_failed",
				slog.Int64("chat_id", batch.ChatID),
				slog.Int("question", i+1),
				slog.String("err", logger.SanitizeError(err)),
			)
		} else {
			delivered++
		}

		if i < len(batch.Questions)-1 {
			if clean {
				w.sleep(cleanSendDelay)
			} else {
				w.sleep(dirtySendDelay)
			}
		}
	}
	return delivered
}

// startCycle implements the start transition: preference back to default,
// state to choosing_type, welcome plus the selection keyboard.
func (w *Workflow) startCycle(ctx context.Context, userID, chatID int64, userName string) {
	sess, _ := w.sessions.Get(userID)
	sess.State = session.StateChoosingType
	sess.Anonymous = true
	w.sessions.Set(userID, sess)

	logger.Info(ctx, "workflow", "state.choosing_type",
		slog.Int64("user_id", userID),
	)

	if userName != "" {
		w.send(ctx, chatID, welcomeMessage(userName), nil)
		w.sleep(betweenMsgs)
	}
	w.sendTypeSelection(ctx, chatID)
}

// restartCycle re-offers the menu after a batch outcome of any kind.
func (w *Workflow) restartCycle(ctx context.Context, userID, chatID int64) {
	sess, _ := w.sessions.Get(userID)
	sess.State = session.StateChoosingType
	w.sessions.Set(userID, sess)

	w.send(ctx, chatID, restartMessage, nil)
	w.sleep(betweenMsgs)
	w.sendTypeSelection(ctx, chatID)
}

func (w *Workflow) sendTypeSelection(ctx context.Context, chatID int64) {
	choices := [][]Choice{
		{{Label: "🔒 Anonymous Quiz (can forward to channels)", Data: CallbackAnonymous}},
		{{Label: "👤 Non-Anonymous Quiz (shows who voted)", Data: CallbackNonAnonymous}},
	}
	w.send(ctx, chatID, typeSelectionMessage, choices)
}

func (w *Workflow) sendTemplate(ctx context.Context, chatID int64) {
	w.send(ctx, chatID, templateIntroMessage, nil)
	w.send(ctx, chatID, templateJSON, nil)
	w.send(ctx, chatID, templateOutroMessage, nil)
}

func (w *Workflow) sendToggle(ctx context.Context, userID, chatID int64) {
	sess, _ := w.sessions.Get(userID)
	choices := [][]Choice{
		{{Label: "🔒 Switch to Anonymous", Data: CallbackAnonymous}},
		{{Label: "👤 Switch to Non-Anonymous", Data: CallbackNonAnonymous}},
	}
	w.send(ctx, chatID, toggleMessage(sess.Anonymous), choices)
}

func (w *Workflow) sendStatus(ctx context.Context, userID, chatID int64, userName string) {
	sess, _ := w.sessions.Get(userID)
	var snap health.Snapshot
	if w.monitor != nil {
		snap = w.monitor.Snapshot()
	}
	w.send(ctx, chatID, statusMessage(userName, chatID, sess.Anonymous, snap, w.sessions.Len()), nil)
}

func (w *Workflow) send(ctx context.Context, chatID int64, text string, choices [][]Choice) (int, error) {
	id, err := w.messenger.SendMessage(ctx, chatID, text, choices)
	if err != nil {
		logger.Warn(ctx, "workflow", "send.failed",
			slog.Int64("chat_id", chatID),
			slog.String("err", logger.SanitizeError(err)),
		)
	}
	return id, err
}

// editOrSend updates the progress message in place when it exists and falls
// back to a fresh message when the original send failed.
func (w *Workflow) editOrSend(ctx context.Context, chatID int64, messageID int, sendErr error, text string) {
	if sendErr == nil && messageID != 0 {
		if err := w.messenger.EditMessageText(ctx, chatID, messageID, text); err == nil {
			return
		}
	}
	w.send(ctx, chatID, text, nil)
}

// recoverInternal is the last line of defense for the event-processing
// domain: an unexpected fault is logged, converted into a generic failure
// message, and the session is reset to the menu. It never rethrows.
func (w *Workflow) recoverInternal(ctx context.Context, entry string, userID, chatID int64) {
	r := recover()
	if r == nil {
		return
	}
	logger.Error(ctx, "workflow", "internal_fault",
		slog.String("entry", entry),
		slog.Int64("user_id", userID),
		slog.Any("err", r),
		slog.String("stack", string(debug.Stack())),
	)
	sess, _ := w.sessions.Get(userID)
	sess.State = session.StateChoosingType
	w.sessions.Set(userID, sess)
	w.send(ctx, chatID, genericFailureMessage, nil)
}

func rejectionMessage(err error) string {
	switch err {
	case quiz.ErrMalformedPayload:
		return malformedMessage
	case quiz.ErrNoQuestions:
		return noQuestionsMessage
	case quiz.ErrNoValidQuestions:
		return noValidQuestionsMsg
	default:
		return genericFailureMessage
	}
}
