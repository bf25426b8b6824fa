package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"quizbot/core/logger"
	"quizbot/core/quiz"
	"quizbot/core/telegram/executor"
	"quizbot/core/telegram/keyboard"
	"quizbot/core/workflow"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// Client adapts a telebot bot into the workflow's Messenger. Every outbound
// call goes through the retrying executor.
type Client struct {
	bot  *tele.Bot
	exec *executor.Executor
}

// NewClient wraps bot with the given executor.
func NewClient(bot *tele.Bot, exec *executor.Executor) *Client {
	return &Client{bot: bot, exec: exec}
}

var _ workflow.Messenger = (*Client)(nil)

// SendMessage sends Markdown-formatted text, falling back to plain text when
// Telegram rejects the markup. Returns the id of the delivered message.
func (s *Client) SendMessage(ctx context.Context, chatID int64, text string, choices [][]workflow.Choice) (int, error) {
	var markup *tele.ReplyMarkup
	if len(choices) > 0 {
		rows := make([][]keyboard.InlineBtn, len(choices))
		for i, row := range choices {
			btns := make([]keyboard.InlineBtn, len(row))
			for j, ch := range row {
				btns[j] = keyboard.InlineBtn{Text: ch.Label, Unique: ch.Data}
			}
			rows[i] = btns
		}
		markup = keyboard.InlineButtonsRows(rows...)
	}

	var msg *tele.Message
	err := s.exec.Execute(ctx, "send_message", func(ctx context.Context) error {
		opts := []interface{}{tele.ModeMarkdown}
		if markup != nil {
			opts = append(opts, markup)
		}
		m, err := s.bot.Send(tele.ChatID(chatID), text, opts...)
		if isParseError(err) {
			logger.Debug(ctx, "tg", "send.plain_fallback",
				slog.Int64("chat_id", chatID),
			)
			plain := []interface{}{}
			if markup != nil {
				plain = append(plain, markup)
			}
			m, err = s.bot.Send(tele.ChatID(chatID), text, plain...)
		}
		if err != nil {
			return err
		}
		msg = m
		return nil
	})
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

// SendQuizPoll delivers one validated question as a Telegram quiz poll.
func (s *Client) SendQuizPoll(ctx context.Context, chatID int64, q quiz.QuestionRecord, anonymous bool) error {
	return s.exec.Execute(ctx, "send_poll", func(ctx context.Context) error {
		poll := &tele.Poll{
			Type:          tele.PollQuiz,
			Question:      q.Text,
			Anonymous:     anonymous,
			CorrectOption: q.CorrectIndex,
			Explanation:   q.Explanation,
		}
		poll.AddOptions(q.Options...)
		_, err := s.bot.Send(tele.ChatID(chatID), poll)
		return err
	})
}

// EditMessageText rewrites a previously sent message, with the same plain
// fallback used for sends.
func (s *Client) EditMessageText(ctx context.Context, chatID int64, messageID int, text string) error {
	stored := tele.StoredMessage{
		MessageID: strconv.Itoa(messageID),
		ChatID:    chatID,
	}
	return s.exec.Execute(ctx, "edit_message", func(ctx context.Context) error {
		_, err := s.bot.Edit(stored, text, tele.ModeMarkdown)
		if isParseError(err) {
			_, err = s.bot.Edit(stored, text)
		}
		return err
	})
}

// isParseError detects the Bad Request produced by broken Markdown entities.
func isParseError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *tele.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == 400 && strings.Contains(strings.ToLower(apiErr.Description), "can't parse")
}
