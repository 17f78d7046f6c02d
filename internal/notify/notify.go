// Package notify reports persisted sessions to a chat.
package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/verte-zerg/zetatrack/internal/model"
	"github.com/verte-zerg/zetatrack/internal/stats"
)

// Notifier is told about every session that reached storage.
type Notifier interface {
	SessionSaved(ctx context.Context, session model.Session) error
}

// Nop ignores every notification.
type Nop struct{}

// SessionSaved does nothing.
func (Nop) SessionSaved(context.Context, model.Session) error { return nil }

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends a session summary to one chat.
type Telegram struct {
	api    sender
	chatID int64
	logger *zap.Logger
}

// NewTelegram connects to the bot API with token.
func NewTelegram(token string, chatID int64, logger *zap.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	return newTelegram(api, chatID, logger), nil
}

func newTelegram(api sender, chatID int64, logger *zap.Logger) *Telegram {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Telegram{api: api, chatID: chatID, logger: logger}
}

// SessionSaved sends the summary as MarkdownV2, retrying once as plain text
// when the formatted message is rejected.
func (t *Telegram) SessionSaved(ctx context.Context, session model.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, escapeMarkdown(FormatSummary(session)))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := t.api.Send(msg); err != nil {
		t.logger.Debug("markdown message rejected, falling back to plain text", zap.Error(err))
		if _, err := t.api.Send(tgbotapi.NewMessage(t.chatID, FormatSummary(session))); err != nil {
			return fmt.Errorf("failed to send session summary: %w", err)
		}
	}
	return nil
}

// FormatSummary renders a short plain text summary of a session.
func FormatSummary(session model.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Game finished: score %d\n", session.Score)
	if session.DetectedDurationSeconds != nil {
		fmt.Fprintf(&b, "Duration: %ds\n", *session.DetectedDurationSeconds)
	}
	var sum int64
	observed := 0
	for _, p := range session.Problems {
		if p.Placeholder() {
			continue
		}
		sum += p.LatencyMs
		observed++
	}
	fmt.Fprintf(&b, "Problems: %d", len(session.Problems))
	if observed > 0 {
		fmt.Fprintf(&b, ", avg %.1fs", float64(sum)/float64(observed)/1000)
	}
	b.WriteByte('\n')
	op, avg := stats.SlowestOperation(session.Problems)
	if op != "" && op != model.OpUnknown {
		fmt.Fprintf(&b, "Slowest: %s (%.1fs)\n", op, avg/1000)
	}
	return strings.TrimRight(b.String(), "\n")
}

var markdownSpecials = []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}

// escapeMarkdown escapes MarkdownV2 control characters.
func escapeMarkdown(text string) string {
	for _, ch := range markdownSpecials {
		text = strings.ReplaceAll(text, ch, "\\"+ch)
	}
	return text
}
