// Package notify posts execution summaries to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joelsfoster/gizmo/internal/engine"
	"github.com/joelsfoster/gizmo/internal/history"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram is a history sink that messages a single chat. Suppressed and
// no-op signals are not sent.
type Telegram struct {
	api    sender
	chatID int64
}

var _ history.Sink = (*Telegram)(nil)

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	log.Info().Str("username", api.Self.UserName).Msg("Telegram notifier connected")
	return &Telegram{api: api, chatID: chatID}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Write(_ context.Context, e history.Entry) error {
	if !notable(e) {
		return nil
	}
	msg := tgbotapi.NewMessage(t.chatID, Format(e))
	msg.ParseMode = "Markdown"
	msg.DisableWebPagePreview = true
	_, err := t.api.Send(msg)
	return err
}

func notable(e history.Entry) bool {
	switch engine.Outcome(e.Outcome) {
	case engine.OutcomeSuppressed, engine.OutcomeNoop:
		return false
	}
	return true
}

// Format renders e as a Markdown message.
func Format(e history.Entry) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s *%s* %s\n", icon(e.Outcome), escapeMarkdown(e.Action), escapeMarkdown(e.Symbol))
	fmt.Fprintf(&b, "Outcome: `%s`", e.Outcome)
	if e.OrderType != "" {
		fmt.Fprintf(&b, " (%s)", e.OrderType)
	}
	b.WriteString("\n")
	if e.ObservedPrice > 0 {
		fmt.Fprintf(&b, "Price: %s\n", formatPrice(e.ObservedPrice))
	}
	for _, s := range e.Steps {
		switch s.Status {
		case engine.StepOK:
			fmt.Fprintf(&b, "• %s", escapeMarkdown(s.Name))
			if s.Detail != "" {
				fmt.Fprintf(&b, ": %s", escapeMarkdown(s.Detail))
			}
		case engine.StepSkipped:
			fmt.Fprintf(&b, "◦ %s skipped", escapeMarkdown(s.Name))
		case engine.StepFailed:
			fmt.Fprintf(&b, "✗ %s: %s", escapeMarkdown(s.Name), escapeMarkdown(s.Error))
		}
		b.WriteString("\n")
	}
	if e.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", escapeMarkdown(e.Error))
	}
	fmt.Fprintf(&b, "_%s_", e.ExecutedAt.UTC().Format(time.RFC3339))
	return b.String()
}

func icon(outcome string) string {
	switch engine.Outcome(outcome) {
	case engine.OutcomeExecuted:
		return "✅"
	case engine.OutcomeDegraded, engine.OutcomeUnfilled:
		return "⚠️"
	}
	return "❌"
}

func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"]", "\\]",
		"`", "\\`",
	)
	return replacer.Replace(s)
}

func formatPrice(price float64) string {
	return fmt.Sprintf("%.2f", price)
}
