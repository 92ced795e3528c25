package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/joelsfoster/gizmo/internal/engine"
	"github.com/joelsfoster/gizmo/internal/history"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

func sampleEntry() history.Entry {
	return history.Entry{
		Symbol:        "BTCUSD",
		Action:        "long_entry",
		OrderType:     "market",
		Outcome:       "degraded",
		ObservedPrice: 30123.456,
		ExecutedAt:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Steps: []engine.Step{
			{Name: "snapshot", Status: engine.StepOK},
			{Name: "place_entry", Status: engine.StepOK, Detail: "Buy 285"},
			{Name: "ladder", Status: engine.StepSkipped},
			{Name: "trailing_stop", Status: engine.StepFailed, Error: "retCode 10001"},
		},
	}
}

func TestFormat(t *testing.T) {
	text := Format(sampleEntry())

	assert.Contains(t, text, `*long\_entry* BTCUSD`)
	assert.Contains(t, text, "Outcome: `degraded` (market)")
	assert.Contains(t, text, "Price: 30123.46")
	assert.Contains(t, text, "• place\\_entry: Buy 285")
	assert.Contains(t, text, "◦ ladder skipped")
	assert.Contains(t, text, "✗ trailing\\_stop: retCode 10001")
	assert.Contains(t, text, "_2024-03-01T12:00:00Z_")
	assert.True(t, strings.HasPrefix(text, "⚠️"))
}

func TestTelegram_Write(t *testing.T) {
	f := &fakeSender{}
	tg := &Telegram{api: f, chatID: 42}

	require.NoError(t, tg.Write(context.Background(), sampleEntry()))
	require.Len(t, f.sent, 1)
	assert.Equal(t, int64(42), f.sent[0].ChatID)
	assert.Equal(t, "Markdown", f.sent[0].ParseMode)
	assert.Equal(t, "telegram", tg.Name())
}

func TestTelegram_SkipsQuietOutcomes(t *testing.T) {
	f := &fakeSender{}
	tg := &Telegram{api: f, chatID: 42}

	for _, outcome := range []string{"suppressed", "noop"} {
		e := sampleEntry()
		e.Outcome = outcome
		require.NoError(t, tg.Write(context.Background(), e))
	}
	assert.Empty(t, f.sent)
}

func TestTelegram_SendError(t *testing.T) {
	f := &fakeSender{err: errors.New("chat not found")}
	tg := &Telegram{api: f, chatID: 42}

	err := tg.Write(context.Background(), sampleEntry())
	assert.EqualError(t, err, "chat not found")
}
