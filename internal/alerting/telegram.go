package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// TelegramAlerter sends alerts to a Telegram chat via the Bot API.
type TelegramAlerter struct {
	botToken string
	chatID   string
	client   *http.Client
	logger   *slog.Logger
}

// NewTelegramAlerter creates a Telegram alerter.
func NewTelegramAlerter(botToken, chatID string, logger *slog.Logger) *TelegramAlerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &TelegramAlerter{
		botToken: botToken,
		chatID:   chatID,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Alert sends a formatted message to the configured chat.
func (t *TelegramAlerter) Alert(ctx context.Context, severity Severity, message string, fields ...any) error {
	text := t.formatMessage(severity, message, fields...)
	return t.sendMessage(ctx, text)
}

// Name returns the alerter name.
func (t *TelegramAlerter) Name() string {
	return "telegram"
}

func (t *TelegramAlerter) formatMessage(severity Severity, message string, fields ...any) string {
	text := fmt.Sprintf("%s <b>%s</b>\n\n%s", severity.Emoji(), severity.String(), message)
	if details := FormatFields(fields...); details != "" {
		text += "\n\n" + details
	}
	text += fmt.Sprintf("\n\n<i>%s</i>", time.Now().UTC().Format("2006-01-02 15:04:05 UTC"))
	return text
}

func (t *TelegramAlerter) sendMessage(ctx context.Context, text string) error {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)

	payload := map[string]any{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "HTML",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram API returned %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}
