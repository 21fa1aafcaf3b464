// Package telegram pushes one-way alerts to a Telegram chat. Credentials
// come from the environment; when absent, notifications are skipped with a
// warning instead of failing the caller.
package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

// Notify sends a Markdown message to the configured chat. Fire and forget:
// delivery failures are logged, never propagated.
func Notify(text string) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	chatID := os.Getenv("TELEGRAM_CHAT_ID")
	if token == "" || chatID == "" {
		log.Warn().Msg("Telegram credentials missing, skipping notification")
		return
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", token)
	payload, _ := json.Marshal(map[string]string{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})

	resp, err := httpClient.Post(url, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		log.Error().Err(err).Msg("Telegram alert failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Error().Int("status", resp.StatusCode).Msg("Telegram alert rejected")
	}
}
