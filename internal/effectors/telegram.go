package effectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vthunder/plantbud/internal/types"
)

const (
	telegramBaseURL = "https://api.telegram.org"
	telegramLimit   = 4096
)

// TelegramNotifier sends notifications through the Telegram Bot API
type TelegramNotifier struct {
	baseURL    string
	token      string
	chatID     string
	httpClient *http.Client
}

// NewTelegramNotifier creates a notifier for one chat. baseURL may be empty.
func NewTelegramNotifier(baseURL, token, chatID string) *TelegramNotifier {
	if baseURL == "" {
		baseURL = telegramBaseURL
	}
	return &TelegramNotifier{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		chatID:     chatID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type sendMessageRequest struct {
	ChatID              string `json:"chat_id"`
	Text                string `json:"text"`
	DisableNotification bool   `json:"disable_notification,omitempty"`
}

// Notify sends text. Low urgency messages are delivered silently.
func (n *TelegramNotifier) Notify(ctx context.Context, text string, urgency types.Urgency) error {
	for _, part := range chunk(text, telegramLimit) {
		body, err := json.Marshal(sendMessageRequest{
			ChatID:              n.chatID,
			Text:                part,
			DisableNotification: urgency == types.UrgencyLow,
		})
		if err != nil {
			return err
		}
		url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.token)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("telegram API failed with status %d: %s", resp.StatusCode, string(respBody))
		}
	}
	return nil
}
