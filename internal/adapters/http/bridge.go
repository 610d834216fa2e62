package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/haleybot/haley/internal/logging"
	"github.com/haleybot/haley/pkg/domain"
)

// BridgeTransport delivers outbound messages by POSTing them to the chat
// bridge, the process that speaks the actual chat platform protocol.
type BridgeTransport struct {
	baseURL string
	client  *http.Client
}

// NewBridgeTransport creates a transport against the bridge's base URL.
func NewBridgeTransport(baseURL string) *BridgeTransport {
	return &BridgeTransport{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts one message to the bridge's /send endpoint.
func (t *BridgeTransport) Send(ctx context.Context, msg domain.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("bridge send failed: %s", resp.Status)
	}
	return nil
}

// InviteLink asks the bridge for a join link to the group chat.
func (t *BridgeTransport) InviteLink(ctx context.Context, chatID int64) (string, error) {
	url := fmt.Sprintf("%s/invite-link?chat_id=%d", t.baseURL, chatID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build invite request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("get invite link: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("bridge invite link failed: %s", resp.Status)
	}

	var out struct {
		Link string `json:"link"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out); err != nil {
		return "", fmt.Errorf("decode invite link: %w", err)
	}
	return out.Link, nil
}

// LogTransport is the fallback when no bridge is configured: every send is
// written to the log and dropped. Useful for local runs.
type LogTransport struct {
	logger *slog.Logger
}

// NewLogTransport creates a log-only transport.
func NewLogTransport(logger *slog.Logger) *LogTransport {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LogTransport{logger: logger}
}

// Send logs the message instead of delivering it.
func (t *LogTransport) Send(ctx context.Context, msg domain.Message) error {
	t.logger.Info("outbound message",
		"chat_id", msg.ChatID,
		"text", msg.Text,
		"buttons", len(msg.Buttons),
		"photo_bytes", len(msg.Photo),
	)
	return nil
}

// InviteLink always fails; there is no platform to link into.
func (t *LogTransport) InviteLink(ctx context.Context, chatID int64) (string, error) {
	return "", fmt.Errorf("no chat bridge configured")
}
