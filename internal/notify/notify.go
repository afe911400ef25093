// Package notify delivers plain-text results back to chat users.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/doyensec/safeurl"
)

// Sender delivers a text message to a chat user or group.
type Sender interface {
	Send(ctx context.Context, receiveID, text string) error
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(_ context.Context, receiveID, text string) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification", "receive_id", receiveID, "text", text)
	return nil
}

// WebhookSender posts messages to a chat platform endpoint in the Feishu
// message format.
type WebhookSender struct {
	URL    string
	Client *http.Client
}

// NewWebhookSender returns a sender whose HTTP client refuses private,
// loopback and link-local destinations.
func NewWebhookSender(url string, timeout time.Duration) *WebhookSender {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()

	return &WebhookSender{URL: url, Client: safeurl.Client(config).Client}
}

type textContent struct {
	Text string `json:"text"`
}

type messageRequest struct {
	ReceiveID string `json:"receive_id,omitempty"`
	MsgType   string `json:"msg_type"`
	Content   string `json:"content"`
}

type messageResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// maxResponseBody caps how much of a response is read.
const maxResponseBody = 64 << 10

func (s *WebhookSender) Send(ctx context.Context, receiveID, text string) error {
	content, err := json.Marshal(textContent{Text: text})
	if err != nil {
		return fmt.Errorf("encoding message content: %w", err)
	}
	body, err := json.Marshal(messageRequest{
		ReceiveID: receiveID,
		MsgType:   "text",
		Content:   string(content),
	})
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sending message: unexpected status %d", resp.StatusCode)
	}

	var result messageResponse
	if len(data) > 0 && json.Unmarshal(data, &result) == nil && result.Code != 0 {
		return fmt.Errorf("sending message: platform error %d: %s", result.Code, result.Msg)
	}
	return nil
}
