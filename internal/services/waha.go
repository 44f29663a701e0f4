package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"school_portal_echo/internal/config"
)

type WahaService struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewWahaService(cfg config.WahaConfig) *WahaService {
	return &WahaService{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *WahaService) makeRequest(ctx context.Context, method, endpoint string, payload interface{}) error {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		bodyReader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fmt.Sprintf("%s%s", s.baseURL, endpoint), bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

func (s *WahaService) sendSeen(ctx context.Context, chatId string) error {
	return s.makeRequest(ctx, "POST", "/api/sendSeen", map[string]string{
		"chatId":  chatId,
		"session": "default",
	})
}

func (s *WahaService) startTyping(ctx context.Context, chatId string) error {
	return s.makeRequest(ctx, "POST", "/api/startTyping", map[string]string{
		"chatId":  chatId,
		"session": "default",
	})
}

func (s *WahaService) stopTyping(ctx context.Context, chatId string) error {
	return s.makeRequest(ctx, "POST", "/api/stopTyping", map[string]string{
		"chatId":  chatId,
		"session": "default",
	})
}

func (s *WahaService) sendText(ctx context.Context, chatId, text string) error {
	return s.makeRequest(ctx, "POST", "/api/sendText", map[string]string{
		"chatId":  chatId,
		"text":    text,
		"session": "default",
	})
}

// NormalizeChatID normalizes WhatsApp chat IDs by adding required suffixes and standardizing country codes
func NormalizeChatID(chatId string) string {
	chatId = strings.TrimSpace(chatId)

	// If it's already a group ID, it's correct
	if strings.HasSuffix(chatId, "@g.us") {
		return chatId
	}

	// Remove @c.us suffix temporarily if it exists for easier processing
	chatId = strings.TrimSuffix(chatId, "@c.us")

	// Drop formatting characters people type into phone fields
	chatId = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(chatId)
	chatId = strings.TrimPrefix(chatId, "+")

	// Standardize Nigerian local numbers starting with '0' to '234'
	if strings.HasPrefix(chatId, "0") {
		chatId = "234" + strings.TrimPrefix(chatId, "0")
	}

	// Re-add required suffix
	return chatId + "@c.us"
}

// SendMessage delivers text the way a person would: mark seen, type briefly, then send
func (s *WahaService) SendMessage(ctx context.Context, chatId, text string) error {
	chatId = NormalizeChatID(chatId)

	steps := []struct {
		name  string
		call  func(ctx context.Context, chatId string) error
		pause time.Duration
	}{
		{name: "send seen", call: s.sendSeen, pause: 100 * time.Millisecond},
		{name: "start typing", call: s.startTyping, pause: 150 * time.Millisecond},
		{name: "stop typing", call: s.stopTyping, pause: 50 * time.Millisecond},
	}
	for _, step := range steps {
		if err := step.call(ctx, chatId); err != nil {
			return fmt.Errorf("failed to %s: %w", step.name, err)
		}
		if err := pause(ctx, step.pause); err != nil {
			return err
		}
	}

	if err := s.sendText(ctx, chatId, text); err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}
	return nil
}

func pause(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
