package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// ErrAssistantDisabled means no assistant API endpoint is configured
var ErrAssistantDisabled = errors.New("assistant is not configured")

const assistantSystemPrompt = "You are a parenting assistant for the Care4Kids app. " +
	"Answer questions about child device management, screen time and family settings. " +
	"Keep answers short and practical."

// AssistantService proxies parent questions to an external chat-completions
// API. The backend holds the API key so it never ships in the mobile app.
type AssistantService struct {
	apiURL string
	apiKey string
	model  string
	client *http.Client
}

// NewAssistantService creates a new assistant service
func NewAssistantService(apiURL, apiKey, model string) *AssistantService {
	return &AssistantService{
		apiURL: apiURL,
		apiKey: apiKey,
		model:  model,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// IsEnabled returns whether an assistant endpoint is configured
func (s *AssistantService) IsEnabled() bool {
	return s.apiURL != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Ask sends a parent's question to the assistant and returns the reply text
func (s *AssistantService) Ask(ctx context.Context, question string) (string, error) {
	if !s.IsEnabled() {
		return "", ErrAssistantDisabled
	}

	payload, err := json.Marshal(chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: assistantSystemPrompt},
			{Role: "user", Content: question},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode assistant request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("assistant request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read assistant response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("Assistant API returned status %d", resp.StatusCode)
		return "", fmt.Errorf("assistant API returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode assistant response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("assistant returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
