package voiceagent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const createAgentPath = "/v1/convai/agents/create"

// Request is everything needed to create a persona agent.
type Request struct {
	ResumeText string
	FirstName  string
	LastName   string
	APIKey     string
}

type Agent struct {
	AgentID string `json:"agent_id"`
}

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("voice agent provider returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("voice agent provider returned status %d: %s", e.StatusCode, e.Detail)
}

// Client talks to the ElevenLabs conversational AI API. The API key comes
// with each request because every user brings their own.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type createAgentBody struct {
	Name               string             `json:"name"`
	ConversationConfig conversationConfig `json:"conversation_config"`
}

type conversationConfig struct {
	Agent agentConfig `json:"agent"`
}

type agentConfig struct {
	FirstMessage string       `json:"first_message"`
	Language     string       `json:"language"`
	Prompt       promptConfig `json:"prompt"`
}

type promptConfig struct {
	Prompt string `json:"prompt"`
}

// CreateAgent provisions a remote agent and returns its id.
func (c *Client) CreateAgent(ctx context.Context, req Request) (*Agent, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return nil, errors.New("voice agent: API key is required")
	}

	body, err := json.Marshal(createAgentBody{
		Name: AgentName(req.FirstName, req.LastName),
		ConversationConfig: conversationConfig{
			Agent: agentConfig{
				FirstMessage: FirstMessage(req.FirstName),
				Language:     "en",
				Prompt:       promptConfig{Prompt: SystemPrompt(req.FirstName, req.LastName, req.ResumeText)},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("voice agent: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+createAgentPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("voice agent: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("xi-api-key", req.APIKey)

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("voice agent: request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("voice agent: read response: %w", err)
	}
	c.logger.Debug("voice agent create",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(payload)}
	}

	var agent Agent
	if err := json.Unmarshal(payload, &agent); err != nil {
		return nil, fmt.Errorf("voice agent: decode response: %w", err)
	}
	if agent.AgentID == "" {
		return nil, errors.New("voice agent: response has no agent_id")
	}
	return &agent, nil
}

// errorDetail pulls a readable message out of the provider's error body.
// detail is either a string, an object with message, or a validation list.
func errorDetail(payload []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || len(body.Detail) == 0 {
		return strings.TrimSpace(truncate(string(payload), 300))
	}

	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(body.Detail, &obj); err == nil && (obj.Message != "" || obj.Status != "") {
		if obj.Message == "" {
			return obj.Status
		}
		return obj.Message
	}
	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body.Detail, &list); err == nil && len(list) > 0 {
		msgs := make([]string, 0, len(list))
		for _, item := range list {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return truncate(string(body.Detail), 300)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
