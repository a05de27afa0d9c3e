package vlm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openclaw/phonepilot/internal/config"
	"github.com/openclaw/phonepilot/internal/logging"
)

// Retry defaults for the model endpoint.
const (
	modelMaxRetries  = 3
	modelInitBackoff = time.Second
	modelMaxBackoff  = 10 * time.Second
)

// Client is an OpenAI-compatible chat completions client carrying vision
// payloads.
type Client struct {
	baseURL     string
	model       string
	apiKey      string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	apps        []string
	log         *logging.Logger
}

// NewClient builds a model client from configuration.
func NewClient(cfg config.ModelConfig, apiKey string, log *logging.Logger) *Client {
	if log == nil {
		log = logging.New()
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		apiKey:      apiKey,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
		log:         log.WithComponent("vlm"),
	}
}

// WithApps sets the launchable app names advertised in the system prompt.
func (c *Client) WithApps(apps []string) *Client {
	c.apps = apps
	return c
}

// Wire types for the chat completions API.

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NextAction sends the goal, loop feedback and screenshot and returns the
// model's raw reply text.
func (c *Client) NextAction(ctx context.Context, goal string, obs Observation) (string, error) {
	userParts := []contentPart{{Type: "text", Text: userText(goal, obs)}}
	if len(obs.Screenshot) > 0 {
		userParts = append(userParts, contentPart{
			Type: "image_url",
			ImageURL: &imageURL{
				URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(obs.Screenshot),
			},
		})
	}

	req := chatRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: []contentPart{{Type: "text", Text: AppsPrompt(c.apps)}}},
			{Role: "user", Content: userParts},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode model request: %w", err)
	}

	c.log.ModelRequest(obs.StepIndex, len(body))
	start := time.Now()

	reply, err := c.postWithRetry(ctx, body)
	if err != nil {
		return "", err
	}

	c.log.ModelResponse(obs.StepIndex, time.Since(start), len(reply))
	return reply, nil
}

// postWithRetry retries transient endpoint failures with exponential
// backoff. Client-side errors (4xx other than 429) fail immediately.
func (c *Client) postWithRetry(ctx context.Context, body []byte) (string, error) {
	backoff := modelInitBackoff
	var lastErr error

	for attempt := 0; attempt <= modelMaxRetries; attempt++ {
		reply, retryable, err := c.post(ctx, body)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
		if attempt == modelMaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > modelMaxBackoff {
			backoff = modelMaxBackoff
		}
	}
	return "", fmt.Errorf("model call failed after %d retries: %w", modelMaxRetries, lastErr)
}

func (c *Client) post(ctx context.Context, body []byte) (reply string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("failed to build model request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", true, fmt.Errorf("failed to read model response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retry, fmt.Errorf("model endpoint returned %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", false, fmt.Errorf("failed to decode model response: %w", err)
	}
	if parsed.Error != nil {
		return "", false, fmt.Errorf("model error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", false, fmt.Errorf("model response has no choices")
	}
	return parsed.Choices[0].Message.Content, true, nil
}

func userText(goal string, obs Observation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\nStep: %d\n", goal, obs.StepIndex)
	if obs.Feedback != "" {
		fmt.Fprintf(&b, "Previous action result: %s\n", obs.Feedback)
	}
	b.WriteString("Decide the next action for the current screen.")
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
