package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Request is a single chat-style completion: one system instruction and one
// user payload.
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float32
}

// Completer issues one completion call. Implementations must be safe for
// concurrent use.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Client calls an OpenAI-compatible /v1/chat/completions endpoint
// (LM Studio, Ollama, llama.cpp, vLLM, OpenAI).
type Client struct {
	api        *openai.Client
	httpClient *http.Client
	baseURL    string
	model      string
	timeout    time.Duration

	Stats *Stats
}

// NewClient builds a client for baseURL. The API key is optional for local
// servers. Each call is bounded by timeout.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	if apiKey == "" {
		apiKey = "not-needed"
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	baseURL = normalizeBaseURL(baseURL)

	httpClient := &http.Client{}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = httpClient

	return &Client{
		api:        openai.NewClientWithConfig(cfg),
		httpClient: httpClient,
		baseURL:    baseURL,
		model:      model,
		timeout:    timeout,
		Stats:      NewStats(time.Hour),
	}
}

// normalizeBaseURL makes sure the URL ends in /v1, which go-openai expects.
func normalizeBaseURL(u string) string {
	u = strings.TrimRight(strings.TrimSpace(u), "/")
	if !strings.HasSuffix(u, "/v1") {
		u += "/v1"
	}
	return u
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

// BaseURL returns the normalized backend URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Complete sends one chat completion and returns the generated text.
// Failures are *Error values; cancellation of ctx is returned as ctx.Err().
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User})

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		err = classify(ctx, err)
		var e *Error
		if errors.As(err, &e) {
			c.Stats.RecordFailure(e.Kind, elapsed)
		}
		return "", err
	}
	if len(resp.Choices) == 0 {
		c.Stats.RecordFailure(KindMalformed, elapsed)
		return "", &Error{Kind: KindMalformed, Err: errors.New("no choices in response")}
	}
	text := stripThinking(resp.Choices[0].Message.Content)
	if text == "" {
		c.Stats.RecordFailure(KindMalformed, elapsed)
		return "", &Error{Kind: KindMalformed, Err: errors.New("empty message content")}
	}
	c.Stats.Record(elapsed)
	return text, nil
}

// classify maps transport and decoding errors onto the Error taxonomy.
func classify(parent context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}

	var (
		apiErr    *openai.APIError
		reqErr    *openai.RequestError
		netErr    net.Error
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &apiErr):
		return &Error{Kind: KindStatus, StatusCode: apiErr.HTTPStatusCode, Err: err}
	case errors.As(err, &reqErr):
		return &Error{Kind: KindStatus, StatusCode: reqErr.HTTPStatusCode, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Err: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &Error{Kind: KindTimeout, Err: err}
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr),
		errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return &Error{Kind: KindMalformed, Err: err}
	default:
		return &Error{Kind: KindUnreachable, Err: err}
	}
}

var thinkBlockRe = regexp.MustCompile(`(?s)<think>.*?</think>`)

// stripThinking drops reasoning blocks some local models emit before the answer.
func stripThinking(s string) string {
	return strings.TrimSpace(thinkBlockRe.ReplaceAllString(s, ""))
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
