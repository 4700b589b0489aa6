package check

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/dgallion1/docproof/internal/report"
)

// OllamaConfig holds the advisory checker settings.
type OllamaConfig struct {
	Host          string // e.g. http://localhost:11434
	Model         string
	Timeout       time.Duration // per request
	ConnectTimeout  time.Duration
	MaxInputChars int
}

// Ollama asks a locally served model for style and coherence issues
// through Ollama's OpenAI-compatible API.
type Ollama struct {
	cfg        OllamaConfig
	client     *openai.Client
	httpClient *http.Client
	stats      *LLMStats
	log        *slog.Logger
	backoff    func(int) time.Duration
}

func NewOllama(cfg OllamaConfig, stats *LLMStats, log *slog.Logger) *Ollama {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = DefaultMaxInputChars
	}
	if log == nil {
		log = slog.Default()
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	clientCfg := openai.DefaultConfig("ollama")
	clientCfg.BaseURL = strings.TrimRight(cfg.Host, "/") + "/v1"
	clientCfg.HTTPClient = httpClient

	return &Ollama{
		cfg:        cfg,
		client:     openai.NewClientWithConfig(clientCfg),
		httpClient: httpClient,
		stats:      stats,
		log:        log.With("checker", string(report.Advisory), "host", cfg.Host, "model", cfg.Model),
		backoff:    Backoff,
	}
}

func (o *Ollama) Method() report.Method { return report.Advisory }

// Initialize checks the server is reachable by listing installed models. An unreachable
// server or one with no models is an error.
func (o *Ollama) Initialize(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.ConnectTimeout)
	defer cancel()

	list, err := o.client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("%w: ollama at %s: %w", ErrUnavailable, o.cfg.Host, err)
	}
	if len(list.Models) == 0 {
		return fmt.Errorf("%w: ollama at %s has no models installed", ErrUnavailable, o.cfg.Host)
	}

	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	if !slices.Contains(ids, o.cfg.Model) {
		o.log.Warn("configured model not installed", "installed", ids)
	}
	o.log.Info("ollama reachable", "models", len(ids))
	return nil
}

// Check sends the page text to the model and parses the reply.
func (o *Ollama) Check(ctx context.Context, text string) ([]report.Finding, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	prompt := BuildReviewPrompt(text, o.cfg.MaxInputChars)
	start := time.Now()
	reply, err := withRetry(ctx, o.log, o.backoff, func() (string, error) {
		return o.complete(ctx, prompt)
	})
	o.stats.Record(time.Since(start), err != nil)
	if err != nil {
		return nil, fmt.Errorf("ollama check: %w", err)
	}

	findings, lines := ParseResponse(reply)
	for _, l := range lines {
		if l.Status == LineMalformed {
			o.log.Debug("skipping malformed response line", "line", l.Line, "problem", l.Problem)
		}
	}
	return findings, nil
}

func (o *Ollama) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", classifyAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty response from ollama")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stats returns the latency tracker, which may be nil.
func (o *Ollama) Stats() *LLMStats { return o.stats }

// Cleanup closes idle connections.
func (o *Ollama) Cleanup() error {
	o.httpClient.CloseIdleConnections()
	return nil
}

// classifyAPIError marks rate limiting and server errors as retryable.
func classifyAPIError(err error) error {
	status := 0
	var msg string

	var reqErr *openai.RequestError
	var apiErr *openai.APIError
	switch {
	case errors.As(err, &apiErr):
		status, msg = apiErr.HTTPStatusCode, apiErr.Message
	case errors.As(err, &reqErr):
		status, msg = reqErr.HTTPStatusCode, string(reqErr.Body)
	default:
		return err
	}

	if status == http.StatusTooManyRequests || status >= 500 {
		return &RetryableError{StatusCode: status, Message: msg}
	}
	return fmt.Errorf("ollama api status %d: %s", status, truncate(msg, 200))
}
