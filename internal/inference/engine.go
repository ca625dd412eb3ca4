// Package inference resolves extracted HTTP calls to likely callee
// service names by querying an Ollama text-generation endpoint.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Aravind0403/ServiceScope-v2/internal/domain"
	"github.com/Aravind0403/ServiceScope-v2/internal/repository"
)

var _ repository.InferenceEngine = (*Engine)(nil)

// Engine is an HTTP client for the Ollama /api/generate endpoint.
type Engine struct {
	baseURL    string
	model      string
	confidence float64
	client     *http.Client
	logger     *zap.Logger
}

// NewEngine creates an inference engine. The confidence value is stamped
// on every result: the backing model does not report one, so it is a
// policy knob rather than a computed score.
func NewEngine(baseURL, model string, confidence float64, timeout time.Duration, logger *zap.Logger) *Engine {
	return &Engine{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		confidence: confidence,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Infer asks the model for the single most likely internal service behind
// the URL. It returns (nil, nil) when the model produced no usable answer
// and an error only for transport-level failures; callers treat both as a
// per-call skip, never as a job failure.
func (e *Engine) Infer(ctx context.Context, caller, url, method string) (*domain.Inference, error) {
	prompt := fmt.Sprintf(
		"Given the URL %s used by service %s, what is the most likely internal service name being called?\n"+
			"Please only return the most probable service name as a short answer like: \"payment_service\" or \"order_service\".",
		url, caller,
	)

	body, err := json.Marshal(generateRequest{
		Model:  e.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return nil, fmt.Errorf("inference: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("inference: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("inference: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference: ollama returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var generated generateResponse
	if err := json.Unmarshal(respBody, &generated); err != nil {
		return nil, fmt.Errorf("inference: unmarshal response: %w", err)
	}

	raw := strings.TrimSpace(generated.Response)
	callee := parseCompletion(raw)
	if callee == "" {
		e.logger.Debug("Model produced no usable service name",
			zap.String("url", url),
			zap.String("raw_response", raw),
		)
		return nil, nil
	}

	return &domain.Inference{
		Callee:      callee,
		Confidence:  e.confidence,
		Model:       e.model,
		RawResponse: raw,
	}, nil
}

// parseCompletion cleans a model completion down to a bare service name:
// only the first line is kept, since verbose models tend to append an
// explanation, then markdown emphasis and surrounding quotes are stripped.
func parseCompletion(raw string) string {
	cleaned := raw
	if idx := strings.IndexByte(cleaned, '\n'); idx >= 0 {
		cleaned = cleaned[:idx]
	}
	cleaned = strings.ReplaceAll(cleaned, "**", "")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.Trim(cleaned, `"`)
	return strings.TrimSpace(cleaned)
}
