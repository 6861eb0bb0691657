package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"
)

// escalationFieldDocTypes are types where a missing date or issuer is
// itself a reason to escalate.
var escalationFieldDocTypes = []string{"financial", "tax", "medical", "insurance", "legal"}

// ClientConfig holds the endpoint and escalation policy.
type ClientConfig struct {
	BaseURL             string // e.g. http://localhost:1234/v1
	DefaultModel        string
	EscalationModel     string
	EscalationThreshold float64  // confidence below this escalates
	EscalationDocTypes  []string // types that always escalate
	MaxRetries          int
	Timeout             time.Duration
}

// Client talks to an OpenAI-compatible chat-completions endpoint. Local
// inference servers accept any API key, so none is sent.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// CheckConnection lists the endpoint's loaded models and verifies the
// configured default and escalation models are among them, so a labeling
// run fails up front instead of erroring on every file.
func (c *Client) CheckConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimSuffix(c.cfg.BaseURL, "/")+"/models", nil)
	if err != nil {
		return fmt.Errorf("build models request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("LLM endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read models response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("LLM endpoint returned status %d", resp.StatusCode)
	}

	var models modelsResponse
	if err := json.Unmarshal(body, &models); err != nil {
		return fmt.Errorf("decode models response: %w", err)
	}
	loaded := make([]string, 0, len(models.Data))
	for _, m := range models.Data {
		loaded = append(loaded, m.ID)
	}

	var missing []string
	for _, want := range []string{c.cfg.DefaultModel, c.cfg.EscalationModel} {
		if want == "" || slices.Contains(loaded, want) || slices.Contains(missing, want) {
			continue
		}
		missing = append(missing, want)
	}
	if len(missing) > 0 {
		available := "none"
		if len(loaded) > 0 {
			available = strings.Join(loaded, ", ")
		}
		return fmt.Errorf("model(s) not loaded: %s (available: %s). Load them in the inference server and retry",
			strings.Join(missing, ", "), available)
	}
	return nil
}

// LabelDocument classifies one document, retrying on transport, parse, and
// validation failures. The escalate flag selects the stronger model.
func (c *Client) LabelDocument(ctx context.Context, lctx LabelingContext, escalate bool) (*LabelOutput, error) {
	model := c.cfg.DefaultModel
	if escalate {
		model = c.cfg.EscalationModel
	}
	userPrompt := BuildUserPrompt(lctx)

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		label, err := c.labelOnce(ctx, model, userPrompt, lctx.DocTypes)
		if err != nil {
			lastErr = err
			continue
		}
		return label, nil
	}
	return nil, fmt.Errorf("failed to label document after %d attempts. Last error: %w",
		c.cfg.MaxRetries, lastErr)
}

func (c *Client) labelOnce(ctx context.Context, model, userPrompt string, docTypes []string) (*LabelOutput, error) {
	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0.1,
		MaxTokens:   1000,
	})
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(c.cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("LLM call failed: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("LLM call failed: status %d: %s", resp.StatusCode, respBody)
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("chat response has no choices")
	}

	raw := []byte(stripFence(chat.Choices[0].Message.Content))
	if err := validateLabelJSON(raw); err != nil {
		return nil, err
	}
	var label LabelOutput
	if err := json.Unmarshal(raw, &label); err != nil {
		return nil, fmt.Errorf("decode label: %w", err)
	}

	// Out-of-vocabulary types are rewritten rather than rejected so the
	// planner never sees them.
	if !slices.Contains(docTypes, label.DocType) {
		original := label.DocType
		label.DocType = "other"
		label.Why = fmt.Sprintf("[Auto-corrected from '%s'] %s", original, label.Why)
	}
	return &label, nil
}

// stripFence removes surrounding whitespace and an optional markdown code
// fence, with or without a json language tag.
func stripFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.Trim(content, "`")
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "json")
	return strings.TrimSpace(content)
}

// ShouldEscalate applies the escalation predicate to an initial result.
func (c *Client) ShouldEscalate(result *LabelOutput) bool {
	if result == nil {
		return false
	}
	if slices.Contains(c.cfg.EscalationDocTypes, result.DocType) {
		return true
	}
	if result.Confidence < c.cfg.EscalationThreshold {
		return true
	}
	if result.Date == nil || result.Issuer == nil {
		if slices.Contains(escalationFieldDocTypes, result.DocType) {
			return true
		}
	}
	return false
}

// LabelWithEscalation runs the default model, re-runs with the escalation
// model when the predicate fires, and reports which happened.
func (c *Client) LabelWithEscalation(ctx context.Context, lctx LabelingContext) (*LabelOutput, bool, error) {
	initial, err := c.LabelDocument(ctx, lctx, false)
	if err != nil {
		return nil, false, err
	}
	if !c.ShouldEscalate(initial) {
		return initial, false, nil
	}
	escalated, err := c.LabelDocument(ctx, lctx, true)
	if err != nil {
		return nil, false, err
	}
	return escalated, true, nil
}
