// Package oracle implements the two-pass LLM placement oracle: a
// transcript-reasoning candidate pass followed by a vision-based frame
// selection pass, plus single-pass analysis and viewer-profile inference.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"adpipeline/internal/domain"
	"adpipeline/internal/metrics"
	"adpipeline/internal/subtitle"
)

const (
	defaultChatModel   = "grok-4-1-fast"
	defaultVisionModel = "grok-2-vision-latest"
	defaultBaseURL     = "https://api.x.ai/v1"
	requestTimeout     = 90 * time.Second

	temperatureAnalytical   = 0.3
	temperatureProfileInfer = 0.5
	temperatureProductMatch = 0.6
	maxTokensDefault        = 4096
	maxGapsInPrompt         = 15
	defaultNumCandidates    = 5
)

var jsonObjectRE = regexp.MustCompile(`(?s)\{.*\}`)

// Client implements ports.Oracle over the xAI-compatible chat completions
// API (the same wire shape OpenAI's SDK targets, used here via plain
// net/http since no pack repo vendors an LLM SDK).
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	chatModel   string
	visionModel string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }
func WithBaseURL(url string) Option         { return func(c *Client) { c.baseURL = url } }
func WithChatModel(m string) Option         { return func(c *Client) { c.chatModel = m } }
func WithVisionModel(m string) Option       { return func(c *Client) { c.visionModel = m } }

func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: requestTimeout},
		apiKey:      apiKey,
		baseURL:     defaultBaseURL,
		chatModel:   defaultChatModel,
		visionModel: defaultVisionModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type textContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type imageContent struct {
	Type     string          `json:"type"`
	ImageURL imageContentURL `json:"image_url"`
}

type imageContentURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) chat(ctx context.Context, task, model string, messages []chatMessage, temperature float64, jsonResponse bool) (string, error) {
	start := time.Now()
	content, err := c.doChat(ctx, model, messages, temperature, jsonResponse)
	metrics.OracleLatency.WithLabelValues(task).Observe(time.Since(start).Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.OracleCallsTotal.WithLabelValues(task, outcome).Inc()
	return content, err
}

func (c *Client) doChat(ctx context.Context, model string, messages []chatMessage, temperature float64, jsonResponse bool) (string, error) {
	req := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokensDefault,
	}
	if jsonResponse {
		req.ResponseFormat = map[string]any{"type": "json_object"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", domain.NewStageError(domain.ErrorKindInternal, "marshal oracle request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", domain.NewStageError(domain.ErrorKindInternal, "build oracle request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", domain.NewStageError(domain.ErrorKindOracleUnreachable, "call oracle", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.NewStageError(domain.ErrorKindOracleUnreachable, "read oracle response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", domain.NewStageError(domain.ErrorKindOracleUnreachable, fmt.Sprintf("oracle returned status %d", resp.StatusCode), fmt.Errorf("%s", strings.TrimSpace(string(respBody))))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", domain.NewStageError(domain.ErrorKindOracleParse, "decode oracle envelope", err)
	}
	if len(parsed.Choices) == 0 {
		return "", domain.NewStageError(domain.ErrorKindOracleParse, "oracle returned no choices", nil)
	}
	return parsed.Choices[0].Message.Content, nil
}

// parseJSONWithRecovery handles a model response that isn't valid JSON on
// its own (wrapped in prose or code fences) by extracting the first
// {...} block and retrying.
func parseJSONWithRecovery(raw string, out any) error {
	if err := json.Unmarshal([]byte(raw), out); err == nil {
		return nil
	}
	match := jsonObjectRE.FindString(raw)
	if match == "" {
		return domain.NewStageError(domain.ErrorKindOracleParse, "no JSON object found in oracle response", nil)
	}
	if err := json.Unmarshal([]byte(match), out); err != nil {
		return domain.NewStageError(domain.ErrorKindOracleParse, "failed to parse recovered JSON", err)
	}
	return nil
}

func formatGaps(gaps []domain.Gap) string {
	var b strings.Builder
	n := len(gaps)
	if n > maxGapsInPrompt {
		n = maxGapsInPrompt
	}
	for i := 0; i < n; i++ {
		g := gaps[i]
		fmt.Fprintf(&b, "%d. [%s - %s] Duration: %.2fs\n",
			i+1, subtitle.SecondsToTimestamp(g.Start), subtitle.SecondsToTimestamp(g.End), g.Duration)
		if g.ContextBefore != "" {
			before := g.ContextBefore
			if len(before) > 80 {
				before = before[len(before)-80:]
			}
			fmt.Fprintf(&b, "   Before: ...%s\n", before)
		}
		if g.ContextAfter != "" {
			after := g.ContextAfter
			if len(after) > 80 {
				after = after[:80]
			}
			fmt.Fprintf(&b, "   After: %s...\n", after)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func joinInterests(interests []string) string {
	return strings.Join(interests, ", ")
}
