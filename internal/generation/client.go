// Package generation submits source clips to an AI video-to-video provider
// for ad-integrated regeneration, polls for completion, and downloads the
// finished clip.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"adpipeline/internal/domain"
	"adpipeline/internal/metrics"
)

const (
	defaultBaseURL = "https://api.wavespeed.ai/api/v3"
	generatePath   = "/alibaba/wan-2.5/video-extend"

	// generationDurationSeconds is hardcoded to the provider's maximum (the
	// API accepts 3-10s but always pins to its ceiling for the longest
	// possible usable clip). This preserves the original client's explicit
	// "always use 10 for max output" override as a named policy rather than
	// letting it masquerade as a configurable duration parameter.
	generationDurationSeconds = 10

	defaultPollInterval   = 5 * time.Second
	defaultTimeout        = 600 * time.Second
	maxConsecutiveErrors  = 10
	pollStatusHTTPTimeout = 60 * time.Second
)

// Client implements ports.GenerationClient against the WaveSpeed-style
// submit/poll video-to-video API.
type Client struct {
	httpClient   *http.Client
	apiKey       string
	baseURL      string
	pollInterval time.Duration
	timeout      time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option   { return func(c *Client) { c.httpClient = hc } }
func WithBaseURL(url string) Option           { return func(c *Client) { c.baseURL = url } }
func WithPollInterval(d time.Duration) Option { return func(c *Client) { c.pollInterval = d } }
func WithTimeout(d time.Duration) Option      { return func(c *Client) { c.timeout = d } }

func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{},
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		pollInterval: defaultPollInterval,
		timeout:      defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type submitRequest struct {
	Duration              int    `json:"duration"`
	EnablePromptExpansion bool   `json:"enable_prompt_expansion"`
	NegativePrompt        string `json:"negative_prompt"`
	Prompt                string `json:"prompt"`
	Resolution            string `json:"resolution"`
	Seed                  int    `json:"seed"`
	Video                 string `json:"video"`
}

type submitResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type pollResponse struct {
	Data struct {
		Status  string   `json:"status"`
		Outputs []string `json:"outputs"`
		Error   string   `json:"error"`
	} `json:"data"`
}

// Generate submits req, polls until completion or timeout, and returns the
// completed clip's output URL.
func (c *Client) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	requestID, err := c.submit(ctx, req)
	if err != nil {
		return domain.GenerationResult{}, err
	}
	return c.poll(ctx, requestID)
}

func (c *Client) submit(ctx context.Context, req domain.GenerationRequest) (string, error) {
	payload := submitRequest{
		Duration:              generationDurationSeconds,
		EnablePromptExpansion: req.EnablePromptExpansion,
		NegativePrompt:        req.NegativePrompt,
		Prompt:                req.Prompt,
		Resolution:            req.Resolution,
		Seed:                  req.Seed,
		Video:                 req.VideoURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", domain.NewStageError(domain.ErrorKindInternal, "marshal generation request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+generatePath, bytes.NewReader(body))
	if err != nil {
		return "", domain.NewStageError(domain.ErrorKindInternal, "build generation request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", domain.NewStageError(domain.ErrorKindGenerationUnreachable, "submit generation task", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", domain.NewStageError(domain.ErrorKindGenerationUnreachable, fmt.Sprintf("generation API returned status %d", resp.StatusCode), fmt.Errorf("%s", strings.TrimSpace(string(respBody))))
	}

	var parsed submitResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", domain.NewStageError(domain.ErrorKindGenerationUnreachable, "decode generation submit response", err)
	}
	if parsed.Data.ID == "" {
		return "", domain.NewStageError(domain.ErrorKindGenerationUnreachable, "generation submit response missing task id", nil)
	}
	return parsed.Data.ID, nil
}

// poll implements the original client's "catch everything and keep going"
// posture during the multi-minute generation window, bounded by a
// consecutive-error budget rather than an unconditional retry loop.
func (c *Client) poll(ctx context.Context, requestID string) (domain.GenerationResult, error) {
	url := fmt.Sprintf("%s/predictions/%s/result", c.baseURL, requestID)
	start := time.Now()
	defer func() { metrics.GenerationPollLatency.Observe(time.Since(start).Seconds()) }()
	consecutiveErrors := 0
	interval := c.pollInterval

	for {
		if time.Since(start) > c.timeout {
			return domain.GenerationResult{}, domain.NewStageError(domain.ErrorKindGenerationTimeout, fmt.Sprintf("generation timed out after %s", c.timeout), nil)
		}

		status, result, err := c.pollOnce(ctx, url)
		if err != nil {
			consecutiveErrors++
			if consecutiveErrors >= maxConsecutiveErrors {
				return domain.GenerationResult{}, domain.NewStageError(domain.ErrorKindGenerationUnreachable, fmt.Sprintf("generation status checks failed %d consecutive times", maxConsecutiveErrors), err)
			}
			if !sleepOrDone(ctx, interval*2) {
				return domain.GenerationResult{}, ctx.Err()
			}
			continue
		}
		consecutiveErrors = 0

		switch status {
		case "completed":
			if len(result.Data.Outputs) == 0 {
				return domain.GenerationResult{}, domain.NewStageError(domain.ErrorKindGenerationUnreachable, "generation completed with no output URL", nil)
			}
			return domain.GenerationResult{
				OutputURL: result.Data.Outputs[0],
				RequestID: requestID,
				ElapsedS:  time.Since(start).Seconds(),
			}, nil
		case "failed":
			msg := result.Data.Error
			if msg == "" {
				msg = "unknown error"
			}
			return domain.GenerationResult{}, domain.NewStageError(domain.ErrorKindGenerationUnreachable, "generation failed: "+msg, nil)
		}

		if !sleepOrDone(ctx, interval) {
			return domain.GenerationResult{}, ctx.Err()
		}
	}
}

func (c *Client) pollOnce(ctx context.Context, url string) (string, pollResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", pollResponse{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	client := c.httpClient
	ctx2, cancel := context.WithTimeout(ctx, pollStatusHTTPTimeout)
	defer cancel()
	httpReq = httpReq.WithContext(ctx2)

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", pollResponse{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", pollResponse{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return "", pollResponse{}, fmt.Errorf("status check returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed pollResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", pollResponse{}, err
	}
	return parsed.Data.Status, parsed, nil
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Download streams url's contents to dstPath.
func (c *Client) Download(ctx context.Context, url, dstPath string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.NewStageError(domain.ErrorKindInternal, "build download request", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.NewStageError(domain.ErrorKindGenerationUnreachable, "download generated clip", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.NewStageError(domain.ErrorKindGenerationUnreachable, fmt.Sprintf("download returned status %d", resp.StatusCode), nil)
	}

	f, err := createFile(dstPath)
	if err != nil {
		return domain.NewStageError(domain.ErrorKindInternal, "create download destination", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return domain.NewStageError(domain.ErrorKindGenerationUnreachable, "stream download body", err)
	}
	return nil
}

func createFile(path string) (*os.File, error) {
	return os.Create(path)
}
