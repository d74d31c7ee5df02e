// Package gemini is the HTTP client for the Google Gemini generateContent
// API used to classify reviewer feedback and draft responses.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	llmhttp "github.com/contextwizard/wizardd/internal/adapter/llm/http"
)

const (
	providerName = "gemini"

	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultTimeout = 60 * time.Second
)

// HTTPClient is an HTTP client for the Google Gemini API.
type HTTPClient struct {
	apiKey    string
	model     string
	baseURL   string
	retryConf llmhttp.RetryConfig
	client    *http.Client
}

// NewHTTPClient creates a new Gemini HTTP client for the given model.
func NewHTTPClient(apiKey, model string, retryConf llmhttp.RetryConfig) *HTTPClient {
	return &HTTPClient{
		apiKey:    apiKey,
		model:     model,
		baseURL:   defaultBaseURL,
		retryConf: retryConf,
		client:    &http.Client{Timeout: defaultTimeout},
	}
}

// SetBaseURL sets a custom base URL (for testing).
func (c *HTTPClient) SetBaseURL(url string) {
	c.baseURL = url
}

// SetTimeout sets the HTTP timeout.
func (c *HTTPClient) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// CallOptions contains options for the API call.
type CallOptions struct {
	Temperature float64
	MaxTokens   int

	// JSONResponse asks the model for application/json output, used for
	// structured classification.
	JSONResponse bool
}

// APIResponse represents the parsed response from the API.
type APIResponse struct {
	Text         string
	TokensIn     int
	TokensOut    int
	FinishReason string
}

// Call makes a request to the Gemini generateContent API.
func (c *HTTPClient) Call(ctx context.Context, prompt string, options CallOptions) (*APIResponse, error) {
	reqBody := GenerateContentRequest{
		Contents: []Content{
			{Role: "user", Parts: []Part{{Text: prompt}}},
		},
	}

	if options.Temperature > 0 || options.MaxTokens > 0 || options.JSONResponse {
		reqBody.GenerationConfig = &GenerationConfig{
			Temperature:     options.Temperature,
			MaxOutputTokens: options.MaxTokens,
			CandidateCount:  1,
		}
		if options.JSONResponse {
			reqBody.GenerationConfig.ResponseMIMEType = "application/json"
		}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	var bodyBytes []byte
	err = llmhttp.RetryWithBackoff(ctx, func(ctx context.Context) error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
		if reqErr != nil {
			return fmt.Errorf("build request: %w", reqErr)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, callErr := c.client.Do(req)
		if callErr != nil {
			return llmhttp.NewTimeoutError(providerName, callErr.Error())
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return c.errorFromResponse(resp.StatusCode, raw)
		}

		bodyBytes, callErr = io.ReadAll(resp.Body)
		if callErr != nil {
			return fmt.Errorf("read response body: %w", callErr)
		}
		return nil
	}, c.retryConf)
	if err != nil {
		return nil, err
	}

	var genResp GenerateContentResponse
	if err := json.Unmarshal(bodyBytes, &genResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(genResp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	candidate := genResp.Candidates[0]
	if candidate.FinishReason == "SAFETY" {
		return nil, llmhttp.NewContentFilteredError(providerName, "content blocked by safety filters")
	}

	var textParts []string
	for _, part := range candidate.Content.Parts {
		textParts = append(textParts, part.Text)
	}

	return &APIResponse{
		Text:         strings.Join(textParts, ""),
		TokensIn:     genResp.UsageMetadata.PromptTokenCount,
		TokensOut:    genResp.UsageMetadata.CandidatesTokenCount,
		FinishReason: candidate.FinishReason,
	}, nil
}

// errorFromResponse maps an error payload to a typed error, preferring the
// API's own message when it parses.
func (c *HTTPClient) errorFromResponse(status int, raw []byte) *llmhttp.Error {
	message := llmhttp.TruncateForLogging(string(raw))

	var errResp ErrorResponse
	if err := json.Unmarshal(raw, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	return llmhttp.FromStatusCode(providerName, status, message)
}
