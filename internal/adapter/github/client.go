// Package github is the HTTP client for the slice of the GitHub REST API the
// service consumes: posting, updating, and deleting PR comments, plus GitHub
// App installation authentication.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	llmhttp "github.com/contextwizard/wizardd/internal/adapter/llm/http"
	"github.com/contextwizard/wizardd/internal/domain"
	"github.com/contextwizard/wizardd/internal/usecase/registry"
)

const (
	providerName = "github"

	defaultBaseURL        = "https://api.github.com"
	defaultTimeout        = 30 * time.Second
	defaultMaxRetries     = 3
	defaultInitialBackoff = 2 * time.Second
)

// Client is an HTTP client for the GitHub comments API. Credentials are
// passed per call because different installations use different tokens.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retryConf  llmhttp.RetryConfig
}

// NewClient creates a new GitHub API client.
func NewClient() *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		retryConf: llmhttp.RetryConfig{
			MaxRetries:     defaultMaxRetries,
			InitialBackoff: defaultInitialBackoff,
			MaxBackoff:     32 * time.Second,
			Multiplier:     2.0,
		},
	}
}

// SetBaseURL sets a custom base URL (for testing or GitHub Enterprise).
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// SetTimeout sets the HTTP timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// SetMaxRetries sets the maximum number of retry attempts.
func (c *Client) SetMaxRetries(maxRetries int) {
	c.retryConf.MaxRetries = maxRetries
}

// DeleteComment removes a comment, distinguishing the inline review comment
// endpoint from the conversation (issue) comment endpoint. A comment that is
// already gone (404/410) counts as success: rejection and the expiry sweep
// may both reach for the same comment and the second delete must be benign.
func (c *Client) DeleteComment(ctx context.Context, creds registry.Credentials, repo domain.RepoRef, ref domain.CommentRef) error {
	var url string
	switch ref.Kind {
	case domain.CommentKindInline:
		url = fmt.Sprintf("%s/repos/%s/%s/pulls/comments/%d", c.baseURL, repo.Owner, repo.Name, ref.ID)
	case domain.CommentKindThread:
		url = fmt.Sprintf("%s/repos/%s/%s/issues/comments/%d", c.baseURL, repo.Owner, repo.Name, ref.ID)
	default:
		return fmt.Errorf("unknown comment kind %q", ref.Kind)
	}

	return llmhttp.RetryWithBackoff(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
		if err != nil {
			return fmt.Errorf("build delete request: %w", err)
		}
		setHeaders(req, creds.Token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return llmhttp.NewTimeoutError(providerName, err.Error())
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNoContent:
			return nil
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
			// Already deleted by another path; success-equivalent.
			return nil
		default:
			return llmhttp.FromStatusCode(providerName, resp.StatusCode, readErrorBody(resp.Body))
		}
	}, c.retryConf)
}

// PostIssueComment posts a comment on the PR conversation tab and returns
// its comment ID.
func (c *Client) PostIssueComment(ctx context.Context, creds registry.Credentials, repo domain.RepoRef, pullNumber int, body string) (int64, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments", c.baseURL, repo.Owner, repo.Name, pullNumber)
	return c.postComment(ctx, creds, url, body)
}

// PostReviewCommentReply replies to an inline review comment and returns the
// new comment's ID.
func (c *Client) PostReviewCommentReply(ctx context.Context, creds registry.Credentials, repo domain.RepoRef, pullNumber int, inReplyTo int64, body string) (int64, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/comments/%d/replies",
		c.baseURL, repo.Owner, repo.Name, pullNumber, inReplyTo)
	return c.postComment(ctx, creds, url, body)
}

// UpdateComment replaces a comment's body. Used to append the decision
// footer once the annotation is registered and its code is known.
func (c *Client) UpdateComment(ctx context.Context, creds registry.Credentials, repo domain.RepoRef, ref domain.CommentRef, body string) error {
	var url string
	switch ref.Kind {
	case domain.CommentKindInline:
		url = fmt.Sprintf("%s/repos/%s/%s/pulls/comments/%d", c.baseURL, repo.Owner, repo.Name, ref.ID)
	case domain.CommentKindThread:
		url = fmt.Sprintf("%s/repos/%s/%s/issues/comments/%d", c.baseURL, repo.Owner, repo.Name, ref.ID)
	default:
		return fmt.Errorf("unknown comment kind %q", ref.Kind)
	}

	payload, err := json.Marshal(commentBody{Body: body})
	if err != nil {
		return fmt.Errorf("marshal comment body: %w", err)
	}

	return llmhttp.RetryWithBackoff(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build update request: %w", err)
		}
		setHeaders(req, creds.Token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return llmhttp.NewTimeoutError(providerName, err.Error())
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return llmhttp.FromStatusCode(providerName, resp.StatusCode, readErrorBody(resp.Body))
		}
		return nil
	}, c.retryConf)
}

func (c *Client) postComment(ctx context.Context, creds registry.Credentials, url, body string) (int64, error) {
	payload, err := json.Marshal(commentBody{Body: body})
	if err != nil {
		return 0, fmt.Errorf("marshal comment body: %w", err)
	}

	var created commentResponse
	err = llmhttp.RetryWithBackoff(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build post request: %w", err)
		}
		setHeaders(req, creds.Token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return llmhttp.NewTimeoutError(providerName, err.Error())
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			return llmhttp.FromStatusCode(providerName, resp.StatusCode, readErrorBody(resp.Body))
		}

		if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
			return fmt.Errorf("decode comment response: %w", err)
		}
		return nil
	}, c.retryConf)
	if err != nil {
		return 0, err
	}

	return created.ID, nil
}

func setHeaders(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
}

func readErrorBody(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return "unreadable error body"
	}
	return llmhttp.TruncateForLogging(string(body))
}

type commentBody struct {
	Body string `json:"body"`
}

type commentResponse struct {
	ID int64 `json:"id"`
}
