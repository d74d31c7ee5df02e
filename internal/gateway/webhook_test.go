package gateway_test

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/contextwizard/wizardd/internal/gateway"
	"github.com/contextwizard/wizardd/internal/usecase/botguard"
)

const testSecret = "hunter2"

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func newTestServer(t *testing.T) (*gateway.Server, *gateway.Dispatcher, *recordingHandlers) {
	t.Helper()
	rec := &recordingHandlers{}
	guard := botguard.New(botguard.DefaultSuffixes)
	d := gateway.NewDispatcher(guard, rec, rec, zaptest.NewLogger(t))
	return gateway.NewServer(testSecret, d, zaptest.NewLogger(t)), d, rec
}

func webhookRequest(event string, body []byte, signature string) *http.Request {
	req, _ := http.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", event)
	req.Header.Set("X-GitHub-Delivery", "delivery-123")
	if signature != "" {
		req.Header.Set("X-Hub-Signature-256", signature)
	}
	return req
}

const issueCommentBody = `{
	"action": "created",
	"comment": {"id": 555, "body": "/accept AB12CD", "user": {"login": "octocat", "type": "User"}},
	"issue": {"number": 7, "title": "Add pager", "body": "", "user": {"login": "author"}, "pull_request": {"url": "https://api.github.com/repos/acme/widgets/pulls/7"}},
	"repository": {"name": "widgets", "owner": {"login": "acme"}},
	"installation": {"id": 9001}
}`

func TestWebhook_ValidSignatureQueuesEvent(t *testing.T) {
	server, d, rec := newTestServer(t)
	body := []byte(issueCommentBody)

	resp, err := server.App().Test(webhookRequest("issue_comment", body, sign(body)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	d.Wait()
	require.Len(t, rec.commands, 1)
	assert.Equal(t, "AB12CD", rec.commands[0].Code)
}

func TestWebhook_InvalidSignatureRejected(t *testing.T) {
	server, _, rec := newTestServer(t)
	body := []byte(issueCommentBody)

	resp, err := server.App().Test(webhookRequest("issue_comment", body, "sha256=deadbeef"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, rec.commands)
}

func TestWebhook_MissingSignatureRejected(t *testing.T) {
	server, _, _ := newTestServer(t)
	body := []byte(issueCommentBody)

	resp, err := server.App().Test(webhookRequest("issue_comment", body, ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebhook_UnsupportedEventIgnored(t *testing.T) {
	server, _, rec := newTestServer(t)
	body := []byte(`{"action": "opened"}`)

	resp, err := server.App().Test(webhookRequest("pull_request", body, sign(body)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Empty(t, rec.feedback)
}

func TestWebhook_EditedCommentIgnored(t *testing.T) {
	server, _, rec := newTestServer(t)
	body := []byte(`{
		"action": "edited",
		"comment": {"id": 555, "body": "hm", "user": {"login": "octocat", "type": "User"}},
		"issue": {"number": 7, "pull_request": {"url": "x"}},
		"repository": {"name": "widgets", "owner": {"login": "acme"}},
		"installation": {"id": 9001}
	}`)

	resp, err := server.App().Test(webhookRequest("issue_comment", body, sign(body)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Empty(t, rec.commands)
	assert.Empty(t, rec.feedback)
}

func TestWebhook_IssueCommentOutsidePullRequestIgnored(t *testing.T) {
	server, _, rec := newTestServer(t)
	body := []byte(`{
		"action": "created",
		"comment": {"id": 555, "body": "plain issue comment", "user": {"login": "octocat", "type": "User"}},
		"issue": {"number": 7},
		"repository": {"name": "widgets", "owner": {"login": "acme"}},
		"installation": {"id": 9001}
	}`)

	resp, err := server.App().Test(webhookRequest("issue_comment", body, sign(body)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Empty(t, rec.feedback)
}

func TestWebhook_MalformedJSONRejected(t *testing.T) {
	server, _, _ := newTestServer(t)
	body := []byte(`{not json`)

	resp, err := server.App().Test(webhookRequest("issue_comment", body, sign(body)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebhook_ReviewCommentNormalizedAsInline(t *testing.T) {
	server, d, rec := newTestServer(t)
	body := []byte(`{
		"action": "created",
		"comment": {"id": 321, "body": "please add a nil check", "user": {"login": "octocat", "type": "User"}, "path": "pager.go", "diff_hunk": "@@ -1 +1 @@"},
		"pull_request": {"number": 7, "title": "Add pager", "body": "", "user": {"login": "author"}},
		"repository": {"name": "widgets", "owner": {"login": "acme"}},
		"installation": {"id": 9001}
	}`)

	resp, err := server.App().Test(webhookRequest("pull_request_review_comment", body, sign(body)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	d.Wait()
	require.Len(t, rec.feedback, 1)
	assert.Equal(t, "please add a nil check", rec.feedback[0])
}

func TestWebhook_ReviewSubmittedWithEmptyBodyIgnored(t *testing.T) {
	server, _, rec := newTestServer(t)
	body := []byte(`{
		"action": "submitted",
		"review": {"id": 44, "body": "", "user": {"login": "octocat", "type": "User"}},
		"pull_request": {"number": 7},
		"repository": {"name": "widgets", "owner": {"login": "acme"}},
		"installation": {"id": 9001}
	}`)

	resp, err := server.App().Test(webhookRequest("pull_request_review", body, sign(body)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Empty(t, rec.feedback)
}

func TestHealthz(t *testing.T) {
	server, _, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, "/healthz", nil)
	resp, err := server.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
