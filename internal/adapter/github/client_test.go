package github_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	githubadapter "github.com/contextwizard/wizardd/internal/adapter/github"
	llmhttp "github.com/contextwizard/wizardd/internal/adapter/llm/http"
	"github.com/contextwizard/wizardd/internal/domain"
	"github.com/contextwizard/wizardd/internal/usecase/registry"
)

var (
	testRepo  = domain.RepoRef{Owner: "octocat", Name: "hello-world"}
	testCreds = registry.Credentials{Token: "ghs_testtoken"}
)

func newTestClient(handler http.Handler) (*githubadapter.Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := githubadapter.NewClient()
	client.SetBaseURL(server.URL)
	client.SetMaxRetries(1)
	return client, server
}

func TestDeleteComment_InlineEndpoint(t *testing.T) {
	var gotPath, gotMethod, gotAuth string
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	err := client.DeleteComment(context.Background(), testCreds, testRepo,
		domain.CommentRef{ID: 42, Kind: domain.CommentKindInline})
	require.NoError(t, err)

	assert.Equal(t, "/repos/octocat/hello-world/pulls/comments/42", gotPath)
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "Bearer ghs_testtoken", gotAuth)
}

func TestDeleteComment_ThreadEndpoint(t *testing.T) {
	var gotPath string
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	err := client.DeleteComment(context.Background(), testCreds, testRepo,
		domain.CommentRef{ID: 42, Kind: domain.CommentKindThread})
	require.NoError(t, err)

	assert.Equal(t, "/repos/octocat/hello-world/issues/comments/42", gotPath)
}

func TestDeleteComment_AlreadyGoneIsSuccess(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusGone} {
		client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		err := client.DeleteComment(context.Background(), testCreds, testRepo,
			domain.CommentRef{ID: 42, Kind: domain.CommentKindInline})
		assert.NoError(t, err, "status %d must be success-equivalent", status)
		server.Close()
	}
}

func TestDeleteComment_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()
	client.SetTimeout(5 * time.Second)

	err := client.DeleteComment(context.Background(), testCreds, testRepo,
		domain.CommentRef{ID: 42, Kind: domain.CommentKindInline})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDeleteComment_AuthFailureIsTyped(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	err := client.DeleteComment(context.Background(), testCreds, testRepo,
		domain.CommentRef{ID: 42, Kind: domain.CommentKindInline})
	require.Error(t, err)
	assert.ErrorIs(t, err, &llmhttp.Error{Type: llmhttp.ErrTypeAuthentication})
}

func TestPostIssueComment(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]int64{"id": 5150})
	}))
	defer server.Close()

	id, err := client.PostIssueComment(context.Background(), testCreds, testRepo, 17, "hello")
	require.NoError(t, err)

	assert.Equal(t, int64(5150), id)
	assert.Equal(t, "/repos/octocat/hello-world/issues/17/comments", gotPath)
	assert.Equal(t, "hello", gotBody["body"])
}

func TestPostReviewCommentReply(t *testing.T) {
	var gotPath string
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]int64{"id": 6262})
	}))
	defer server.Close()

	id, err := client.PostReviewCommentReply(context.Background(), testCreds, testRepo, 17, 42, "reply")
	require.NoError(t, err)

	assert.Equal(t, int64(6262), id)
	assert.Equal(t, "/repos/octocat/hello-world/pulls/17/comments/42/replies", gotPath)
}

func TestUpdateComment(t *testing.T) {
	var gotMethod, gotPath string
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := client.UpdateComment(context.Background(), testCreds, testRepo,
		domain.CommentRef{ID: 42, Kind: domain.CommentKindThread}, "updated body")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/repos/octocat/hello-world/issues/comments/42", gotPath)
}
