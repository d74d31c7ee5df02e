package sqlite_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contextwizard/wizardd/internal/adapter/store/sqlite"
	"github.com/contextwizard/wizardd/internal/domain"
	"github.com/contextwizard/wizardd/internal/store"
)

func setupTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err, "failed to create test store")

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func testAnnotation(code string, expiresAt int64) domain.PendingAnnotation {
	return domain.PendingAnnotation{
		Code:           code,
		Comment:        domain.CommentRef{ID: 4242, Kind: domain.CommentKindInline},
		Repo:           domain.RepoRef{Owner: "octocat", Name: "hello-world"},
		PullNumber:     17,
		InstallationID: 998877,
		ExpiresAt:      expiresAt,
	}
}

func TestStore_PutGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	rec := testAnnotation("Q7X2M9", time.Now().Add(2*time.Minute).Unix())
	require.NoError(t, s.Put(ctx, rec))

	got, err := s.Get(ctx, "Q7X2M9")
	require.NoError(t, err)

	assert.Equal(t, rec.Code, got.Code)
	assert.Equal(t, rec.Comment, got.Comment)
	assert.Equal(t, rec.Repo, got.Repo)
	assert.Equal(t, rec.PullNumber, got.PullNumber)
	assert.Equal(t, rec.InstallationID, got.InstallationID)
	assert.Equal(t, rec.ExpiresAt, got.ExpiresAt)
}

func TestStore_Put_DuplicateCode(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	expires := time.Now().Add(2 * time.Minute).Unix()
	require.NoError(t, s.Put(ctx, testAnnotation("Q7X2M9", expires)))

	err := s.Put(ctx, testAnnotation("Q7X2M9", expires))
	require.ErrorIs(t, err, store.ErrDuplicateCode)
}

func TestStore_Put_CodeReusableAfterDelete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	expires := time.Now().Add(2 * time.Minute).Unix()
	require.NoError(t, s.Put(ctx, testAnnotation("Q7X2M9", expires)))
	require.NoError(t, s.Delete(ctx, "Q7X2M9"))

	// Codes are only unique among currently pending annotations.
	require.NoError(t, s.Put(ctx, testAnnotation("Q7X2M9", expires)))
}

func TestStore_Put_RejectsInvalidExpiry(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	err := s.Put(ctx, testAnnotation("PASTXX", time.Now().Add(-time.Minute).Unix()))
	require.ErrorIs(t, err, store.ErrInvalidExpiry)

	err = s.Put(ctx, testAnnotation("FAROUT", time.Now().Add(25*time.Hour).Unix()))
	require.ErrorIs(t, err, store.ErrInvalidExpiry)
}

func TestStore_Get_NotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.Get(context.Background(), "UNKNW1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_Delete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, testAnnotation("Q7X2M9", time.Now().Add(time.Minute).Unix())))

	require.NoError(t, s.Delete(ctx, "Q7X2M9"))

	_, err := s.Get(ctx, "Q7X2M9")
	require.ErrorIs(t, err, store.ErrNotFound)

	// Second delete observes the benign race outcome.
	require.ErrorIs(t, s.Delete(ctx, "Q7X2M9"), store.ErrNotFound)
}

func TestStore_Delete_ExactlyOnceUnderConcurrency(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, testAnnotation("RACE01", time.Now().Add(time.Minute).Unix())))

	const callers = 16

	var wg sync.WaitGroup
	results := make(chan error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.Delete(ctx, "RACE01")
		}()
	}
	wg.Wait()
	close(results)

	var successes, notFound int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case assert.ErrorIs(t, err, store.ErrNotFound):
			notFound++
		}
	}

	assert.Equal(t, 1, successes, "exactly one caller may win the delete")
	assert.Equal(t, callers-1, notFound)
}

func TestStore_ListExpired(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	now := time.Now()

	// Freshly inserted records always pass Put's validation, so age one
	// of them by listing at a later instant.
	require.NoError(t, s.Put(ctx, testAnnotation("SOON01", now.Add(30*time.Second).Unix())))
	require.NoError(t, s.Put(ctx, testAnnotation("SOON02", now.Add(time.Minute).Unix())))
	require.NoError(t, s.Put(ctx, testAnnotation("LATER1", now.Add(time.Hour).Unix())))

	// Nothing has lapsed yet.
	expired, err := s.ListExpired(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, expired)

	// Two minutes later both short-lived records have lapsed.
	expired, err = s.ListExpired(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	require.Len(t, expired, 2)
	assert.Equal(t, "SOON01", expired[0].Code)
	assert.Equal(t, "SOON02", expired[1].Code)

	// Listing does not remove anything.
	expired, err = s.ListExpired(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Len(t, expired, 2)
}

func TestStore_ListExpired_BoundaryIsInclusive(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	deadline := time.Now().Add(time.Minute).Truncate(time.Second)
	require.NoError(t, s.Put(ctx, testAnnotation("EDGE01", deadline.Unix())))

	expired, err := s.ListExpired(ctx, deadline.Add(-time.Second))
	require.NoError(t, err)
	assert.Empty(t, expired, "record must never expire before its deadline")

	expired, err = s.ListExpired(ctx, deadline)
	require.NoError(t, err)
	assert.Len(t, expired, 1, "record must expire at its deadline")
}

func TestStore_ConcurrentPutsDistinctCodes(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	const writers = 20
	expires := time.Now().Add(time.Minute).Unix()

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.Put(ctx, testAnnotation(fmt.Sprintf("CODE%02d", i), expires))
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}
