package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	feederrs "github.com/Hamdane-yassine/you-scout-feedgen/internal/errors"
	"github.com/Hamdane-yassine/you-scout-feedgen/internal/feedgen"
	"github.com/Hamdane-yassine/you-scout-feedgen/internal/migrations"
)

func testRepo(t *testing.T) Repo {
	t.Helper()

	dbx, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { dbx.Close() })

	require.NoError(t, migrations.Run(dbx))

	return New(dbx)
}

func entryAt(owner, postID string, at time.Time) feedgen.FeedEntry {
	return feedgen.FeedEntry{
		OwnerUsername:  owner,
		PostID:         postID,
		AuthorUsername: "alice",
		CreatedAt:      at,
	}
}

func TestAppendIsIdempotent(t *testing.T) {
	var (
		repo = testRepo(t)
		ctx  = context.Background()
		at   = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	)

	entry := entryAt("bob", "post-1", at)
	require.NoError(t, repo.Append(ctx, entry))
	require.NoError(t, repo.Append(ctx, entry)) // redelivered event

	page, err := repo.Page(ctx, "bob", "", 10)
	require.NoError(t, err)

	require.Len(t, page.Entries, 1)
	assert.Equal(t, "post-1", page.Entries[0].PostID)
	assert.Equal(t, "alice", page.Entries[0].AuthorUsername)
	assert.Equal(t, at, page.Entries[0].CreatedAt)
	assert.True(t, page.Last)
}

func TestPageWalksPartitionNewestFirst(t *testing.T) {
	var (
		repo = testRepo(t)
		ctx  = context.Background()
		base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	)

	// Five entries, two of them sharing a timestamp to exercise the
	// post_id tiebreak.
	require.NoError(t, repo.Append(ctx, entryAt("bob", "post-a", base.Add(1*time.Minute))))
	require.NoError(t, repo.Append(ctx, entryAt("bob", "post-b", base.Add(3*time.Minute))))
	require.NoError(t, repo.Append(ctx, entryAt("bob", "post-c", base.Add(2*time.Minute))))
	require.NoError(t, repo.Append(ctx, entryAt("bob", "post-d", base.Add(2*time.Minute))))
	require.NoError(t, repo.Append(ctx, entryAt("bob", "post-e", base.Add(5*time.Minute))))

	// Somebody else's partition must not leak in.
	require.NoError(t, repo.Append(ctx, entryAt("carol", "post-z", base.Add(10*time.Minute))))

	var (
		got    []feedgen.FeedEntry
		cursor string
		pages  int
	)
	for {
		page, err := repo.Page(ctx, "bob", cursor, 2)
		require.NoError(t, err)
		got = append(got, page.Entries...)
		pages++
		if page.Last {
			assert.Empty(t, page.NextCursor)
			break
		}
		require.NotEmpty(t, page.NextCursor)
		cursor = page.NextCursor
	}

	assert.Equal(t, 3, pages)
	require.Len(t, got, 5)

	// Strictly decreasing (created_at, post_id) across page boundaries.
	for i := 1; i < len(got); i++ {
		prev, cur := got[i-1], got[i]
		if prev.CreatedAt.Equal(cur.CreatedAt) {
			assert.Greater(t, prev.PostID, cur.PostID)
			continue
		}
		assert.True(t, prev.CreatedAt.After(cur.CreatedAt))
	}

	assert.Equal(t, "post-e", got[0].PostID)
	assert.Equal(t, "post-a", got[4].PostID)
}

func TestPageEmptyPartition(t *testing.T) {
	repo := testRepo(t)

	page, err := repo.Page(context.Background(), "nobody", "", 10)
	require.NoError(t, err)
	assert.Empty(t, page.Entries)
	assert.True(t, page.Last)
}

func TestPageRejectsGarbageCursor(t *testing.T) {
	repo := testRepo(t)

	_, err := repo.Page(context.Background(), "bob", "not-a-cursor!", 10)
	require.Error(t, err)

	feedErr := &feederrs.Error{}
	require.ErrorAs(t, err, &feedErr)
	assert.Equal(t, 400, feedErr.Status)
}

func TestRemovePostClearsAllOwners(t *testing.T) {
	var (
		repo = testRepo(t)
		ctx  = context.Background()
		at   = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	)

	require.NoError(t, repo.Append(ctx, entryAt("bob", "post-1", at)))
	require.NoError(t, repo.Append(ctx, entryAt("carol", "post-1", at)))
	require.NoError(t, repo.Append(ctx, entryAt("bob", "post-2", at.Add(time.Minute))))

	require.NoError(t, repo.RemovePost(ctx, "post-1"))

	bobPage, err := repo.Page(ctx, "bob", "", 10)
	require.NoError(t, err)
	require.Len(t, bobPage.Entries, 1)
	assert.Equal(t, "post-2", bobPage.Entries[0].PostID)

	carolPage, err := repo.Page(ctx, "carol", "", 10)
	require.NoError(t, err)
	assert.Empty(t, carolPage.Entries)
}

func TestFailureLedger(t *testing.T) {
	var (
		repo = testRepo(t)
		ctx  = context.Background()
	)

	require.NoError(t, repo.RecordFailure(ctx, feedgen.FanoutFailure{
		OwnerUsername:  "bob",
		PostID:         "post-1",
		AuthorUsername: "alice",
		Reason:         "store timeout",
	}))

	failures, err := repo.Failures(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.NotEmpty(t, failures[0].ID)
	assert.Equal(t, "bob", failures[0].OwnerUsername)
	assert.Equal(t, "store timeout", failures[0].Reason)
}
