// Package fanout replicates post events into follower feeds: one stored
// entry per follower per post, written at post time so reads stay cheap.
package fanout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	feederrs "github.com/Hamdane-yassine/you-scout-feedgen/internal/errors"
	"github.com/Hamdane-yassine/you-scout-feedgen/internal/feedgen"
)

type (
	// Writer fans a post event out across the author's follower set.
	Writer struct {
		store     feedgen.FeedStore
		followers feedgen.FollowerSource

		pageSize      int
		writeLimit    int
		appendRetries uint64
	}

	Config struct {
		// How many followers to pull per page. The page is the only
		// buffering on the write path, so this bounds memory for viral
		// authors.
		PageSize int
		// How many appends may be in flight at once within a page.
		WriteLimit int
		// How many times an individual append is retried before it lands
		// in the reconciliation ledger.
		AppendRetries uint64
	}
)

func NewWriter(store feedgen.FeedStore, followers feedgen.FollowerSource, cfg Config) *Writer {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}
	if cfg.WriteLimit <= 0 {
		cfg.WriteLimit = 32
	}
	if cfg.AppendRetries == 0 {
		cfg.AppendRetries = 2
	}

	return &Writer{
		store:         store,
		followers:     followers,
		pageSize:      cfg.PageSize,
		writeLimit:    cfg.WriteLimit,
		appendRetries: cfg.AppendRetries,
	}
}

// Created replicates one entry for the post into every follower's
// partition, paging through the follower set one page at a time.
//
// A failed page fetch aborts with a FollowersUnavailable error for the
// caller to retry; entries already written stay put and are harmless to
// re-fan since appends are idempotent. A failed individual append never
// aborts the event: it is retried a bounded number of times, then filed
// for reconciliation.
func (w *Writer) Created(ctx context.Context, ev feedgen.PostEvent) error {
	var written int
	for page := 0; ; page++ {
		fp, err := w.followers.Followers(ctx, ev.AuthorUsername, page, w.pageSize)
		if err != nil {
			return fmt.Errorf("error fetching follower page %d for %q: %w", page, ev.AuthorUsername, err)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(w.writeLimit)
		for _, follower := range fp.Usernames {
			g.Go(func() error {
				return w.append(gctx, follower, ev)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		written += len(fp.Usernames)

		if fp.Last {
			break
		}
	}

	slog.InfoContext(ctx, "fanned out post",
		"post_id", ev.PostID,
		"author", ev.AuthorUsername,
		"entries", written,
	)

	return nil
}

// Deleted removes the post's entries from every follower's partition.
func (w *Writer) Deleted(ctx context.Context, ev feedgen.PostEvent) error {
	if err := w.store.RemovePost(ctx, ev.PostID); err != nil {
		return feederrs.E(feederrs.KindWriteFailed, fmt.Errorf("error removing post %q: %w", ev.PostID, err))
	}

	slog.InfoContext(ctx, "removed post from feeds", "post_id", ev.PostID)

	return nil
}

// Writes a single follower's entry, retrying transient failures. On
// exhaustion the entry goes to the reconciliation ledger instead of
// failing the event; only a ledger write failure propagates, since at
// that point the entry would be lost entirely.
func (w *Writer) append(ctx context.Context, follower string, ev feedgen.PostEvent) error {
	entry := feedgen.FeedEntry{
		OwnerUsername:  follower,
		PostID:         ev.PostID,
		AuthorUsername: ev.AuthorUsername,
		CreatedAt:      ev.CreatedAt,
	}

	backoff := retry.WithMaxRetries(w.appendRetries, retry.NewFibonacci(50*time.Millisecond))
	appendErr := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := w.store.Append(ctx, entry); err != nil {
			return retry.RetryableError(err)
		}

		return nil
	})
	if appendErr == nil {
		return nil
	}

	slog.WarnContext(ctx, "feed entry write exhausted retries",
		"owner", follower,
		"post_id", ev.PostID,
		"error", appendErr,
	)

	if err := w.store.RecordFailure(ctx, feedgen.FanoutFailure{
		OwnerUsername:  follower,
		PostID:         ev.PostID,
		AuthorUsername: ev.AuthorUsername,
		Reason:         appendErr.Error(),
	}); err != nil {
		return feederrs.E(feederrs.KindWriteFailed, fmt.Errorf("error recording failed write for %q: %w", follower, err))
	}

	return nil
}
