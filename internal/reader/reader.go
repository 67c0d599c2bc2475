// Package reader serves hydrated feed pages: raw entries out of the
// store, post bodies batch-resolved from the post service, zipped back
// together in store order.
package reader

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	feederrs "github.com/Hamdane-yassine/you-scout-feedgen/internal/errors"
	"github.com/Hamdane-yassine/you-scout-feedgen/internal/feedgen"
)

const DefaultPageSize = 20

type Service struct {
	store    feedgen.FeedStore
	posts    feedgen.PostHydrator
	profiles feedgen.ProfileHydrator // optional; nil disables picture enrichment

	picCache *lru.Cache[string, string]
}

func New(store feedgen.FeedStore, posts feedgen.PostHydrator, profiles feedgen.ProfileHydrator) *Service {
	cache, _ := lru.New[string, string](4096)

	return &Service{
		store:    store,
		posts:    posts,
		profiles: profiles,
		picCache: cache,
	}
}

// UserFeed returns one hydrated page of the user's feed. An empty cursor
// means the first page; the returned cursor resumes the scan and must be
// round-tripped verbatim.
//
// A user whose very first page comes back empty has no feed, which is a
// FeedNotFound outcome, not a degraded one. A hydration failure fails
// the whole read with PostsUnavailable: entries without their bodies
// aren't worth showing.
func (s *Service) UserFeed(ctx context.Context, username, cursor string, size int) (feedgen.FeedPage, error) {
	if size <= 0 {
		size = DefaultPageSize
	}

	page, err := s.store.Page(ctx, username, cursor, size)
	if err != nil {
		return feedgen.FeedPage{}, fmt.Errorf("error paging feed for %q: %w", username, err)
	}

	if cursor == "" && len(page.Entries) == 0 {
		return feedgen.FeedPage{}, feederrs.E(feederrs.KindFeedNotFound, fmt.Errorf("no feed for %q", username))
	}

	postIDs := make([]string, 0, len(page.Entries))
	for _, entry := range page.Entries {
		postIDs = append(postIDs, entry.PostID)
	}

	// One batch call, never one per entry.
	posts, err := s.posts.PostsByIDs(ctx, postIDs)
	if err != nil {
		return feedgen.FeedPage{}, fmt.Errorf("error hydrating feed for %q: %w", username, err)
	}

	// The hydrator doesn't promise order, so zip by id back onto the
	// store's ordering.
	postsByID := make(map[string]feedgen.Post, len(posts))
	for _, post := range posts {
		postsByID[post.ID] = post
	}

	pictures := s.profilePictures(ctx, page.Entries)

	content := make([]feedgen.HydratedPost, 0, len(page.Entries))
	for _, entry := range page.Entries {
		post, ok := postsByID[entry.PostID]
		if !ok {
			// The post is gone but its entries haven't been reaped yet.
			// Skip it rather than show a hole.
			slog.DebugContext(ctx, "feed entry without post", "post_id", entry.PostID, "owner", username)
			continue
		}

		content = append(content, feedgen.HydratedPost{
			Post:                    post,
			AuthorProfilePictureURL: pictures[entry.AuthorUsername],
		})
	}

	return feedgen.FeedPage{
		Content: content,
		Last:    page.Last,
		Cursor:  page.NextCursor,
	}, nil
}

// Resolves profile picture URLs for the page's authors, going to the
// profile service only for cache misses. Pictures are decoration: if the
// batch call fails the page still goes out without them.
func (s *Service) profilePictures(ctx context.Context, entries []feedgen.FeedEntry) map[string]string {
	if s.profiles == nil {
		return nil
	}

	var (
		pictures = make(map[string]string)
		missing  []string
		seen     = make(map[string]struct{})
	)
	for _, entry := range entries {
		if _, ok := seen[entry.AuthorUsername]; ok {
			continue
		}
		seen[entry.AuthorUsername] = struct{}{}

		if url, ok := s.picCache.Get(entry.AuthorUsername); ok {
			pictures[entry.AuthorUsername] = url
			continue
		}
		missing = append(missing, entry.AuthorUsername)
	}

	if len(missing) == 0 {
		return pictures
	}

	fetched, err := s.profiles.ProfilePictures(ctx, missing)
	if err != nil {
		slog.WarnContext(ctx, "profile picture lookup failed", "error", err)
		return pictures
	}

	for username, url := range fetched {
		pictures[username] = url
		s.picCache.Add(username, url)
	}

	return pictures
}
