// Package feedgen holds the domain types for the fan-out feed engine:
// the events it consumes, the entries it replicates, and the contracts
// of the stores and services it talks to.
package feedgen

import (
	"context"
	"time"
)

// EventKind is the lifecycle action a post event carries.
type EventKind string

const (
	EventCreated EventKind = "CREATED"
	EventDeleted EventKind = "DELETED"
)

type (
	// PostEvent is one at-least-once message off the post lifecycle topic.
	// The same event may be delivered more than once; everything downstream
	// of it has to be idempotent.
	PostEvent struct {
		PostID         string
		AuthorUsername string
		CreatedAt      time.Time
		Kind           EventKind
	}

	// FeedEntry is the unit replicated into each follower's partition.
	// At most one live entry exists per (owner, post).
	FeedEntry struct {
		OwnerUsername  string    `db:"owner_username"`
		PostID         string    `db:"post_id"`
		AuthorUsername string    `db:"author_username"`
		CreatedAt      time.Time `db:"created_at"`
	}

	// EntryPage is one page of raw entries from the feed store, newest
	// first. NextCursor resumes the scan and is opaque outside the store.
	EntryPage struct {
		Entries    []FeedEntry
		Last       bool
		NextCursor string
	}

	// FollowerPage is one page of the social graph's "who follows X" query.
	FollowerPage struct {
		Usernames []string
		Last      bool
		Page      int
	}

	// Post is a full post body as returned by the post service.
	Post struct {
		ID             string    `json:"id"`
		AuthorUsername string    `json:"authorUsername"`
		Body           string    `json:"body"`
		CreatedAt      time.Time `json:"createdAt"`
	}

	// HydratedPost is a post enriched for display. Built at read time,
	// never persisted.
	HydratedPost struct {
		Post

		AuthorProfilePictureURL string `json:"authorProfilePictureUrl,omitempty"`
	}

	// FeedPage is one hydrated page of a user's feed.
	FeedPage struct {
		Content []HydratedPost
		Last    bool
		Cursor  string
	}

	// FanoutFailure records an entry write that exhausted its retries, so
	// the entry can be reconciled later instead of failing the event.
	FanoutFailure struct {
		ID             string    `db:"id"`
		OwnerUsername  string    `db:"owner_username"`
		PostID         string    `db:"post_id"`
		AuthorUsername string    `db:"author_username"`
		Reason         string    `db:"reason"`
		CreatedAt      time.Time `db:"created_at"`
	}
)

type (
	// FeedStore is the wide-partition store holding one feed per owner,
	// clustered newest-first.
	FeedStore interface {
		// Append is idempotent on (owner, post): appending the same entry
		// twice leaves a single live row.
		Append(ctx context.Context, entry FeedEntry) error
		// Page scans one owner's partition starting at cursor (empty for
		// the first page), in strictly decreasing (createdAt, postID) order.
		Page(ctx context.Context, owner string, cursor string, size int) (EntryPage, error)
		// RemovePost deletes the post's entries across every owner.
		RemovePost(ctx context.Context, postID string) error

		// Reconciliation ledger for writes that exhausted their retries.
		RecordFailure(ctx context.Context, failure FanoutFailure) error
		Failures(ctx context.Context, limit int) ([]FanoutFailure, error)
	}

	// FollowerSource is the social graph's paginated follower query.
	FollowerSource interface {
		Followers(ctx context.Context, username string, page, size int) (FollowerPage, error)
	}

	// PostHydrator resolves post IDs into full posts in one batch call.
	// Response order is not guaranteed to match the request.
	PostHydrator interface {
		PostsByIDs(ctx context.Context, ids []string) ([]Post, error)
	}

	// ProfileHydrator resolves usernames to profile picture URLs in one
	// batch call.
	ProfileHydrator interface {
		ProfilePictures(ctx context.Context, usernames []string) (map[string]string, error)
	}
)
