package sqlite

import (
	"context"
	"fmt"
	"net/http"
	"time"

	sq "github.com/Masterminds/squirrel"

	feederrs "github.com/Hamdane-yassine/you-scout-feedgen/internal/errors"
	"github.com/Hamdane-yassine/you-scout-feedgen/internal/feedgen"
)

// How entries are laid out at rest: created_at is stored as epoch millis
// so the (created_at, post_id) keyset ordering is exact.
type entryRow struct {
	OwnerUsername  string `db:"owner_username"`
	PostID         string `db:"post_id"`
	AuthorUsername string `db:"author_username"`
	CreatedAt      int64  `db:"created_at"`
}

func (r entryRow) entry() feedgen.FeedEntry {
	return feedgen.FeedEntry{
		OwnerUsername:  r.OwnerUsername,
		PostID:         r.PostID,
		AuthorUsername: r.AuthorUsername,
		CreatedAt:      time.UnixMilli(r.CreatedAt).UTC(),
	}
}

// Append writes one entry into the owner's partition. Re-appending the
// same (owner, post) is a no-op, which is what makes redelivered events
// harmless.
func (r Repo) Append(ctx context.Context, entry feedgen.FeedEntry) error {
	const q = `INSERT INTO feed_entries (owner_username, post_id, author_username, created_at)
	VALUES (:owner_username, :post_id, :author_username, :created_at)
	ON CONFLICT(owner_username, post_id) DO NOTHING;`

	row := entryRow{
		OwnerUsername:  entry.OwnerUsername,
		PostID:         entry.PostID,
		AuthorUsername: entry.AuthorUsername,
		CreatedAt:      entry.CreatedAt.UnixMilli(),
	}
	if _, err := r.db.NamedExecContext(ctx, q, row); err != nil {
		return fmt.Errorf("error appending feed entry: %w", err)
	}

	return nil
}

// Page scans one owner's partition starting after cursor, newest first.
// An empty cursor starts from the top.
func (r Repo) Page(ctx context.Context, owner string, cursor string, size int) (feedgen.EntryPage, error) {
	q := sq.Select("owner_username", "post_id", "author_username", "created_at").
		From("feed_entries").
		Where(sq.Eq{"owner_username": owner}).
		OrderBy("created_at DESC", "post_id DESC").
		Limit(uint64(size) + 1) // one extra row to learn whether this is the last page

	if cursor != "" {
		cur, err := decodeCursor(cursor)
		if err != nil {
			return feedgen.EntryPage{}, feederrs.E(err, http.StatusBadRequest)
		}
		q = q.Where(sq.Or{
			sq.Lt{"created_at": cur.CreatedAt},
			sq.And{sq.Eq{"created_at": cur.CreatedAt}, sq.Lt{"post_id": cur.PostID}},
		})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return feedgen.EntryPage{}, fmt.Errorf("error generating SQL query: %s", err)
	}

	var rows []entryRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return feedgen.EntryPage{}, fmt.Errorf("error selecting feed page: %s", err)
	}

	page := feedgen.EntryPage{
		Entries: []feedgen.FeedEntry{},
		Last:    len(rows) <= size,
	}
	if len(rows) > size {
		rows = rows[:size]
	}
	for _, row := range rows {
		page.Entries = append(page.Entries, row.entry())
	}

	if !page.Last {
		tail := rows[len(rows)-1]
		page.NextCursor = encodeCursor(pageCursor{
			CreatedAt: tail.CreatedAt,
			PostID:    tail.PostID,
		})
	}

	return page, nil
}

// RemovePost deletes every owner's entry for the post.
func (r Repo) RemovePost(ctx context.Context, postID string) error {
	const q = `DELETE FROM feed_entries WHERE post_id = ?;`

	if _, err := r.db.ExecContext(ctx, q, postID); err != nil {
		return fmt.Errorf("error removing post entries: %s", err)
	}

	return nil
}
