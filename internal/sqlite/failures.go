package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Hamdane-yassine/you-scout-feedgen/internal/feedgen"
)

type failureRow struct {
	ID             string `db:"id"`
	OwnerUsername  string `db:"owner_username"`
	PostID         string `db:"post_id"`
	AuthorUsername string `db:"author_username"`
	Reason         string `db:"reason"`
	CreatedAt      int64  `db:"created_at"`
}

// RecordFailure files an exhausted entry write in the reconciliation
// ledger.
func (r Repo) RecordFailure(ctx context.Context, failure feedgen.FanoutFailure) error {
	const q = `INSERT INTO fanout_failures (id, owner_username, post_id, author_username, reason, created_at)
	VALUES (:id, :owner_username, :post_id, :author_username, :reason, :created_at);`

	if failure.CreatedAt.IsZero() {
		failure.CreatedAt = time.Now()
	}
	row := failureRow{
		ID:             uuid.NewString(),
		OwnerUsername:  failure.OwnerUsername,
		PostID:         failure.PostID,
		AuthorUsername: failure.AuthorUsername,
		Reason:         failure.Reason,
		CreatedAt:      failure.CreatedAt.UnixMilli(),
	}
	if _, err := r.db.NamedExecContext(ctx, q, row); err != nil {
		return fmt.Errorf("error recording fanout failure: %s", err)
	}

	return nil
}

// Failures lists the oldest recorded failures for reconciliation.
func (r Repo) Failures(ctx context.Context, limit int) ([]feedgen.FanoutFailure, error) {
	const q = `SELECT id, owner_username, post_id, author_username, reason, created_at
	FROM fanout_failures ORDER BY created_at ASC LIMIT ?;`

	var rows []failureRow
	if err := r.db.SelectContext(ctx, &rows, q, limit); err != nil {
		return nil, fmt.Errorf("error selecting fanout failures: %s", err)
	}

	failures := make([]feedgen.FanoutFailure, 0, len(rows))
	for _, row := range rows {
		failures = append(failures, feedgen.FanoutFailure{
			ID:             row.ID,
			OwnerUsername:  row.OwnerUsername,
			PostID:         row.PostID,
			AuthorUsername: row.AuthorUsername,
			Reason:         row.Reason,
			CreatedAt:      time.UnixMilli(row.CreatedAt).UTC(),
		})
	}

	return failures, nil
}
