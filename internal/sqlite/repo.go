// Package sqlite implements the feed store over a sqlite database: one
// wide partition of entries per owner, clustered newest-first.
package sqlite

import (
	"github.com/jmoiron/sqlx"

	"github.com/Hamdane-yassine/you-scout-feedgen/internal/feedgen"
)

// Ensure Repo implements the store contract
var _ feedgen.FeedStore = (*Repo)(nil)

type Repo struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) Repo {
	return Repo{db: db}
}
