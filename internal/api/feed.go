package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Hamdane-yassine/you-scout-feedgen/internal/feedgen"
	"github.com/Hamdane-yassine/you-scout-feedgen/internal/serverutil"
)

type (
	FeedResp struct {
		Content []PostResp `json:"content"`
		Last    bool       `json:"last"`
		// Opaque; clients hand it back verbatim to get the next page.
		Cursor string `json:"cursor,omitempty"`
	}

	PostResp struct {
		ID                      string    `json:"id"`
		AuthorUsername          string    `json:"authorUsername"`
		Body                    string    `json:"body"`
		CreatedAt               time.Time `json:"createdAt"`
		AuthorProfilePictureURL string    `json:"authorProfilePictureUrl,omitempty"`
	}
)

func apiPost(p feedgen.HydratedPost) PostResp {
	return PostResp{
		ID:                      p.ID,
		AuthorUsername:          p.AuthorUsername,
		Body:                    p.Body,
		CreatedAt:               p.CreatedAt,
		AuthorProfilePictureURL: p.AuthorProfilePictureURL,
	}
}

func (s *Server) getFeed(w http.ResponseWriter, r *http.Request) error {
	var (
		ctx      = r.Context()
		username = mux.Vars(r)["username"]
		cursor   = r.URL.Query().Get("cursor")
		limit    = parseLimit(r, 20, 100) // default=20, max=100
	)

	page, err := s.feeds.UserFeed(ctx, username, cursor, limit)
	if err != nil {
		return err
	}

	resp := FeedResp{
		Content: []PostResp{},
		Last:    page.Last,
		Cursor:  page.Cursor,
	}
	for _, post := range page.Content {
		resp.Content = append(resp.Content, apiPost(post))
	}

	return serverutil.WriteJSON(w, http.StatusOK, resp)
}
