package api

import (
	"net/http"
	"time"

	"github.com/Hamdane-yassine/you-scout-feedgen/internal/serverutil"
)

type (
	FailureResp struct {
		ID             string    `json:"id"`
		OwnerUsername  string    `json:"ownerUsername"`
		PostID         string    `json:"postId"`
		AuthorUsername string    `json:"authorUsername"`
		Reason         string    `json:"reason"`
		CreatedAt      time.Time `json:"createdAt"`
	}

	FailureListResp struct {
		Failures []FailureResp `json:"failures"`
	}
)

func (s *Server) getFanoutFailures(w http.ResponseWriter, r *http.Request) error {
	limit := parseLimit(r, 100, 1000)

	failures, err := s.store.Failures(r.Context(), limit)
	if err != nil {
		return err
	}

	resp := FailureListResp{
		Failures: []FailureResp{},
	}
	for _, f := range failures {
		resp.Failures = append(resp.Failures, FailureResp{
			ID:             f.ID,
			OwnerUsername:  f.OwnerUsername,
			PostID:         f.PostID,
			AuthorUsername: f.AuthorUsername,
			Reason:         f.Reason,
			CreatedAt:      f.CreatedAt,
		})
	}

	return serverutil.WriteJSON(w, http.StatusOK, resp)
}
