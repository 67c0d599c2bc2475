// Package social is the client for the social-graph service. Only its
// paginated follower query is consumed; the graph itself lives elsewhere.
package social

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	feederrs "github.com/Hamdane-yassine/you-scout-feedgen/internal/errors"
	"github.com/Hamdane-yassine/you-scout-feedgen/internal/feedgen"
)

// Ensure the client satisfies the follower source contract
var _ feedgen.FollowerSource = (*Client)(nil)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Represents a page response from the follower query.
type followersResp struct {
	Content       []string `json:"content"`
	TotalElements int      `json:"totalElements"`
	Last          bool     `json:"last"`
	Number        int      `json:"number"`
}

// Followers fetches one page of the author's followers. Any transport or
// non-2xx failure comes back tagged FollowersUnavailable so the caller
// can retry the whole fan-out.
func (c *Client) Followers(ctx context.Context, username string, page, size int) (feedgen.FollowerPage, error) {
	u := fmt.Sprintf("%s/users/%s/followers?page=%d&size=%d",
		c.baseURL, url.PathEscape(username), page, size)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return feedgen.FollowerPage{}, fmt.Errorf("error building followers request: %s", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return feedgen.FollowerPage{}, feederrs.E(feederrs.KindFollowersUnavailable, fmt.Errorf("error querying followers: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return feedgen.FollowerPage{}, feederrs.E(
			feederrs.KindFollowersUnavailable,
			fmt.Errorf("followers query returned %s for page %d", resp.Status, page),
		)
	}

	var body followersResp
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return feedgen.FollowerPage{}, feederrs.E(feederrs.KindFollowersUnavailable, fmt.Errorf("error decoding followers page: %w", err))
	}

	return feedgen.FollowerPage{
		Usernames: body.Content,
		Last:      body.Last,
		Page:      body.Number,
	}, nil
}
