// Package posts is the client for the post and profile lookup services,
// consumed only through their batch query contracts.
package posts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	feederrs "github.com/Hamdane-yassine/you-scout-feedgen/internal/errors"
	"github.com/Hamdane-yassine/you-scout-feedgen/internal/feedgen"
)

var (
	_ feedgen.PostHydrator    = (*Client)(nil)
	_ feedgen.ProfileHydrator = (*Client)(nil)
)

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

var stripPolicy = bluemonday.StrictPolicy()

// Removes all html tags from the string, usually a post body.
//
// Also limits the length of the string so there's not a massive chunk of text being output.
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = stripPolicy.Sanitize(s)
	if len(s) > 2048 {
		s = s[:2048]
	}

	return s
}

// PostsByIDs resolves the given post IDs in one batch call. Response
// order is whatever the post service felt like; callers reorder.
func (c *Client) PostsByIDs(ctx context.Context, ids []string) ([]feedgen.Post, error) {
	if len(ids) == 0 {
		return []feedgen.Post{}, nil
	}

	u := fmt.Sprintf("%s/posts?ids=%s", c.baseURL, url.QueryEscape(strings.Join(ids, ",")))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("error building posts request: %s", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, feederrs.E(feederrs.KindPostsUnavailable, fmt.Errorf("error querying posts: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, feederrs.E(feederrs.KindPostsUnavailable, fmt.Errorf("posts query returned %s", resp.Status))
	}

	var posts []feedgen.Post
	if err := json.NewDecoder(resp.Body).Decode(&posts); err != nil {
		return nil, feederrs.E(feederrs.KindPostsUnavailable, fmt.Errorf("error decoding posts: %w", err))
	}

	for i := range posts {
		posts[i].Body = sanitize(posts[i].Body)
	}

	return posts, nil
}

// ProfilePictures resolves usernames to picture URLs in one batch call.
func (c *Client) ProfilePictures(ctx context.Context, usernames []string) (map[string]string, error) {
	if len(usernames) == 0 {
		return map[string]string{}, nil
	}

	u := fmt.Sprintf("%s/profiles/pictures?usernames=%s", c.baseURL, url.QueryEscape(strings.Join(usernames, ",")))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("error building profiles request: %s", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error querying profile pictures: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile pictures query returned %s", resp.Status)
	}

	pictures := map[string]string{}
	if err := json.NewDecoder(resp.Body).Decode(&pictures); err != nil {
		return nil, fmt.Errorf("error decoding profile pictures: %w", err)
	}

	return pictures, nil
}
