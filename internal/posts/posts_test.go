package posts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	feederrs "github.com/Hamdane-yassine/you-scout-feedgen/internal/errors"
)

func TestPostsByIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/posts", r.URL.Path)
		assert.Equal(t, "p1,p2", r.URL.Query().Get("ids"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id":"p2","authorUsername":"alice","body":"<b>second</b> post","createdAt":"2025-06-01T12:01:00Z"},
			{"id":"p1","authorUsername":"alice","body":"first post","createdAt":"2025-06-01T12:00:00Z"}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)

	got, err := c.PostsByIDs(context.Background(), []string{"p1", "p2"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	// HTML stripped from bodies
	assert.Equal(t, "second post", got[0].Body)
	assert.Equal(t, "first post", got[1].Body)
	assert.Equal(t, "p2", got[0].ID)
}

func TestPostsByIDsEmpty(t *testing.T) {
	c := NewClient("http://unused", time.Second)

	got, err := c.PostsByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPostsByIDsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)

	_, err := c.PostsByIDs(context.Background(), []string{"p1"})
	require.Error(t, err)
	assert.Equal(t, feederrs.KindPostsUnavailable, feederrs.KindOf(err))
}

func TestProfilePictures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/profiles/pictures", r.URL.Path)
		assert.Equal(t, "alice,dora", r.URL.Query().Get("usernames"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"alice":"https://cdn.example.com/alice.png"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)

	got, err := c.ProfilePictures(context.Background(), []string{"alice", "dora"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"alice": "https://cdn.example.com/alice.png"}, got)
}
