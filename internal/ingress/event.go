package ingress

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Hamdane-yassine/you-scout-feedgen/internal/feedgen"
)

// Represents one message off the post lifecycle topic. Producers send
// createdAt either as epoch millis or as an ISO-8601 string, so it is
// decoded leniently.
type eventMsg struct {
	PostID         string          `json:"postId"`
	AuthorUsername string          `json:"authorUsername"`
	CreatedAt      json.RawMessage `json:"createdAt"`
	Kind           string          `json:"kind"`
}

func decodeEvent(value []byte) (feedgen.PostEvent, error) {
	var msg eventMsg
	if err := json.Unmarshal(value, &msg); err != nil {
		return feedgen.PostEvent{}, fmt.Errorf("error decoding post event: %w", err)
	}

	if msg.PostID == "" {
		return feedgen.PostEvent{}, fmt.Errorf("post event missing postId")
	}
	if msg.AuthorUsername == "" {
		return feedgen.PostEvent{}, fmt.Errorf("post event missing authorUsername")
	}

	kind := feedgen.EventKind(msg.Kind)
	if kind != feedgen.EventCreated && kind != feedgen.EventDeleted {
		return feedgen.PostEvent{}, fmt.Errorf("unknown post event kind %q", msg.Kind)
	}

	createdAt, err := decodeTimestamp(msg.CreatedAt)
	if err != nil {
		return feedgen.PostEvent{}, err
	}

	return feedgen.PostEvent{
		PostID:         msg.PostID,
		AuthorUsername: msg.AuthorUsername,
		CreatedAt:      createdAt,
		Kind:           kind,
	}, nil
}

func decodeTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 {
		return time.Time{}, fmt.Errorf("post event missing createdAt")
	}

	var millis int64
	if err := json.Unmarshal(raw, &millis); err == nil {
		return time.UnixMilli(millis).UTC(), nil
	}

	var iso string
	if err := json.Unmarshal(raw, &iso); err != nil {
		return time.Time{}, fmt.Errorf("error decoding createdAt: %w", err)
	}
	at, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return time.Time{}, fmt.Errorf("error parsing createdAt %q: %w", iso, err)
	}

	return at.UTC(), nil
}
