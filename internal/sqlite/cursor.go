package sqlite

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// pageCursor is where a partition scan left off. It only ever exists in
// decoded form inside this package; callers round-trip the encoded string
// verbatim.
type pageCursor struct {
	CreatedAt int64  `json:"c"` // epoch millis of the last entry seen
	PostID    string `json:"p"`
}

func encodeCursor(c pageCursor) string {
	byts, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(byts)
}

func decodeCursor(s string) (pageCursor, error) {
	byts, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return pageCursor{}, fmt.Errorf("error decoding cursor: %w", err)
	}

	var c pageCursor
	if err := json.Unmarshal(byts, &c); err != nil {
		return pageCursor{}, fmt.Errorf("error decoding cursor: %w", err)
	}

	return c, nil
}
