// Package errors holds the single error type shared across the feed
// engine. Every failure is tagged with one of a closed set of kinds so
// callers can branch on outcome without fishing through wrapped chains.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error into the engine's failure taxonomy.
type Kind string

const (
	KindInternal             Kind = "internal"
	KindFollowersUnavailable Kind = "followers_unavailable"
	KindPostsUnavailable     Kind = "posts_unavailable"
	KindFeedNotFound         Kind = "feed_not_found"
	KindWriteFailed          Kind = "write_failed"
)

// Default HTTP status per kind, used when E isn't given one explicitly.
func (k Kind) status() int {
	switch k {
	case KindFollowersUnavailable, KindPostsUnavailable:
		return http.StatusServiceUnavailable
	case KindFeedNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error represents a universal error type between the services.
type Error struct {
	Kind   Kind
	Status int
	Err    error // The error this wraps
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type transport struct {
	Message string `json:"message"`
	Kind    Kind   `json:"kind"`
	Status  int    `json:"status"`
}

func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(transport{
		Message: e.Err.Error(),
		Kind:    e.Kind,
		Status:  e.Status,
	})
}

func (e *Error) UnmarshalJSON(byts []byte) error {
	t := transport{}
	if err := json.Unmarshal(byts, &t); err != nil {
		return err
	}

	e.Err = errors.New(t.Message)
	e.Kind = t.Kind
	e.Status = t.Status
	return nil
}

// E builds an [Error] from its arguments: a string or error for the
// message, a [Kind] for the taxonomy slot, and optionally an int to
// override the kind's default HTTP status.
func E(args ...any) *Error {
	ret := &Error{
		Kind: KindInternal,
		Err:  nil,
	}

	var status int
	for _, arg := range args {
		switch arg := arg.(type) {
		case string:
			ret.Err = errors.New(arg)
		case error:
			ret.Err = arg
		case Kind:
			ret.Kind = arg
		case int:
			status = arg
		}
	}

	ret.Status = ret.Kind.status()
	if status != 0 {
		ret.Status = status
	}

	return ret
}

// KindOf extracts the kind from anywhere in err's chain, or KindInternal
// if no tagged error is present.
func KindOf(err error) Kind {
	e := &Error{}
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindInternal
}

// Transient reports whether err is worth retrying: follower or post
// lookups that were unavailable, or a feed write that failed.
func Transient(err error) bool {
	switch KindOf(err) {
	case KindFollowersUnavailable, KindPostsUnavailable, KindWriteFailed:
		return true
	}

	return false
}
