package providers

import (
	"context"
	"fmt"

	"github.com/amaumene/bookarr/internal/models"
)

// Kind classifies what a hit's URL points at, which in turn decides the
// download client family it needs.
type Kind string

const (
	KindNZB     Kind = "nzb"
	KindTorrent Kind = "torrent"
	KindMagnet  Kind = "magnet"
	KindDirect  Kind = "direct"
	KindIRC     Kind = "irc" // URL is a bot pack command, e.g. "!bot The Book.epub"
)

// Query is the search request handed to every provider
type Query struct {
	Title    string
	Author   string
	Category models.Category
	Types    []string // Format hints (epub, mp3, ...), best first
}

// Term returns the flat search string most providers want
func (q Query) Term() string {
	if q.Author == "" {
		return q.Title
	}
	return q.Author + " " + q.Title
}

// RawHit is one provider's raw search result. Hits live for a single
// search round and are never persisted.
type RawHit struct {
	Provider  string
	Title     string
	SizeBytes int64
	URL       string
	Kind      Kind
	Seeders   int
	Peers     int
	AgeDays   int
}

// Provider is the uniform search capability over one external source.
// Implementations must return an empty slice (not an error) when the
// search simply found nothing, and a *Error on genuine failure. They
// must not mutate shared state; failures are reported to the caller,
// which owns the blocklist.
type Provider interface {
	Name() string
	Search(ctx context.Context, q Query) ([]RawHit, error)
}

// ErrorKind classifies provider failures for blocklist backoff decisions
type ErrorKind string

const (
	ErrTimeout     ErrorKind = "timeout"
	ErrAuthFailure ErrorKind = "auth_failure"
	ErrProtocol    ErrorKind = "protocol_error"
	ErrRateLimited ErrorKind = "rate_limited"
)

// Error is a classified failure from one provider
type Error struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err as a classified provider failure
func NewError(provider string, kind ErrorKind, err error) *Error {
	return &Error{Provider: provider, Kind: kind, Err: err}
}
