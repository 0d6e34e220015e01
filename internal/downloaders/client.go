package downloaders

import (
	"context"
	"fmt"

	"github.com/amaumene/bookarr/internal/models"
	"github.com/amaumene/bookarr/internal/providers"
)

// Kind is the download client family a candidate needs
type Kind string

const (
	KindUsenet    Kind = "usenet"
	KindTorrent   Kind = "torrent"
	KindBlackhole Kind = "blackhole"
)

// Payload is what gets handed to a download client
type Payload struct {
	Title    string
	URL      string
	Hit      providers.Kind
	Category models.Category // Used for client-side labels/categories
}

// JobHandle identifies a submission inside a download client
type JobHandle struct {
	ID     string
	Client string
}

// Client is the uniform submit capability over one download backend
type Client interface {
	Name() string
	Kind() Kind
	Submit(ctx context.Context, p Payload) (JobHandle, error)
	Test(ctx context.Context) error
}

// ErrorKind classifies download client failures
type ErrorKind string

const (
	ErrUnreachable ErrorKind = "unreachable"
	ErrAuthFailure ErrorKind = "auth_failure"
	ErrRejected    ErrorKind = "rejected"
)

// ClientError is a classified failure from one download client
type ClientError struct {
	Client string
	Kind   ErrorKind
	Err    error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("client %s: %s: %v", e.Client, e.Kind, e.Err)
}

func (e *ClientError) Unwrap() error { return e.Err }

// NewClientError wraps err as a classified client failure
func NewClientError(client string, kind ErrorKind, err error) *ClientError {
	return &ClientError{Client: client, Kind: kind, Err: err}
}

// FamilyFor maps a hit kind to the client family that can take it
func FamilyFor(kind providers.Kind) Kind {
	switch kind {
	case providers.KindNZB:
		return KindUsenet
	case providers.KindTorrent, providers.KindMagnet:
		return KindTorrent
	default: // direct downloads and IRC pack commands go to the drop folder
		return KindBlackhole
	}
}
