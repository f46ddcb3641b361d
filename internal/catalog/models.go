package catalog

import (
	"errors"
	"fmt"
)

// CatalogItem is one <item> of a BGG thing response decoded into nested
// maps. Attribute keys carry the "-" prefix; read nested values through
// AsList and the accessors in xmlmap.go.
type CatalogItem map[string]interface{}

// ID returns the BGG identifier of the item, or "" when absent.
func (i CatalogItem) ID() string {
	return Attr(map[string]interface{}(i), "id")
}

// OwnedItem is one entry of a user's collection.
type OwnedItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var (
	// ErrRetryLater means BGG queued the collection request (HTTP 202).
	// Callers decide when to poll again.
	ErrRetryLater = errors.New("catalog: collection is being prepared, retry later")

	// ErrNoSuchUser means BGG answered but does not know the username.
	ErrNoSuchUser = errors.New("catalog: no such user")
)

// UpstreamError reports a transport failure or an unexpected response.
type UpstreamError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("catalog %s: unexpected status %d", e.Op, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("catalog %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("catalog %s: upstream failure", e.Op)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// AsUpstreamError attempts to unwrap an error into an UpstreamError.
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return upErr, true
	}
	return nil, false
}
