// Package identity resolves the user id that namespaces favorites. The
// service trusts an upstream gateway to authenticate callers and forward the
// id in a header.
package identity

import (
	"errors"
	"net/http"
	"strings"
)

// HeaderUserID carries the authenticated user id.
const HeaderUserID = "X-User-ID"

// ErrUnauthenticated is returned when a request carries no user id.
var ErrUnauthenticated = errors.New("unauthenticated")

// HeaderProvider reads the user id from a request header.
type HeaderProvider struct {
	Header string
}

// NewHeaderProvider returns a provider reading HeaderUserID.
func NewHeaderProvider() HeaderProvider {
	return HeaderProvider{Header: HeaderUserID}
}

// UserID returns the caller's id or ErrUnauthenticated.
func (p HeaderProvider) UserID(r *http.Request) (string, error) {
	header := p.Header
	if header == "" {
		header = HeaderUserID
	}
	id := strings.TrimSpace(r.Header.Get(header))
	if id == "" || strings.ContainsAny(id, "/{}") {
		return "", ErrUnauthenticated
	}
	return id, nil
}
