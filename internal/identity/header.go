package identity

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// Header carries the authenticated username set by the edge.
const Header = "X-Username"

func UsernameFrom(r *http.Request) (string, error) {
	username := strings.TrimSpace(r.Header.Get(Header))
	if username == "" {
		return "", fmt.Errorf("%w: missing %s header", domain.ErrBadRequest, Header)
	}
	return username, nil
}
