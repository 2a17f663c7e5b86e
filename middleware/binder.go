// Package middleware carries the echo plumbing between the transport
// and the inbox dispatcher: body binding for ActivityPub media types
// and HTTP signature verification of inbound requests.
package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Binder decodes request bodies as JSON regardless of media type.
// Remote servers post activities as application/activity+json or
// application/ld+json, which echo's default binder refuses to bind.
type Binder struct{}

func (b *Binder) Bind(i interface{}, c echo.Context) error {
	req := c.Request()
	if req.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(req.Body).Decode(i)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
