package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amase-cc/apremind/types"
)

func TestBinderDecodesActivityJson(t *testing.T) {
	body := `{"type":"Follow","id":"https://remote.example/act/1","actor":"https://remote.example/users/alice"}`
	req := httptest.NewRequest(http.MethodPost, "/inbox", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/activity+json")

	e := echo.New()
	e.Binder = &Binder{}
	c := e.NewContext(req, httptest.NewRecorder())

	var object types.ApObject
	require.NoError(t, c.Bind(&object))
	assert.Equal(t, "Follow", object.Type)
	assert.Equal(t, "https://remote.example/users/alice", object.Actor)
}

func TestBinderRejectsMalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/inbox", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/ld+json")

	e := echo.New()
	e.Binder = &Binder{}
	c := e.NewContext(req, httptest.NewRecorder())

	var object types.ApObject
	assert.Error(t, c.Bind(&object))
}
