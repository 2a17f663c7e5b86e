package ap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apmiddleware "github.com/amase-cc/apremind/middleware"
	"github.com/amase-cc/apremind/scheduler"
	"github.com/amase-cc/apremind/store"
	"github.com/amase-cc/apremind/types"
)

func newTestServer(transport *fakeTransport) (*echo.Echo, *store.Store) {
	activityStore := store.NewStore()
	cache := store.NewCache(activityStore)
	resolver := &fakeKeys{actorID: testConfig.ActorID()}
	sched := scheduler.NewScheduler(transport, resolver, activityStore, testConfig)
	service := NewService(
		activityStore,
		cache,
		transport,
		resolver,
		sched,
		types.NodeInfo{},
		testConfig,
		"-----BEGIN PUBLIC KEY-----\ntest\n-----END PUBLIC KEY-----\n",
	)
	handler := NewHandler(service)

	e := echo.New()
	e.Binder = &apmiddleware.Binder{}
	e.GET("/.well-known/webfinger", handler.WebFinger)
	e.GET("/actor", handler.Actor)
	e.GET("/outbox", handler.Outbox)
	e.GET("/notes/:id", handler.Note)
	e.GET("/creates/:id", handler.Create)
	e.POST("/inbox", handler.Inbox)

	return e, activityStore
}

func TestInboxEndpointFollowReturns202(t *testing.T) {
	transport := &fakeTransport{persons: map[string]types.ApObject{sender.ID: sender}}
	e, _ := newTestServer(transport)

	body := `{"type":"Follow","id":"https://remote.example/follows/1","actor":"` + sender.ID + `","object":"` + testConfig.ActorID() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/inbox", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/activity+json")
	req.ContentLength = int64(len(body))
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, transport.postCount())
}

func TestInboxEndpointUnresolvableActorReturns400(t *testing.T) {
	transport := &fakeTransport{fetchErr: errors.New("remote down")}
	e, _ := newTestServer(transport)

	body := `{"type":"Follow","id":"https://remote.example/follows/1","actor":"https://remote.example/users/ghost","object":"` + testConfig.ActorID() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/inbox", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/activity+json")
	req.ContentLength = int64(len(body))
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, transport.postCount())
}

func TestNoteEndpoint(t *testing.T) {
	e, activityStore := newTestServer(&fakeTransport{})

	req := httptest.NewRequest(http.MethodGet, "/notes/unknown", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	note := types.ApObject{
		Type:    "Note",
		ID:      testConfig.NoteURL("abc"),
		Content: "<p>hello</p>",
	}
	activityStore.Put(context.Background(), note.ID, note)

	req = httptest.NewRequest(http.MethodGet, "/notes/abc", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/activity+json")

	var got types.ApObject
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, note.ID, got.ID)
	assert.Equal(t, note.Content, got.Content)
}

func TestWebFingerEndpoint(t *testing.T) {
	e, _ := newTestServer(&fakeTransport{})

	req := httptest.NewRequest(http.MethodGet, "/.well-known/webfinger?resource=acct:reminder@bot.example", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/jrd+json")

	var result types.WebFinger
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Links, 1)
	assert.Equal(t, testConfig.ActorID(), result.Links[0].Href)

	req = httptest.NewRequest(http.MethodGet, "/.well-known/webfinger?resource=acct:nobody@bot.example", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActorEndpoint(t *testing.T) {
	e, _ := newTestServer(&fakeTransport{})

	req := httptest.NewRequest(http.MethodGet, "/actor", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var actor types.ApObject
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &actor))
	assert.Equal(t, "Application", actor.Type)
	assert.Equal(t, testConfig.InboxURL(), actor.Inbox)
}
