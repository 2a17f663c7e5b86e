package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/totegamma/httpsig"

	"github.com/amase-cc/apremind/keys"
	"github.com/amase-cc/apremind/types"
)

type fakeFetcher struct {
	persons map[string]types.ApObject
}

func (f *fakeFetcher) FetchPerson(ctx context.Context, actor string, key *keys.ActorKey) (*types.ApObject, error) {
	person, ok := f.persons[actor]
	if !ok {
		return nil, echo.ErrNotFound
	}
	return &person, nil
}

type emptyResolver struct{}

func (emptyResolver) ResolveKeysFor(ctx context.Context, identifier string) []keys.ActorKey {
	return nil
}

var testConfig = types.ApConfig{FQDN: "bot.example", Username: "reminder"}

func signerActor(t *testing.T) (types.ApObject, *rsa.PrivateKey, string) {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	pubPem := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	actorID := "https://remote.example/users/alice"
	keyID := actorID + "#main-key"
	actor := types.ApObject{
		Type: "Person",
		ID:   actorID,
		PublicKey: &types.Key{
			ID:           keyID,
			Owner:        actorID,
			PublicKeyPem: pubPem,
		},
	}
	return actor, priv, keyID
}

func signedRequest(t *testing.T, priv *rsa.PrivateKey, keyID, body string) *http.Request {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/inbox", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	req.Header.Set("Host", "bot.example")

	prefs := []httpsig.Algorithm{httpsig.RSA_SHA256}
	headersToSign := []string{httpsig.RequestTarget, "date", "digest", "host"}
	signer, _, err := httpsig.NewSigner(prefs, httpsig.DigestSha256, headersToSign, httpsig.Signature, 0)
	require.NoError(t, err)
	require.NoError(t, signer.SignRequest(priv, keyID, req, []byte(body)))

	return req
}

func runMiddleware(req *http.Request, fetcher PersonFetcher) *httptest.ResponseRecorder {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	next := func(c echo.Context) error {
		return c.String(http.StatusAccepted, "handled")
	}
	_ = VerifySignature(fetcher, emptyResolver{}, testConfig)(next)(c)
	return rec
}

func TestVerifySignatureAcceptsSignedRequest(t *testing.T) {
	actor, priv, keyID := signerActor(t)
	fetcher := &fakeFetcher{persons: map[string]types.ApObject{actor.ID: actor}}

	req := signedRequest(t, priv, keyID, `{"type":"Follow"}`)
	rec := runMiddleware(req, fetcher)

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestVerifySignatureRejectsUnsignedRequest(t *testing.T) {
	actor, _, _ := signerActor(t)
	fetcher := &fakeFetcher{persons: map[string]types.ApObject{actor.ID: actor}}

	req := httptest.NewRequest(http.MethodPost, "/inbox", strings.NewReader(`{"type":"Follow"}`))
	rec := runMiddleware(req, fetcher)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifySignatureRejectsWrongKey(t *testing.T) {
	actor, _, keyID := signerActor(t)
	// sign with a different key than the one the actor publishes
	otherPriv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	fetcher := &fakeFetcher{persons: map[string]types.ApObject{actor.ID: actor}}
	req := signedRequest(t, otherPriv, keyID, `{"type":"Follow"}`)
	rec := runMiddleware(req, fetcher)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifySignatureRejectsUnknownSigner(t *testing.T) {
	_, priv, keyID := signerActor(t)
	fetcher := &fakeFetcher{persons: map[string]types.ApObject{}}

	req := signedRequest(t, priv, keyID, `{"type":"Follow"}`)
	rec := runMiddleware(req, fetcher)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
