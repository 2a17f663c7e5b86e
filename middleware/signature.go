package middleware

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/totegamma/httpsig"

	"github.com/amase-cc/apremind/keys"
	"github.com/amase-cc/apremind/types"
)

// PersonFetcher is the slice of the federation client needed to look up
// the actor that claims to have signed a request.
type PersonFetcher interface {
	FetchPerson(ctx context.Context, actor string, key *keys.ActorKey) (*types.ApObject, error)
}

// KeyResolver yields signing material for an actor URI.
type KeyResolver interface {
	ResolveKeysFor(ctx context.Context, identifier string) []keys.ActorKey
}

// VerifySignature checks the HTTP signature of inbound inbox requests
// against the public key published by the keyId's owner. Requests that
// do not verify are rejected before the dispatcher sees them.
func VerifySignature(fetcher PersonFetcher, resolver KeyResolver, config types.ApConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			verifier, err := httpsig.NewVerifier(c.Request())
			if err != nil {
				log.Println("unsigned inbox request rejected:", err)
				return c.String(http.StatusUnauthorized, "signature required")
			}

			actorURI := strings.SplitN(verifier.KeyId(), "#", 2)[0]

			var signKey *keys.ActorKey
			own := resolver.ResolveKeysFor(ctx, config.ActorID())
			if len(own) > 0 {
				signKey = &own[0]
			}

			person, err := fetcher.FetchPerson(ctx, actorURI, signKey)
			if err != nil {
				log.Println("failed to fetch signer actor", actorURI, err)
				return c.String(http.StatusUnauthorized, "signer could not be resolved")
			}

			pubKey, err := decodePublicKey(person)
			if err != nil {
				log.Println("failed to decode signer key", actorURI, err)
				return c.String(http.StatusUnauthorized, "signer key unusable")
			}

			err = verifier.Verify(pubKey, httpsig.RSA_SHA256)
			if err != nil {
				log.Println("signature verification failed for", actorURI, err)
				return c.String(http.StatusUnauthorized, "signature verification failed")
			}

			return next(c)
		}
	}
}

func decodePublicKey(person *types.ApObject) (*rsa.PublicKey, error) {
	if person.PublicKey == nil || person.PublicKey.PublicKeyPem == "" {
		return nil, errors.New("actor publishes no public key")
	}

	block, _ := pem.Decode([]byte(person.PublicKey.PublicKeyPem))
	if block == nil {
		return nil, errors.New("failed to parse PEM block containing the key")
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err == nil {
		pub, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("actor key is not RSA")
		}
		return pub, nil
	}

	// some servers publish PKCS#1 keys
	pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse DER encoded public key")
	}
	return pub, nil
}
