package keys

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("keys")

// ActorKey pairs a published key id with the private key that backs it.
// This is what the transport receives when it needs to sign a request.
type ActorKey struct {
	KeyID      string
	PrivateKey *rsa.PrivateKey
}

// Manager owns the signing keypair of the single actor this process
// hosts. The private key never leaves this package except wrapped in an
// ActorKey handed to the transport.
type Manager struct {
	actorID string
	keyID   string
	private *rsa.PrivateKey
}

// LoadOrCreate loads the actor's private key from path, or generates a
// fresh RSA-2048 key and persists it there on first run. A present but
// unparsable key file is an error: regenerating would silently change
// the actor's published identity.
func LoadOrCreate(path, actorID, keyID string) (*Manager, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		slog.Info("loading existing private key", slog.String("path", path))
		priv, err := decodePrivateKey(data)
		if err != nil {
			return nil, errors.Wrapf(err, "key file %s is present but unusable", path)
		}
		return &Manager{actorID: actorID, keyID: keyID, private: priv}, nil
	}
	if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "failed to read key file %s", path)
	}

	slog.Info("no key file found, generating new private key", slog.String("path", path))
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate private key")
	}

	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal private key")
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: der,
	})
	err = os.WriteFile(path, pemBytes, 0600)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to write key file %s", path)
	}

	return &Manager{actorID: actorID, keyID: keyID, private: priv}, nil
}

func decodePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("failed to parse PEM block containing the key")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err == nil {
		priv, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("key file does not contain an RSA private key")
		}
		return priv, nil
	}

	// keys written by older deployments are PKCS#1
	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.New("failed to parse DER encoded private key: " + err.Error())
	}
	return priv, nil
}

// PublicKeyPem exports the public half as a PEM encoded
// SubjectPublicKeyInfo document for the actor's published key record.
func (m *Manager) PublicKeyPem() (string, error) {
	der, err := x509.MarshalPKIXPublicKey(&m.private.PublicKey)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal public key")
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: der,
	})
	return string(pemBytes), nil
}

// ResolveKeysFor returns the signing keys held for the given actor URI.
// Only this process's own actor resolves to anything; every other
// identifier yields an empty list.
func (m *Manager) ResolveKeysFor(ctx context.Context, identifier string) []ActorKey {
	_, span := tracer.Start(ctx, "Keys.ResolveKeysFor")
	defer span.End()

	if identifier == m.actorID {
		return []ActorKey{{KeyID: m.keyID, PrivateKey: m.private}}
	}
	return nil
}
