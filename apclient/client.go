package apclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/totegamma/httpsig"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/amase-cc/apremind/keys"
	"github.com/amase-cc/apremind/types"
)

var (
	UserAgent = "ApRemind/1.0 (ActivityPub reminder actor)"
)

// PersonCacheTTL is the memcached expiration for fetched remote actors.
const PersonCacheTTL = 1800 // 30 minutes

var tracer = otel.Tracer("apclient")

// ApClient talks to remote ActivityPub servers with signed requests.
type ApClient struct {
	mc *memcache.Client
}

func NewApClient(mc *memcache.Client) *ApClient {
	return &ApClient{
		mc,
	}
}

// FetchPerson fetches an actor document from a remote ap server,
// consulting memcached first. The request is signed with key when one
// is supplied, so servers requiring authorized fetch still answer.
func (c *ApClient) FetchPerson(ctx context.Context, actor string, key *keys.ActorKey) (*types.ApObject, error) {
	_, span := tracer.Start(ctx, "FetchPerson")
	defer span.End()

	// try cache
	cache, err := c.mc.Get(actor)
	if err == nil {
		var person types.ApObject
		err = json.Unmarshal(cache.Value, &person)
		if err == nil {
			return &person, nil
		}
	}

	req, err := http.NewRequest("GET", actor, nil)
	if err != nil {
		return nil, err
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Host", req.URL.Host)
	client := new(http.Client)

	if key != nil {
		prefs := []httpsig.Algorithm{httpsig.RSA_SHA256}
		digestAlgorithm := httpsig.DigestSha256
		headersToSign := []string{httpsig.RequestTarget, "date", "host"}
		signer, _, err := httpsig.NewSigner(prefs, digestAlgorithm, headersToSign, httpsig.Signature, 0)
		if err != nil {
			log.Println(err)
			return nil, err
		}
		err = signer.SignRequest(key.PrivateKey, key.KeyID, req, nil)
		if err != nil {
			log.Println(err)
			return nil, err
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("error fetching person %s: %d", actor, resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)

	var person types.ApObject
	err = json.Unmarshal(body, &person)
	if err != nil {
		log.Println(err)
		return nil, err
	}

	// cache
	personBytes, err := json.Marshal(person)
	if err == nil {
		c.mc.Set(&memcache.Item{
			Key:        actor,
			Value:      personBytes,
			Expiration: PersonCacheTTL,
		})
	}

	return &person, nil
}

// PostToInbox posts an activity to a remote inbox, signed with the
// supplied actor key.
func (c *ApClient) PostToInbox(ctx context.Context, inbox string, object any, key keys.ActorKey) error {

	objectBytes, err := json.Marshal(object)
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", inbox, bytes.NewBuffer(objectBytes))
	if err != nil {
		return err
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	req.Header.Set("Host", req.URL.Host)
	client := new(http.Client)

	prefs := []httpsig.Algorithm{httpsig.RSA_SHA256}
	digestAlgorithm := httpsig.DigestSha256
	headersToSign := []string{httpsig.RequestTarget, "date", "digest", "host"}
	signer, _, err := httpsig.NewSigner(prefs, digestAlgorithm, headersToSign, httpsig.Signature, 0)
	if err != nil {
		log.Println(err)
		return err
	}
	err = signer.SignRequest(key.PrivateKey, key.KeyID, req, objectBytes)
	if err != nil {
		log.Println(err)
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		log.Println(err)
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Println(err)
	}
	log.Printf("POST %s [%d]: %s", inbox, resp.StatusCode, string(body))

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return fmt.Errorf("error posting to inbox: %d", resp.StatusCode)
	}

	return nil
}
