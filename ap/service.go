package ap

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/amase-cc/apremind/keys"
	"github.com/amase-cc/apremind/reminder"
	"github.com/amase-cc/apremind/scheduler"
	"github.com/amase-cc/apremind/store"
	"github.com/amase-cc/apremind/types"
	"github.com/amase-cc/apremind/world"
)

// ErrActorUnresolvable is returned when the remote actor an inbox
// activity requires cannot be fetched.
var ErrActorUnresolvable = errors.New("actor could not be resolved")

// Transport is the slice of the federation client the inbox dispatcher
// needs.
type Transport interface {
	FetchPerson(ctx context.Context, actor string, key *keys.ActorKey) (*types.ApObject, error)
	PostToInbox(ctx context.Context, inbox string, object any, key keys.ActorKey) error
}

// KeyResolver yields signing material for an actor URI.
type KeyResolver interface {
	ResolveKeysFor(ctx context.Context, identifier string) []keys.ActorKey
}

type Service struct {
	store     *store.Store
	cache     *store.Cache
	transport Transport
	keys      KeyResolver
	scheduler *scheduler.Scheduler
	info      types.NodeInfo
	config    types.ApConfig
	actor     types.ApObject
}

func NewService(
	store *store.Store,
	cache *store.Cache,
	transport Transport,
	keys KeyResolver,
	scheduler *scheduler.Scheduler,
	info types.NodeInfo,
	config types.ApConfig,
	publicKeyPem string,
) *Service {
	// the actor identity is immutable after startup
	actor := types.ApObject{
		Context: []string{
			world.ActivityStreamsContext,
			world.SecurityContext,
		},
		Type:              "Application",
		ID:                config.ActorID(),
		Name:              config.ActorName,
		PreferredUsername: config.Username,
		Summary:           config.Summary,
		URL:               config.ActorID(),
		Inbox:             config.InboxURL(),
		Outbox:            config.OutboxURL(),
		PublicKey: &types.Key{
			ID:           config.KeyID(),
			Type:         "Key",
			Owner:        config.ActorID(),
			PublicKeyPem: publicKeyPem,
		},
	}

	return &Service{
		store:     store,
		cache:     cache,
		transport: transport,
		keys:      keys,
		scheduler: scheduler,
		info:      info,
		config:    config,
		actor:     actor,
	}
}

func (s *Service) WebFinger(ctx context.Context, resource string) (types.WebFinger, error) {
	_, span := tracer.Start(ctx, "Ap.Service.WebFinger")
	defer span.End()

	if resource != "acct:"+s.config.Handle() && resource != s.config.ActorID() {
		return types.WebFinger{}, errors.New("resource not found")
	}

	return types.WebFinger{
		Subject: resource,
		Links: []types.WebFingerLink{
			{
				Rel:  "self",
				Type: world.ActivityJSONMediaType,
				Href: s.config.ActorID(),
			},
		},
	}, nil
}

func (s *Service) NodeInfo(ctx context.Context) (types.NodeInfo, error) {
	_, span := tracer.Start(ctx, "Ap.Service.NodeInfo")
	defer span.End()
	return s.info, nil
}

func (s *Service) NodeInfoWellKnown(ctx context.Context) (types.WellKnown, error) {
	_, span := tracer.Start(ctx, "Ap.Service.NodeInfoWellKnown")
	defer span.End()
	return types.WellKnown{
		Links: []types.WellKnownLink{
			{
				Rel:  "http://nodeinfo.diaspora.software/ns/schema/2.0",
				Href: "https://" + s.config.FQDN + "/nodeinfo/2.0",
			},
		},
	}, nil
}

// Actor returns the published profile document of the hosted actor.
func (s *Service) Actor(ctx context.Context) types.ApObject {
	_, span := tracer.Start(ctx, "Ap.Service.Actor")
	defer span.End()
	return s.actor
}

// Outbox is always empty: outbound activities are only exposed
// individually by URI.
func (s *Service) Outbox(ctx context.Context) types.OrderedCollection {
	_, span := tracer.Start(ctx, "Ap.Service.Outbox")
	defer span.End()
	return types.OrderedCollection{
		Context:      world.ActivityStreamsContext,
		ID:           s.config.OutboxURL(),
		Type:         "OrderedCollection",
		TotalItems:   0,
		OrderedItems: []string{},
	}
}

// Note returns a stored note by id, through the response cache.
func (s *Service) Note(ctx context.Context, id string) (types.ApObject, error) {
	ctx, span := tracer.Start(ctx, "Ap.Service.Note")
	defer span.End()

	return s.cache.GetOrFetch(ctx, s.config.NoteURL(id))
}

// Create returns a stored create activity by id, through the response
// cache.
func (s *Service) Create(ctx context.Context, id string) (types.ApObject, error) {
	ctx, span := tracer.Start(ctx, "Ap.Service.Create")
	defer span.End()

	return s.cache.GetOrFetch(ctx, s.config.CreateURL(id))
}

// Inbox dispatches one verified incoming activity. A nil return means
// the activity was handled or deliberately ignored; the caller answers
// 202 either way so the remote peer does not retry.
func (s *Service) Inbox(ctx context.Context, object types.ApObject) error {
	ctx, span := tracer.Start(ctx, "Ap.Service.Inbox")
	defer span.End()

	switch object.Type {
	case "Follow":
		return s.handleFollow(ctx, object)

	case "Create":
		return s.handleCreate(ctx, object)

	default:
		b, err := json.Marshal(object)
		if err != nil {
			span.RecordError(err)
			return errors.Wrap(err, "json marshal error")
		}
		log.Println("Unhandled Activitypub Object", string(b))
		return nil
	}
}

// handleFollow accepts every follow request. No follower state is kept,
// so re-accepting an already accepted follower just produces another
// Accept.
func (s *Service) handleFollow(ctx context.Context, object types.ApObject) error {
	ctx, span := tracer.Start(ctx, "Ap.Service.HandleFollow")
	defer span.End()

	key, err := s.ownKey(ctx)
	if err != nil {
		return err
	}

	requester, err := s.transport.FetchPerson(ctx, object.Actor, &key)
	if err != nil {
		log.Println("error fetching person", err)
		span.RecordError(err)
		return ErrActorUnresolvable
	}

	accept := types.ApObject{
		Context: world.ActivityStreamsContext,
		ID:      "https://" + s.config.FQDN + "/activity/follows/" + url.PathEscape(requester.ID),
		Type:    "Accept",
		Actor:   s.config.ActorID(),
		Object:  object,
	}

	err = s.transport.PostToInbox(ctx, requester.Inbox, accept, key)
	if err != nil {
		// nobody retries an Accept, log and move on
		log.Println("error posting to inbox", err)
		span.RecordError(err)
		return nil
	}

	log.Println("Accepted follow from", requester.ID)
	return nil
}

// handleCreate reacts to notes that mention this actor; everything else
// is acknowledged without effect.
func (s *Service) handleCreate(ctx context.Context, object types.ApObject) error {
	ctx, span := tracer.Start(ctx, "Ap.Service.HandleCreate")
	defer span.End()

	note, ok := createdNote(object)
	if !ok {
		return nil
	}

	if !s.mentionsMe(note) {
		return nil
	}

	log.Printf("Received mention from %s: %s", object.Actor, note.Content)

	command := s.commandText(note.Content)

	key, err := s.ownKey(ctx)
	if err != nil {
		return err
	}

	sender, err := s.transport.FetchPerson(ctx, object.Actor, &key)
	if err != nil {
		span.RecordError(err)
		return ErrActorUnresolvable
	}

	cmd, matched := reminder.Parse(command)

	var replyContent string
	if matched {
		s.scheduler.Schedule(cmd, *sender, note)
		replyContent = fmt.Sprintf(world.AckContentFormat, cmd.TimeToken)
	} else {
		replyContent = world.UsageHelpContent
	}

	s.sendReply(ctx, key, *sender, note, replyContent)
	return nil
}

// createdNote unwraps the object of a Create activity into a typed
// note. The inbound object arrives as a generic map, so it takes a trip
// through the codec.
func createdNote(object types.ApObject) (types.ApObject, bool) {
	inner, ok := object.Object.(map[string]any)
	if !ok {
		return types.ApObject{}, false
	}
	if t, _ := inner["type"].(string); t != "Note" {
		return types.ApObject{}, false
	}

	noteBytes, err := json.Marshal(inner)
	if err != nil {
		return types.ApObject{}, false
	}
	var note types.ApObject
	err = json.Unmarshal(noteBytes, &note)
	if err != nil {
		return types.ApObject{}, false
	}
	return note, true
}

func (s *Service) mentionsMe(note types.ApObject) bool {
	for _, tag := range note.Tag {
		if tag.Type == "Mention" && tag.Href == s.config.ActorID() {
			return true
		}
	}
	return false
}

// commandText strips markup and the literal mention token from note
// content, leaving the text handed to the command parser.
func (s *Service) commandText(content string) string {
	text, err := htmlToText(strings.NewReader(content))
	if err != nil {
		text = content
	}
	text = strings.ReplaceAll(text, "@"+s.config.Handle(), "")
	text = strings.ReplaceAll(text, "@"+s.config.Username, "")
	return strings.TrimSpace(text)
}

// sendReply stores and delivers one Note/Create pair addressed to the
// sender. Delivery failure is logged only; the inbox response does not
// depend on it.
func (s *Service) sendReply(ctx context.Context, key keys.ActorKey, sender types.ApObject, origin types.ApObject, content string) {
	replyNote := types.ApObject{
		Context:      world.ActivityStreamsContext,
		Type:         "Note",
		ID:           s.config.NoteURL(uuid.New().String()),
		AttributedTo: s.config.ActorID(),
		InReplyTo:    origin.ID,
		Content:      content,
		Published:    time.Now().UTC().Format(time.RFC3339),
		To:           []string{sender.ID},
		Tag: []types.Tag{
			{
				Type: "Mention",
				Href: sender.ID,
				Name: "@" + sender.PreferredUsername,
			},
		},
	}

	replyCreate := types.ApObject{
		Context: world.ActivityStreamsContext,
		Type:    "Create",
		ID:      s.config.CreateURL(uuid.New().String()),
		Actor:   s.config.ActorID(),
		Object:  replyNote,
		To:      []string{sender.ID},
	}

	s.store.Put(ctx, replyNote.ID, replyNote)
	s.store.Put(ctx, replyCreate.ID, replyCreate)

	err := s.transport.PostToInbox(ctx, sender.Inbox, replyCreate, key)
	if err != nil {
		log.Println("error delivering reply", err)
	}
}

func (s *Service) ownKey(ctx context.Context) (keys.ActorKey, error) {
	actorKeys := s.keys.ResolveKeysFor(ctx, s.config.ActorID())
	if len(actorKeys) == 0 {
		return keys.ActorKey{}, errors.New("no signing keys for own actor")
	}
	return actorKeys[0], nil
}
