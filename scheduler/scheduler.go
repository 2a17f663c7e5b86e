// Package scheduler arms one deferred delivery task per accepted
// reminder. Tasks live only in this process: a restart drops everything
// pending, which is the documented durability limit of this actor.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/amase-cc/apremind/keys"
	"github.com/amase-cc/apremind/reminder"
	"github.com/amase-cc/apremind/store"
	"github.com/amase-cc/apremind/types"
	"github.com/amase-cc/apremind/world"
)

var tracer = otel.Tracer("scheduler")

// Transport is the slice of the federation client the scheduler needs.
type Transport interface {
	FetchPerson(ctx context.Context, actor string, key *keys.ActorKey) (*types.ApObject, error)
	PostToInbox(ctx context.Context, inbox string, object any, key keys.ActorKey) error
}

// KeyResolver yields signing material for an actor URI.
type KeyResolver interface {
	ResolveKeysFor(ctx context.Context, identifier string) []keys.ActorKey
}

type task struct {
	id     string
	target string
	fireAt time.Time
	timer  *time.Timer
}

// Scheduler holds the registry of in-flight reminder tasks. Entries are
// keyed by a generated reminder id and removed when their task fires;
// there is no cancellation path yet, the registry exists so one can be
// added without reshaping callers.
type Scheduler struct {
	transport Transport
	keys      KeyResolver
	store     *store.Store
	config    types.ApConfig

	mu    sync.Mutex
	tasks map[string]*task
}

func NewScheduler(transport Transport, keys KeyResolver, store *store.Store, config types.ApConfig) *Scheduler {
	return &Scheduler{
		transport: transport,
		keys:      keys,
		store:     store,
		config:    config,
		tasks:     make(map[string]*task),
	}
}

// Schedule arms a deferred task that delivers cmd.Message to target
// after cmd.Delay, replying to originNote. The caller is not blocked;
// the returned id identifies the registry entry.
func (s *Scheduler) Schedule(cmd reminder.Command, target types.ApObject, originNote types.ApObject) string {
	id := uuid.New().String()

	slog.Info("scheduling reminder",
		slog.String("id", id),
		slog.String("target", target.ID),
		slog.Duration("delay", cmd.Delay),
	)

	t := &task{
		id:     id,
		target: target.ID,
		fireAt: time.Now().Add(cmd.Delay),
	}
	t.timer = time.AfterFunc(cmd.Delay, func() {
		defer s.remove(id)
		s.fire(cmd, target, originNote)
	})

	s.mu.Lock()
	s.tasks[id] = t
	s.mu.Unlock()

	return id
}

// Pending returns the number of reminders armed but not yet delivered.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Scheduler) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
}

// fire builds, records and delivers the reminder. Delivery failures are
// logged and dropped: nobody is waiting on this task, the one
// acknowledgement was already sent at scheduling time.
func (s *Scheduler) fire(cmd reminder.Command, target types.ApObject, originNote types.ApObject) {
	ctx, span := tracer.Start(context.Background(), "Scheduler.Fire")
	defer span.End()

	slog.Info("sending reminder", slog.String("target", target.ID))

	actorKeys := s.keys.ResolveKeysFor(ctx, s.config.ActorID())
	if len(actorKeys) == 0 {
		slog.Error("no signing keys for own actor, dropping reminder")
		return
	}
	key := actorKeys[0]

	// best effort refresh, the stale snapshot is good enough to deliver
	person, err := s.transport.FetchPerson(ctx, target.ID, &key)
	if err == nil {
		target = *person
	}

	mention := types.Tag{
		Type: "Mention",
		Href: target.ID,
		Name: "@" + target.PreferredUsername,
	}

	note := types.ApObject{
		Context:      world.ActivityStreamsContext,
		Type:         "Note",
		ID:           s.config.NoteURL(uuid.New().String()),
		AttributedTo: s.config.ActorID(),
		InReplyTo:    originNote.ID,
		Content:      fmt.Sprintf(world.ReminderContentFormat, mentionSpan(target), renderMarkdown(cmd.Message)),
		Published:    time.Now().UTC().Format(time.RFC3339),
		To:           []string{target.ID},
		Tag:          []types.Tag{mention},
	}

	create := types.ApObject{
		Context: world.ActivityStreamsContext,
		Type:    "Create",
		ID:      s.config.CreateURL(uuid.New().String()),
		Actor:   s.config.ActorID(),
		Object:  note,
		To:      []string{target.ID},
	}

	s.store.Put(ctx, note.ID, note)
	s.store.Put(ctx, create.ID, create)

	err = s.transport.PostToInbox(ctx, target.Inbox, create, key)
	if err != nil {
		span.RecordError(err)
		log.Println("error delivering reminder", err)
		return
	}

	slog.Info("reminder sent", slog.String("target", target.ID))
}

// mentionSpan renders the microformats h-card anchor fediverse clients
// expect for a mention inside note content.
func mentionSpan(person types.ApObject) string {
	url := person.URL
	if url == "" {
		url = person.ID
	}
	return `<span class="h-card" translate="no"><a href="` + url + `" class="u-url mention">@<span>` + person.PreferredUsername + `</span></a></span>`
}

// renderMarkdown converts the user's reminder message to inline HTML.
func renderMarkdown(text string) string {
	extensions := parser.CommonExtensions | parser.NoEmptyLineBeforeBlock
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse([]byte(text))

	htmlFlags := html.CommonFlags
	opts := html.RendererOptions{Flags: htmlFlags}
	renderer := html.NewRenderer(opts)

	rendered := strings.Trim(string(markdown.Render(doc, renderer)), "\n")

	// a single paragraph is inlined into the reminder sentence
	if strings.HasPrefix(rendered, "<p>") && strings.HasSuffix(rendered, "</p>") && strings.Count(rendered, "<p>") == 1 {
		rendered = strings.TrimSuffix(strings.TrimPrefix(rendered, "<p>"), "</p>")
	}
	return rendered
}
