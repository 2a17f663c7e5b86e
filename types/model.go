package types

// WellKnown is a struct for a well-known response.
type WellKnown struct {
	Links []WellKnownLink `json:"links"`
}

// WellKnownLink is a struct for the links field of a well-known response.
type WellKnownLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

// WebFinger is a struct for a WebFinger response.
type WebFinger struct {
	Subject string          `json:"subject"`
	Links   []WebFingerLink `json:"links"`
}

// WebFingerLink is a struct for the links field of a WebFinger response.
type WebFingerLink struct {
	Rel  string `json:"rel"`
	Type string `json:"type"`
	Href string `json:"href"`
}

// ---------------------------------------------------------------------

// NodeInfo is a struct for a NodeInfo response.
type NodeInfo struct {
	Version           string           `json:"version,omitempty" yaml:"version"`
	Software          NodeInfoSoftware `json:"software,omitempty" yaml:"software"`
	Protocols         []string         `json:"protocols,omitempty" yaml:"protocols"`
	OpenRegistrations bool             `json:"openRegistrations,omitempty" yaml:"openRegistrations"`
	Metadata          NodeInfoMetadata `json:"metadata,omitempty" yaml:"metadata"`
}

// NodeInfoSoftware is a struct for the software field of a NodeInfo response.
type NodeInfoSoftware struct {
	Name    string `json:"name,omitempty" yaml:"name"`
	Version string `json:"version,omitempty" yaml:"version"`
}

// NodeInfoMetadata is a struct for the metadata field of a NodeInfo response.
type NodeInfoMetadata struct {
	NodeName        string                     `json:"nodeName,omitempty" yaml:"nodeName"`
	NodeDescription string                     `json:"nodeDescription,omitempty" yaml:"nodeDescription"`
	Maintainer      NodeInfoMetadataMaintainer `json:"maintainer,omitempty" yaml:"maintainer"`
	ThemeColor      string                     `json:"themeColor,omitempty" yaml:"themeColor"`
}

// NodeInfoMetadataMaintainer is a struct for the maintainer field of a NodeInfo response.
type NodeInfoMetadataMaintainer struct {
	Name  string `json:"name,omitempty" yaml:"name"`
	Email string `json:"email,omitempty" yaml:"email"`
}

// ---------------------------------------------------------------------

// ApObject is a catch-all struct for the ActivityPub shapes this actor
// sends and receives: Application/Person actors, Note, Create, Follow
// and Accept all marshal through it with omitempty.
type ApObject struct {
	Context           any              `json:"@context,omitempty"`
	Actor             string           `json:"actor,omitempty"`
	Type              string           `json:"type,omitempty"`
	ID                string           `json:"id,omitempty"`
	To                []string         `json:"to,omitempty"`
	CC                []string         `json:"cc,omitempty"`
	Tag               []Tag            `json:"tag,omitempty"`
	Attachment        []Attachment     `json:"attachment,omitempty"`
	InReplyTo         string           `json:"inReplyTo,omitempty"`
	Content           string           `json:"content,omitempty"`
	Published         string           `json:"published,omitempty"`
	AttributedTo      string           `json:"attributedTo,omitempty"`
	Inbox             string           `json:"inbox,omitempty"`
	Outbox            string           `json:"outbox,omitempty"`
	SharedInbox       string           `json:"sharedInbox,omitempty"`
	Endpoints         *PersonEndpoints `json:"endpoints,omitempty"`
	PreferredUsername string           `json:"preferredUsername,omitempty"`
	Name              string           `json:"name,omitempty"`
	Summary           string           `json:"summary,omitempty"`
	URL               string           `json:"url,omitempty"`
	Icon              *Icon            `json:"icon,omitempty"`
	PublicKey         *Key             `json:"publicKey,omitempty"`
	Object            any              `json:"object,omitempty"`
}

type PersonEndpoints struct {
	SharedInbox string `json:"sharedInbox,omitempty"`
}

// OrderedCollection is a struct for an ActivityPub ordered collection.
type OrderedCollection struct {
	Context      any      `json:"@context,omitempty"`
	ID           string   `json:"id,omitempty"`
	Type         string   `json:"type,omitempty"`
	TotalItems   int      `json:"totalItems"`
	OrderedItems []string `json:"orderedItems"`
}

// Key is a struct for the publicKey field of an actor.
type Key struct {
	ID           string `json:"id,omitempty"`
	Type         string `json:"type,omitempty"`
	Owner        string `json:"owner,omitempty"`
	PublicKeyPem string `json:"publicKeyPem,omitempty"`
}

// Icon is a struct for the icon field of an actor.
type Icon struct {
	Type      string `json:"type,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
	URL       string `json:"url,omitempty"`
}

// Attachment is a struct for an ActivityPub attachment.
type Attachment struct {
	Type      string `json:"type,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
	URL       string `json:"url,omitempty"`
}

// Tag is a struct for an ActivityPub tag.
type Tag struct {
	Type string `json:"type,omitempty"`
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Icon *Icon  `json:"icon,omitempty"`
	Href string `json:"href,omitempty"`
}

// ---------------------------------------------------------------------

// ApConfig carries the identity of the single actor this process hosts.
type ApConfig struct {
	FQDN      string `yaml:"fqdn"`
	Username  string `yaml:"username"`
	ActorName string `yaml:"actorName"`
	Summary   string `yaml:"summary"`
	KeyPath   string `yaml:"keyPath"`
}

// ActorID returns the canonical URI of the hosted actor.
func (c ApConfig) ActorID() string {
	return "https://" + c.FQDN + "/actor"
}

// KeyID returns the URI of the actor's published key record.
func (c ApConfig) KeyID() string {
	return c.ActorID() + "#main-key"
}

// InboxURL returns the actor's inbox endpoint.
func (c ApConfig) InboxURL() string {
	return "https://" + c.FQDN + "/inbox"
}

// OutboxURL returns the actor's outbox endpoint.
func (c ApConfig) OutboxURL() string {
	return "https://" + c.FQDN + "/outbox"
}

// NoteURL returns the URI of a note with the given id.
func (c ApConfig) NoteURL(id string) string {
	return "https://" + c.FQDN + "/notes/" + id
}

// CreateURL returns the URI of a create activity with the given id.
func (c ApConfig) CreateURL(id string) string {
	return "https://" + c.FQDN + "/creates/" + id
}

// Handle returns the webfinger handle of the hosted actor.
func (c ApConfig) Handle() string {
	return c.Username + "@" + c.FQDN
}
