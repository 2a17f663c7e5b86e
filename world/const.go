package world

const (
	ActivityStreamsContext = "https://www.w3.org/ns/activitystreams"
	SecurityContext        = "https://w3id.org/security/v1"

	ActivityJSONMediaType = "application/activity+json"
	LDJSONMediaType       = "application/ld+json"
	JRDJSONMediaType      = "application/jrd+json"
)

const (
	// DefaultReminderMessage is substituted when the parsed command
	// carries no message text.
	DefaultReminderMessage = "Here's your reminder!"

	// UsageHelpContent is sent back verbatim when a mention does not
	// parse as a reminder command.
	UsageHelpContent = "<p>🤔 Sorry, I didn't understand. Use format: <code>@reminder [time] [message]</code>.</p><p>Example: <code>@reminder 10m Check the oven</code></p>"

	// AckContentFormat takes the original time token, e.g. "5m".
	AckContentFormat = "<p>✅ OK! I'll remind you in %s.</p>"

	// ReminderContentFormat takes a rendered mention span and the
	// reminder message.
	ReminderContentFormat = "<p>🔔 Reminder for %s: %s</p>"
)
