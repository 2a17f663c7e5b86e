// Package reminder parses mention text like "5m Check the oven" into a
// delay and a message.
package reminder

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/amase-cc/apremind/world"
)

// Command is a parsed reminder request. TimeToken preserves the
// normalized form of what the user typed ("10M" -> "10m") for echoing
// back in the acknowledgement.
type Command struct {
	Delay     time.Duration
	Message   string
	TimeToken string
}

var commandPattern = regexp.MustCompile(`(?is)^\s*(\d+)\s*([smhd])\s*(.*)$`)

var unitDurations = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
}

// Parse matches text against the reminder grammar: decimal magnitude,
// one unit character in s/m/h/d (case-insensitive), then the rest of
// the string as the message. The second return value reports whether
// text matched; a matching command with an empty message falls back to
// the default reminder text.
func Parse(text string) (Command, bool) {
	match := commandPattern.FindStringSubmatch(text)
	if match == nil {
		return Command{}, false
	}

	value, err := strconv.Atoi(match[1])
	if err != nil {
		// digit run too long to represent, treat as no match
		return Command{}, false
	}

	unit := strings.ToLower(match[2])
	message := strings.TrimSpace(match[3])
	if message == "" {
		message = world.DefaultReminderMessage
	}

	return Command{
		Delay:     time.Duration(value) * unitDurations[unit],
		Message:   message,
		TimeToken: strconv.Itoa(value) + unit,
	}, true
}
