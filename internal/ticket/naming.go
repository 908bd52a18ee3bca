package ticket

import (
	"fmt"
	"strings"
)

// maxChannelNameLen is the ceiling for generated channel names, kept
// conservatively below the platform's 100-character hard limit.
const maxChannelNameLen = 90

// ChannelName produces the deterministic channel name for a ticket:
// "topic-requester-number" when a topic is given, "requester-number"
// otherwise. Inputs are lowercased with spaces replaced by hyphens, the
// topic is truncated to whatever fits under the length ceiling, and
// trailing hyphens left by truncation are stripped. A degenerate result
// falls back to "ticket-{number}".
func ChannelName(topic, requester string, number int) string {
	req := normalizeName(requester)
	suffix := fmt.Sprintf("-%s-%d", req, number)

	var name string
	if topic != "" {
		available := maxChannelNameLen - len([]rune(suffix))
		if available > 0 {
			t := truncate(normalizeName(topic), available)
			name = strings.TrimRight(t, "-") + suffix
		} else {
			name = trimToLimit(fmt.Sprintf("%s-%d", req, number))
		}
	} else {
		name = trimToLimit(fmt.Sprintf("%s-%d", req, number))
	}

	if name == "" {
		name = fmt.Sprintf("ticket-%d", number)
	}
	return name
}

func normalizeName(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "-")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func trimToLimit(s string) string {
	if len([]rune(s)) <= maxChannelNameLen {
		return s
	}
	return strings.TrimRight(truncate(s, maxChannelNameLen), "-")
}
