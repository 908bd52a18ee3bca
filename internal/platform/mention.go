package platform

// MentionUser renders a user mention in message content.
func MentionUser(id string) string {
	return "<@" + id + ">"
}

// MentionChannel renders a channel reference in message content.
func MentionChannel(id string) string {
	return "<#" + id + ">"
}
