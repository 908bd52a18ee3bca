package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/tickd-io/tickd/internal/platform"
)

// Session wraps a discordgo session behind the platform collaborator surface.
type Session struct {
	dg *discordgo.Session
}

// NewSession creates an unopened Discord session for the given bot token.
func NewSession(token string) (*Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: init session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages
	return &Session{dg: dg}, nil
}

// Open connects the gateway websocket.
func (s *Session) Open() error {
	if err := s.dg.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	return nil
}

// Close shuts the gateway connection down.
func (s *Session) Close() error {
	return s.dg.Close()
}

// Guild returns the adapter for one guild.
func (s *Session) Guild(id string) (platform.Guild, error) {
	if id == "" {
		return nil, fmt.Errorf("discord: empty guild id")
	}
	return &Guild{dg: s.dg, id: id}, nil
}

// BotUserID returns the connected bot's user ID, empty before the session
// is ready.
func (s *Session) BotUserID() string {
	if s.dg.State != nil && s.dg.State.User != nil {
		return s.dg.State.User.ID
	}
	return ""
}
