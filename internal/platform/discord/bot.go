package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/tickd-io/tickd/internal/platform"
	"github.com/tickd-io/tickd/internal/ticket"
)

// Bot wires Discord slash commands and component interactions to the ticket
// manager. It owns only the rendering; all lifecycle decisions live in the
// manager.
type Bot struct {
	session *Session
	manager *ticket.Manager
	guildID string // command registration scope, empty registers globally
	logger  *slog.Logger
}

// NewBot creates the interaction front-end. logger may be nil.
func NewBot(session *Session, manager *ticket.Manager, guildID string, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		session: session,
		manager: manager,
		guildID: guildID,
		logger:  logger,
	}
}

// Start opens the gateway, registers the slash commands, and serves
// interactions until the context is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	dg := b.session.dg

	removeReady := dg.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		b.logger.Info("discord session ready", "user", r.User.Username, "guilds", len(r.Guilds))
	})
	defer removeReady()
	removeInteraction := dg.AddHandler(b.onInteraction)
	defer removeInteraction()

	if err := b.session.Open(); err != nil {
		return err
	}
	defer b.session.Close()

	if _, err := dg.ApplicationCommandBulkOverwrite(dg.State.User.ID, b.guildID, commands()); err != nil {
		return fmt.Errorf("discord: register commands: %w", err)
	}
	b.logger.Info("commands registered", "scope", scopeName(b.guildID))

	<-ctx.Done()
	b.logger.Info("discord bot stopping")
	return ctx.Err()
}

func scopeName(guildID string) string {
	if guildID == "" {
		return "global"
	}
	return "guild " + guildID
}

func commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "newticket",
			Description: "Open a support ticket",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "topic", Description: "What the ticket is about"},
			},
		},
		{Name: "close", Description: "Close the current ticket (staff only)"},
		{
			Name:        "add",
			Description: "Add a user to the current ticket",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to add", Required: true},
			},
		},
		{
			Name:        "remove",
			Description: "Remove a user from the current ticket",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to remove", Required: true},
			},
		},
		{Name: "transcribe", Description: "Export this ticket's transcript (staff only)"},
		{Name: "hello", Description: "Check that the bot is alive"},
	}
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(ctx, s, i)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(ctx, s, i)
	}
}

func (b *Bot) handleCommand(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	inv := b.invocation(ctx, s, i)
	name := i.ApplicationCommandData().Name

	var err error
	switch name {
	case "newticket":
		err = b.handleNewTicket(ctx, s, i, inv)
	case "close":
		err = b.handleClose(ctx, s, i, inv)
	case "add":
		err = b.handleParticipant(ctx, s, i, inv, true)
	case "remove":
		err = b.handleParticipant(ctx, s, i, inv, false)
	case "transcribe":
		err = b.handleTranscribe(ctx, s, i, inv)
	case "hello":
		err = b.respond(s, i, fmt.Sprintf("tickd is online. Gateway latency: %s.", s.HeartbeatLatency().Round(time.Millisecond)), true)
	default:
		err = b.respond(s, i, "Unknown command.", true)
	}
	if err != nil {
		b.logger.Error("command failed", "command", name, "user", inv.Invoker.ID, "error", err)
	}
}

func (b *Bot) handleNewTicket(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, inv ticket.Invocation) error {
	topic := ""
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "topic" {
			topic = opt.StringValue()
		}
	}

	// Channel provisioning can take longer than the interaction deadline.
	if err := b.deferReply(s, i); err != nil {
		return err
	}

	res, err := b.manager.Create(ctx, inv, topic)
	if err != nil {
		return b.followupError(s, i, err)
	}
	return b.followup(s, i, fmt.Sprintf("Ticket #%d created: %s", res.Number, platform.MentionChannel(res.Channel.ID)))
}

func (b *Bot) handleClose(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, inv ticket.Invocation) error {
	if err := b.manager.RequireStaff(ctx, inv); err != nil {
		return b.respondError(s, i, err)
	}
	conf, err := b.manager.RequestClose(ctx, inv)
	if err != nil {
		return b.respondError(s, i, err)
	}
	return b.respondWithButtons(s, i,
		"Close this ticket? This cannot be undone.",
		ticket.ConfirmButtons(conf.Token, false))
}

func (b *Bot) handleParticipant(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, inv ticket.Invocation, add bool) error {
	var target platform.Member
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "user" {
			u := opt.UserValue(s)
			target = platform.Member{ID: u.ID, Username: u.Username, DisplayName: u.GlobalName, Bot: u.Bot}
		}
	}

	if add {
		if err := b.manager.AddParticipant(ctx, inv, target); err != nil {
			return b.respondError(s, i, err)
		}
		return b.respond(s, i, fmt.Sprintf("Added %s to this ticket.", platform.MentionUser(target.ID)), false)
	}
	if err := b.manager.RemoveParticipant(ctx, inv, target); err != nil {
		return b.respondError(s, i, err)
	}
	return b.respond(s, i, fmt.Sprintf("Removed %s from this ticket.", platform.MentionUser(target.ID)), false)
}

func (b *Bot) handleTranscribe(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, inv ticket.Invocation) error {
	if err := b.manager.RequireStaff(ctx, inv); err != nil {
		return b.respondError(s, i, err)
	}
	if err := b.deferReply(s, i); err != nil {
		return err
	}

	path, count, err := b.manager.Transcribe(ctx, inv)
	if err != nil {
		return b.followupError(s, i, err)
	}
	return b.followupFile(s, i, fmt.Sprintf("Transcript exported: %d messages.", count), path)
}

func (b *Bot) handleComponent(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	inv := b.invocation(ctx, s, i)
	customID := i.MessageComponentData().CustomID

	// Confirmed closes may delete the channel the interaction lives in, so
	// acknowledge before doing the work.
	acked := false
	if strings.HasPrefix(customID, ticket.ConfirmID("")) {
		if err := b.respondUpdate(s, i, "Closing ticket..."); err != nil {
			b.logger.Warn("confirm ack failed", "channel", i.ChannelID, "error", err)
		} else {
			acked = true
		}
	}

	res, err := b.manager.Component(ctx, inv, customID)
	if err != nil {
		var ferr error
		if acked {
			ferr = b.followupError(s, i, err)
		} else {
			ferr = b.respondError(s, i, err)
		}
		if ferr != nil {
			b.logger.Debug("component error reply failed", "component", customID, "error", ferr)
		}
		return
	}

	switch res.Kind {
	case ticket.ComponentConfirmPrompt:
		err = b.respondWithButtons(s, i,
			"Close this ticket? This cannot be undone.",
			ticket.ConfirmButtons(res.Confirmation.Token, false))
	case ticket.ComponentClosed:
		// Already acknowledged above; nothing more to say for deletes.
	case ticket.ComponentTranscript:
		err = b.respondFile(s, i, fmt.Sprintf("Transcript exported: %d messages.", res.TranscriptCount), res.TranscriptPath)
	}
	if err != nil {
		b.logger.Error("component reply failed", "component", customID, "error", err)
	}
}

// invocation assembles the manager's view of an interaction. A channel that
// cannot be resolved is passed as nil and fails the ticket-channel check.
func (b *Bot) invocation(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) ticket.Invocation {
	inv := ticket.Invocation{GuildID: i.GuildID}

	if i.Member != nil {
		inv.Invoker = toMember(i.Member)
	} else if u := i.User; u != nil {
		inv.Invoker = platform.Member{ID: u.ID, Username: u.Username, DisplayName: u.GlobalName, Bot: u.Bot}
	}

	if i.ChannelID != "" {
		ch, err := s.State.Channel(i.ChannelID)
		if err != nil {
			ch, err = s.Channel(i.ChannelID, discordgo.WithContext(ctx))
		}
		if err != nil {
			b.logger.Warn("channel lookup failed", "channel", i.ChannelID, "error", err)
		} else {
			inv.Channel = toChannel(ch)
		}
	}
	return inv
}

// --- replies ---

// userMessage maps lifecycle sentinels to the rejection shown to the user.
func userMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, ticket.ErrNotInGuild):
		return "This command only works inside a server.", true
	case errors.Is(err, ticket.ErrNotTicketChannel):
		return "This is not a ticket channel.", true
	case errors.Is(err, ticket.ErrBotParticipant):
		return "Bots cannot be ticket participants.", true
	case errors.Is(err, ticket.ErrNotStaff):
		return "Only staff members can do that.", true
	case errors.Is(err, ticket.ErrConfirmExpired):
		return "That confirmation has expired. Run /close again.", true
	case errors.Is(err, ticket.ErrUnknownComponent):
		return "This button is no longer supported.", true
	}
	return "", false
}

func (b *Bot) respondError(s *discordgo.Session, i *discordgo.InteractionCreate, err error) error {
	msg, known := userMessage(err)
	if !known {
		b.logger.Error("interaction failed", "channel", i.ChannelID, "error", err)
		msg = "Something went wrong. Please try again later."
	}
	return b.respond(s, i, msg, true)
}

func (b *Bot) followupError(s *discordgo.Session, i *discordgo.InteractionCreate, err error) error {
	msg, known := userMessage(err)
	if !known {
		b.logger.Error("interaction failed", "channel", i.ChannelID, "error", err)
		msg = "Something went wrong. Please try again later."
	}
	return b.followup(s, i, msg)
}

func (b *Bot) respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) error {
	data := &discordgo.InteractionResponseData{Content: content}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
}

func (b *Bot) respondWithButtons(s *discordgo.Session, i *discordgo.InteractionCreate, content string, buttons []platform.Button) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Flags:      discordgo.MessageFlagsEphemeral,
			Components: componentRows(buttons),
		},
	})
}

func (b *Bot) respondUpdate(s *discordgo.Session, i *discordgo.InteractionCreate, content string) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Components: []discordgo.MessageComponent{},
		},
	})
}

func (b *Bot) respondFile(s *discordgo.Session, i *discordgo.InteractionCreate, content, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("discord: open transcript %s: %w", path, err)
	}
	defer f.Close()

	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Files: []*discordgo.File{
				{Name: filepath.Base(path), ContentType: "text/plain", Reader: f},
			},
		},
	})
}

func (b *Bot) deferReply(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
}

func (b *Bot) followup(s *discordgo.Session, i *discordgo.InteractionCreate, content string) error {
	_, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	return err
}

func (b *Bot) followupFile(s *discordgo.Session, i *discordgo.InteractionCreate, content, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("discord: open transcript %s: %w", path, err)
	}
	defer f.Close()

	_, err = s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Files: []*discordgo.File{
			{Name: filepath.Base(path), ContentType: "text/plain", Reader: f},
		},
	})
	return err
}
