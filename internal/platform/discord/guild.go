package discord

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/tickd-io/tickd/internal/platform"
)

// Permission bits backing the read/write pair the ticket core works with.
const (
	readBits  = discordgo.PermissionViewChannel | discordgo.PermissionReadMessageHistory
	writeBits = discordgo.PermissionSendMessages | discordgo.PermissionAttachFiles
)

// Guild adapts one Discord guild to the platform.Guild surface.
type Guild struct {
	dg *discordgo.Session
	id string
}

func (g *Guild) ID() string { return g.id }

// EveryoneID returns the @everyone role ID, which Discord defines as the
// guild ID itself.
func (g *Guild) EveryoneID() string { return g.id }

func (g *Guild) FindCategory(ctx context.Context, name string) (*platform.Category, error) {
	chs, err := g.dg.GuildChannels(g.id, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("discord: list channels: %w", err)
	}
	for _, ch := range chs {
		if ch.Type == discordgo.ChannelTypeGuildCategory && strings.EqualFold(ch.Name, name) {
			return &platform.Category{ID: ch.ID, Name: ch.Name}, nil
		}
	}
	return nil, platform.ErrNotFound
}

func (g *Guild) CreateCategory(ctx context.Context, name string) (*platform.Category, error) {
	ch, err := g.dg.GuildChannelCreate(g.id, name, discordgo.ChannelTypeGuildCategory, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("discord: create category %q: %w", name, err)
	}
	return &platform.Category{ID: ch.ID, Name: ch.Name}, nil
}

func (g *Guild) CreateChannel(ctx context.Context, req platform.CreateChannelRequest) (*platform.Channel, error) {
	ch, err := g.dg.GuildChannelCreateComplex(g.id, discordgo.GuildChannelCreateData{
		Name:                 req.Name,
		Type:                 discordgo.ChannelTypeGuildText,
		Topic:                req.Topic,
		ParentID:             req.ParentID,
		PermissionOverwrites: toOverwrites(req.Overwrites),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("discord: create channel %q: %w", req.Name, err)
	}
	return toChannel(ch), nil
}

func (g *Guild) EditChannel(ctx context.Context, channelID string, edit platform.ChannelEdit) (*platform.Channel, error) {
	data := &discordgo.ChannelEdit{}
	if edit.Name != nil {
		data.Name = *edit.Name
	}
	if edit.ParentID != nil {
		data.ParentID = *edit.ParentID
	}
	if edit.Overwrites != nil {
		data.PermissionOverwrites = toOverwrites(edit.Overwrites)
	}
	ch, err := g.dg.ChannelEdit(channelID, data, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("discord: edit channel %s: %w", channelID, err)
	}
	return toChannel(ch), nil
}

func (g *Guild) DeleteChannel(ctx context.Context, channelID string) error {
	if _, err := g.dg.ChannelDelete(channelID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: delete channel %s: %w", channelID, err)
	}
	return nil
}

func (g *Guild) SetOverwrite(ctx context.Context, channelID string, ow platform.Overwrite) error {
	err := g.dg.ChannelPermissionSet(channelID, ow.Principal.ID, overwriteType(ow.Principal.Kind),
		accessBits(ow.Allow), accessBits(ow.Deny), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: set overwrite on %s: %w", channelID, err)
	}
	return nil
}

func (g *Guild) ClearOverwrite(ctx context.Context, channelID, principalID string) error {
	if err := g.dg.ChannelPermissionDelete(channelID, principalID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: clear overwrite on %s: %w", channelID, err)
	}
	return nil
}

func (g *Guild) FindRole(ctx context.Context, name string) (*platform.Role, error) {
	roles, err := g.dg.GuildRoles(g.id, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("discord: list roles: %w", err)
	}
	for _, r := range roles {
		if strings.EqualFold(r.Name, name) {
			return &platform.Role{ID: r.ID, Name: r.Name}, nil
		}
	}
	return nil, platform.ErrNotFound
}

func (g *Guild) ResolveMember(ctx context.Context, userID string) (*platform.Member, error) {
	m, err := g.dg.GuildMember(g.id, userID, discordgo.WithContext(ctx))
	if err != nil {
		if restErr, ok := err.(*discordgo.RESTError); ok && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
			return nil, platform.ErrNotFound
		}
		return nil, fmt.Errorf("discord: member %s: %w", userID, err)
	}
	member := toMember(m)
	return &member, nil
}

func (g *Guild) Messages(ctx context.Context, channelID, afterID string, limit int) ([]platform.Message, error) {
	raw, err := g.dg.ChannelMessages(channelID, limit, "", afterID, "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("discord: messages %s: %w", channelID, err)
	}

	out := make([]platform.Message, 0, len(raw))
	for _, m := range raw {
		msg := platform.Message{
			ID:        m.ID,
			Content:   m.Content,
			Timestamp: m.Timestamp,
		}
		if m.Author != nil {
			msg.AuthorID = m.Author.ID
			msg.AuthorName = userName(m.Author)
		}
		for _, a := range m.Attachments {
			msg.Attachments = append(msg.Attachments, a.URL)
		}
		out = append(out, msg)
	}
	// The REST API serves pages newest-first.
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (g *Guild) Send(ctx context.Context, channelID string, msg platform.Outbound) error {
	_, err := g.dg.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:    msg.Content,
		Components: componentRows(msg.Buttons),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: send to %s: %w", channelID, err)
	}
	return nil
}

// --- conversions ---

func accessBits(a platform.Access) int64 {
	var bits int64
	if a.Read {
		bits |= readBits
	}
	if a.Write {
		bits |= writeBits
	}
	return bits
}

func overwriteType(k platform.PrincipalKind) discordgo.PermissionOverwriteType {
	if k == platform.PrincipalRole {
		return discordgo.PermissionOverwriteTypeRole
	}
	return discordgo.PermissionOverwriteTypeMember
}

func toOverwrites(ows []platform.Overwrite) []*discordgo.PermissionOverwrite {
	out := make([]*discordgo.PermissionOverwrite, 0, len(ows))
	for _, ow := range ows {
		out = append(out, &discordgo.PermissionOverwrite{
			ID:    ow.Principal.ID,
			Type:  overwriteType(ow.Principal.Kind),
			Allow: accessBits(ow.Allow),
			Deny:  accessBits(ow.Deny),
		})
	}
	return out
}

func toChannel(ch *discordgo.Channel) *platform.Channel {
	return &platform.Channel{
		ID:         ch.ID,
		Name:       ch.Name,
		Topic:      ch.Topic,
		CategoryID: ch.ParentID,
	}
}

func toMember(m *discordgo.Member) platform.Member {
	out := platform.Member{
		DisplayName: m.Nick,
		RoleIDs:     m.Roles,
	}
	if m.User != nil {
		out.ID = m.User.ID
		out.Username = m.User.Username
		out.Bot = m.User.Bot
		if out.DisplayName == "" {
			out.DisplayName = m.User.GlobalName
		}
	}
	return out
}

func userName(u *discordgo.User) string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

func buttonStyle(s platform.ButtonStyle) discordgo.ButtonStyle {
	if s == platform.ButtonDanger {
		return discordgo.DangerButton
	}
	return discordgo.SecondaryButton
}

func componentRows(buttons []platform.Button) []discordgo.MessageComponent {
	if len(buttons) == 0 {
		return nil
	}
	row := discordgo.ActionsRow{}
	for _, b := range buttons {
		row.Components = append(row.Components, discordgo.Button{
			Label:    b.Label,
			Style:    buttonStyle(b.Style),
			CustomID: b.ID,
			Disabled: b.Disabled,
		})
	}
	return []discordgo.MessageComponent{row}
}
