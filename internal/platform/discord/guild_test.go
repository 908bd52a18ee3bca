package discord

import (
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/tickd-io/tickd/internal/platform"
	"github.com/tickd-io/tickd/internal/ticket"
)

func TestAccessBits(t *testing.T) {
	if got := accessBits(platform.Access{}); got != 0 {
		t.Errorf("empty access = %d", got)
	}
	read := accessBits(platform.Access{Read: true})
	if read&discordgo.PermissionViewChannel == 0 || read&discordgo.PermissionReadMessageHistory == 0 {
		t.Errorf("read bits missing view/history: %d", read)
	}
	if read&discordgo.PermissionSendMessages != 0 {
		t.Errorf("read bits include send: %d", read)
	}
	rw := accessBits(platform.Access{Read: true, Write: true})
	if rw&discordgo.PermissionSendMessages == 0 || rw&discordgo.PermissionAttachFiles == 0 {
		t.Errorf("write bits missing send/attach: %d", rw)
	}
}

func TestToOverwrites(t *testing.T) {
	ows := toOverwrites([]platform.Overwrite{
		{
			Principal: platform.Principal{ID: "g1", Kind: platform.PrincipalRole},
			Deny:      platform.Access{Read: true},
		},
		{
			Principal: platform.Principal{ID: "u1", Kind: platform.PrincipalMember},
			Allow:     platform.Access{Read: true, Write: true},
		},
	})
	if len(ows) != 2 {
		t.Fatalf("got %d overwrites", len(ows))
	}
	if ows[0].Type != discordgo.PermissionOverwriteTypeRole || ows[0].Deny&discordgo.PermissionViewChannel == 0 {
		t.Errorf("role overwrite wrong: %+v", ows[0])
	}
	if ows[1].Type != discordgo.PermissionOverwriteTypeMember || ows[1].Allow&discordgo.PermissionSendMessages == 0 {
		t.Errorf("member overwrite wrong: %+v", ows[1])
	}
}

func TestToMember(t *testing.T) {
	m := toMember(&discordgo.Member{
		Nick:  "Janey",
		Roles: []string{"r1", "r2"},
		User:  &discordgo.User{ID: "u1", Username: "jane", GlobalName: "Jane Doe"},
	})
	if m.ID != "u1" || m.DisplayName != "Janey" || len(m.RoleIDs) != 2 {
		t.Errorf("member = %+v", m)
	}

	// Nickname absent falls back to the global display name.
	m = toMember(&discordgo.Member{User: &discordgo.User{ID: "u2", Username: "bob", GlobalName: "Bob"}})
	if m.DisplayName != "Bob" {
		t.Errorf("display name = %q", m.DisplayName)
	}
}

func TestComponentRows(t *testing.T) {
	if rows := componentRows(nil); rows != nil {
		t.Errorf("expected nil rows for no buttons")
	}

	rows := componentRows(ticket.ControlButtons())
	if len(rows) != 1 {
		t.Fatalf("got %d rows", len(rows))
	}
	row, ok := rows[0].(discordgo.ActionsRow)
	if !ok || len(row.Components) != 2 {
		t.Fatalf("unexpected row %+v", rows[0])
	}
	btn, ok := row.Components[0].(discordgo.Button)
	if !ok || btn.CustomID != ticket.ComponentClose || btn.Style != discordgo.DangerButton {
		t.Errorf("close button = %+v", row.Components[0])
	}
}

func TestUserMessage(t *testing.T) {
	for _, err := range []error{
		ticket.ErrNotInGuild,
		ticket.ErrNotTicketChannel,
		ticket.ErrBotParticipant,
		ticket.ErrNotStaff,
		ticket.ErrConfirmExpired,
		ticket.ErrUnknownComponent,
	} {
		if msg, ok := userMessage(err); !ok || msg == "" {
			t.Errorf("no user message for %v", err)
		}
	}
	if _, ok := userMessage(errors.New("boom")); ok {
		t.Error("unexpected user message for internal error")
	}
}
