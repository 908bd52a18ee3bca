package platform

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by lookups when the named entity does not exist.
var ErrNotFound = errors.New("platform: not found")

// Session resolves guild handles for a connected chat platform.
type Session interface {
	// Guild returns a handle for the given guild ID.
	Guild(id string) (Guild, error)
	// BotUserID returns the connected bot's own user ID.
	BotUserID() string
}

// Guild is the collaborator surface the ticket core consumes. Implementations
// wrap a platform SDK (see the discord subpackage); tests use an in-memory fake.
type Guild interface {
	ID() string

	// FindCategory looks up a channel category by display name.
	// Returns ErrNotFound when no category has that name.
	FindCategory(ctx context.Context, name string) (*Category, error)
	CreateCategory(ctx context.Context, name string) (*Category, error)

	CreateChannel(ctx context.Context, req CreateChannelRequest) (*Channel, error)
	// EditChannel applies the non-nil fields of edit to the channel.
	EditChannel(ctx context.Context, channelID string, edit ChannelEdit) (*Channel, error)
	DeleteChannel(ctx context.Context, channelID string) error

	// SetOverwrite grants or denies read/write on a channel for a principal.
	SetOverwrite(ctx context.Context, channelID string, ow Overwrite) error
	// ClearOverwrite removes every overwrite for the principal on the channel.
	ClearOverwrite(ctx context.Context, channelID, principalID string) error

	// FindRole looks up a role by display name. Returns ErrNotFound when absent.
	FindRole(ctx context.Context, name string) (*Role, error)
	// ResolveMember fetches a guild member by user ID. May require a remote
	// fetch; returns ErrNotFound for unknown members.
	ResolveMember(ctx context.Context, userID string) (*Member, error)

	// Messages returns up to limit messages newer than afterID, oldest first.
	// An empty afterID starts at the beginning of the channel's history.
	Messages(ctx context.Context, channelID, afterID string, limit int) ([]Message, error)

	// Send posts a message, optionally with a row of buttons, to a channel.
	Send(ctx context.Context, channelID string, msg Outbound) error

	// EveryoneID returns the principal ID of the guild's default role.
	EveryoneID() string
}

// Category is a channel container identified by display name.
type Category struct {
	ID   string
	Name string
}

// Role is a guild role.
type Role struct {
	ID   string
	Name string
}

// Member is a resolved guild member.
type Member struct {
	ID          string
	Username    string
	DisplayName string
	Bot         bool
	RoleIDs     []string
}

// Name returns the member's display name, falling back to the username.
func (m Member) Name() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.Username
}

// Channel is a text channel handle.
type Channel struct {
	ID         string
	Name       string
	Topic      string
	CategoryID string
}

// Message is one entry of a channel's history.
type Message struct {
	ID          string
	AuthorID    string
	AuthorName  string
	Content     string
	Timestamp   time.Time
	Attachments []string // attachment URLs
}

// PrincipalKind distinguishes member and role permission principals.
type PrincipalKind int

const (
	PrincipalMember PrincipalKind = iota
	PrincipalRole
)

// Principal identifies the target of a permission overwrite.
type Principal struct {
	ID   string
	Kind PrincipalKind
}

// Access is the read/write permission pair the ticket core works with.
type Access struct {
	Read  bool
	Write bool
}

// Overwrite is an explicit permission grant/denial for one principal.
type Overwrite struct {
	Principal Principal
	Allow     Access
	Deny      Access
}

// CreateChannelRequest describes a channel to provision.
type CreateChannelRequest struct {
	Name       string
	Topic      string
	ParentID   string // category ID, empty for none
	Overwrites []Overwrite
}

// ChannelEdit holds the mutable channel fields. Nil pointers are left
// unchanged; a non-nil Overwrites slice replaces the full overwrite set.
type ChannelEdit struct {
	Name       *string
	ParentID   *string
	Overwrites []Overwrite
}

// Button is an interactive component attached to an outbound message.
type Button struct {
	ID       string
	Label    string
	Style    ButtonStyle
	Disabled bool
}

// ButtonStyle selects the platform's rendering of a button.
type ButtonStyle int

const (
	ButtonSecondary ButtonStyle = iota
	ButtonDanger
)

// Outbound is a message sent into a channel.
type Outbound struct {
	Content string
	Buttons []Button
}
