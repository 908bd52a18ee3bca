package ticket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/tickd-io/tickd/internal/platform"
	"github.com/tickd-io/tickd/internal/transcript"
)

// maxRenameLen is the platform's hard channel-name limit, applied to the
// "closed-" rename on archival.
const maxRenameLen = 100

// ClosePolicy selects the terminal transition of a confirmed close.
type ClosePolicy string

const (
	// CloseDelete deletes the channel outright.
	CloseDelete ClosePolicy = "delete"
	// CloseArchive renames the channel, moves it to the archive category,
	// and locks it down as a read-only record.
	CloseArchive ClosePolicy = "archive"
)

// Options configures a Manager.
type Options struct {
	CategoryName        string // active-tickets category display name
	ArchiveCategoryName string
	StaffRoleName       string
	ClosePolicy         ClosePolicy
	ConfirmTTL          time.Duration
}

// Exporter produces transcript artifacts. Implemented by transcript.Exporter.
type Exporter interface {
	Export(ctx context.Context, src transcript.Source, ch *platform.Channel) (path string, count int, err error)
}

// Invocation carries the context of a user-triggered command or component click.
type Invocation struct {
	GuildID string
	Channel *platform.Channel // channel the interaction happened in, nil for DMs
	Invoker platform.Member
}

// CreateResult is the outcome of a successful ticket creation.
type CreateResult struct {
	Number  int
	Channel *platform.Channel
}

// Confirmation is a pending close prompt.
type Confirmation struct {
	Token     string
	ExpiresAt time.Time
}

// CloseResult is the outcome of a confirmed close.
type CloseResult struct {
	Policy    ClosePolicy
	ChannelID string
}

// Manager is the ticket lifecycle controller. It owns the number sequence,
// the close-confirmation table, the component dispatch table, and the owner
// side-table; channel provisioning and mutation are delegated to the
// platform collaborator.
type Manager struct {
	session    platform.Session
	seq        *Sequence
	store      Store
	exporter   Exporter
	confirms   *ConfirmTable
	opts       Options
	logger     *slog.Logger
	components map[string]componentHandler
}

// New creates a Manager. Missing option fields get defaults; logger may be nil.
func New(session platform.Session, seq *Sequence, store Store, exporter Exporter, opts Options, logger *slog.Logger) *Manager {
	if opts.CategoryName == "" {
		opts.CategoryName = "Tickets"
	}
	if opts.ArchiveCategoryName == "" {
		opts.ArchiveCategoryName = "Tickets-Archive"
	}
	if opts.StaffRoleName == "" {
		opts.StaffRoleName = "Staff"
	}
	if opts.ClosePolicy == "" {
		opts.ClosePolicy = CloseArchive
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		session:  session,
		seq:      seq,
		store:    store,
		exporter: exporter,
		confirms: NewConfirmTable(opts.ConfirmTTL),
		opts:     opts,
		logger:   logger,
	}
	m.components = map[string]componentHandler{
		ComponentClose:      m.closeComponent,
		ComponentTranscribe: m.transcribeComponent,
		componentConfirm:    m.confirmComponent,
	}
	return m
}

// Create provisions a new ticket channel for the invoker. The no-guild check
// runs before the counter increment; a failure after the increment
// permanently skips that ticket number.
func (m *Manager) Create(ctx context.Context, inv Invocation, topic string) (*CreateResult, error) {
	g, err := m.guild(inv)
	if err != nil {
		return nil, err
	}

	number := m.seq.Next()
	name := ChannelName(topic, inv.Invoker.Name(), number)

	cat, err := m.findOrCreateCategory(ctx, g, m.opts.CategoryName)
	if err != nil {
		return nil, fmt.Errorf("ticket: create #%d: %w", number, err)
	}

	overwrites := []platform.Overwrite{
		{
			Principal: platform.Principal{ID: g.EveryoneID(), Kind: platform.PrincipalRole},
			Deny:      platform.Access{Read: true},
		},
		{
			Principal: platform.Principal{ID: inv.Invoker.ID, Kind: platform.PrincipalMember},
			Allow:     platform.Access{Read: true, Write: true},
		},
	}
	staff, err := m.staffRole(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("ticket: create #%d: %w", number, err)
	}
	if staff != nil {
		overwrites = append(overwrites, platform.Overwrite{
			Principal: platform.Principal{ID: staff.ID, Kind: platform.PrincipalRole},
			Allow:     platform.Access{Read: true, Write: true},
		})
	}

	ch, err := g.CreateChannel(ctx, platform.CreateChannelRequest{
		Name:       name,
		Topic:      ownerTopic(inv.Invoker),
		ParentID:   cat.ID,
		Overwrites: overwrites,
	})
	if err != nil {
		return nil, fmt.Errorf("ticket: create #%d: provision channel: %w", number, err)
	}

	if err := m.store.Save(&Record{
		ChannelID:   ch.ID,
		Number:      number,
		OwnerID:     inv.Invoker.ID,
		OwnerName:   inv.Invoker.Name(),
		Topic:       topic,
		ChannelName: ch.Name,
		Status:      StatusOpen,
		CreatedAt:   time.Now(),
	}); err != nil {
		// The channel exists; archival falls back to topic parsing.
		m.logger.Error("ticket record save failed", "channel", ch.ID, "number", number, "error", err)
	}

	welcome := welcomeMessage(inv.Invoker, topic, number)
	if err := g.Send(ctx, ch.ID, platform.Outbound{Content: welcome, Buttons: ControlButtons()}); err != nil {
		m.logger.Warn("welcome message failed", "channel", ch.ID, "error", err)
	}

	m.logger.Info("ticket created", "number", number, "channel", ch.ID, "owner", inv.Invoker.ID, "name", ch.Name)
	return &CreateResult{Number: number, Channel: ch}, nil
}

// RequestClose verifies the invoking channel is an active ticket and
// registers a confirmation prompt. The ticket itself is untouched until
// the prompt is confirmed.
func (m *Manager) RequestClose(ctx context.Context, inv Invocation) (*Confirmation, error) {
	g, err := m.guild(inv)
	if err != nil {
		return nil, err
	}
	if err := m.requireTicketChannel(ctx, g, inv.Channel); err != nil {
		return nil, err
	}

	token, expires := m.confirms.Add(inv.Channel, inv.Invoker.ID)
	m.logger.Debug("close requested", "channel", inv.Channel.ID, "invoker", inv.Invoker.ID)
	return &Confirmation{Token: token, ExpiresAt: expires}, nil
}

// ConfirmClose consumes the confirmation token and performs the terminal
// transition per the close policy. A token that was already consumed or has
// timed out returns ErrConfirmExpired and mutates nothing.
func (m *Manager) ConfirmClose(ctx context.Context, inv Invocation, token string) (*CloseResult, error) {
	g, err := m.guild(inv)
	if err != nil {
		return nil, err
	}

	ch, ok := m.confirms.Consume(token)
	if !ok {
		return nil, ErrConfirmExpired
	}

	switch m.opts.ClosePolicy {
	case CloseDelete:
		if err := g.DeleteChannel(ctx, ch.ID); err != nil {
			return nil, fmt.Errorf("ticket: close %s: %w", ch.ID, err)
		}
		if err := m.store.SetStatus(ch.ID, StatusDeleted); err != nil {
			m.logger.Warn("ticket record update failed", "channel", ch.ID, "error", err)
		}
	case CloseArchive:
		if err := m.archive(ctx, g, ch); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("ticket: unknown close policy %q", m.opts.ClosePolicy)
	}

	m.logger.Info("ticket closed", "channel", ch.ID, "policy", string(m.opts.ClosePolicy))
	return &CloseResult{Policy: m.opts.ClosePolicy, ChannelID: ch.ID}, nil
}

// AddParticipant grants the target read/write access to the ticket channel.
func (m *Manager) AddParticipant(ctx context.Context, inv Invocation, target platform.Member) error {
	g, err := m.guild(inv)
	if err != nil {
		return err
	}
	if target.Bot || target.ID == m.session.BotUserID() {
		return ErrBotParticipant
	}
	if err := m.requireTicketChannel(ctx, g, inv.Channel); err != nil {
		return err
	}

	ow := platform.Overwrite{
		Principal: platform.Principal{ID: target.ID, Kind: platform.PrincipalMember},
		Allow:     platform.Access{Read: true, Write: true},
	}
	if err := g.SetOverwrite(ctx, inv.Channel.ID, ow); err != nil {
		return fmt.Errorf("ticket: add participant %s: %w", target.ID, err)
	}
	m.logger.Info("participant added", "channel", inv.Channel.ID, "user", target.ID)
	return nil
}

// RemoveParticipant fully clears the target's overwrites on the ticket channel.
func (m *Manager) RemoveParticipant(ctx context.Context, inv Invocation, target platform.Member) error {
	g, err := m.guild(inv)
	if err != nil {
		return err
	}
	if target.Bot || target.ID == m.session.BotUserID() {
		return ErrBotParticipant
	}
	if err := m.requireTicketChannel(ctx, g, inv.Channel); err != nil {
		return err
	}

	if err := g.ClearOverwrite(ctx, inv.Channel.ID, target.ID); err != nil {
		return fmt.Errorf("ticket: remove participant %s: %w", target.ID, err)
	}
	m.logger.Info("participant removed", "channel", inv.Channel.ID, "user", target.ID)
	return nil
}

// Transcribe exports the ticket channel's history to a text artifact and
// returns its path and message count.
func (m *Manager) Transcribe(ctx context.Context, inv Invocation) (string, int, error) {
	g, err := m.guild(inv)
	if err != nil {
		return "", 0, err
	}
	if err := m.requireTicketChannel(ctx, g, inv.Channel); err != nil {
		return "", 0, err
	}
	return m.exporter.Export(ctx, g, inv.Channel)
}

// IsStaff reports whether the invoker holds the staff role. A missing staff
// role means nobody is staff.
func (m *Manager) IsStaff(ctx context.Context, inv Invocation) (bool, error) {
	g, err := m.guild(inv)
	if err != nil {
		return false, err
	}
	role, err := m.staffRole(ctx, g)
	if err != nil || role == nil {
		return false, err
	}
	return slices.Contains(inv.Invoker.RoleIDs, role.ID), nil
}

// RequireStaff is the boundary check for staff-gated commands.
func (m *Manager) RequireStaff(ctx context.Context, inv Invocation) error {
	ok, err := m.IsStaff(ctx, inv)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotStaff
	}
	return nil
}

// SweepConfirmations drops expired and consumed confirmation entries.
func (m *Manager) SweepConfirmations() int {
	n := m.confirms.Sweep()
	if n > 0 {
		m.logger.Debug("confirmations swept", "removed", n)
	}
	return n
}

// --- component dispatch ---

// ComponentKind tags the outcome the binding should render.
type ComponentKind int

const (
	ComponentConfirmPrompt ComponentKind = iota
	ComponentClosed
	ComponentTranscript
)

// ComponentResult is the outcome of a control-surface interaction.
type ComponentResult struct {
	Kind            ComponentKind
	Confirmation    *Confirmation
	Closed          *CloseResult
	TranscriptPath  string
	TranscriptCount int
}

type componentHandler func(ctx context.Context, inv Invocation, arg string) (*ComponentResult, error)

// Component dispatches a control-surface interaction by its component ID.
func (m *Manager) Component(ctx context.Context, inv Invocation, componentID string) (*ComponentResult, error) {
	name, arg := splitComponentID(componentID)
	h, ok := m.components[name]
	if !ok {
		return nil, ErrUnknownComponent
	}
	return h(ctx, inv, arg)
}

func (m *Manager) closeComponent(ctx context.Context, inv Invocation, _ string) (*ComponentResult, error) {
	if err := m.RequireStaff(ctx, inv); err != nil {
		return nil, err
	}
	c, err := m.RequestClose(ctx, inv)
	if err != nil {
		return nil, err
	}
	return &ComponentResult{Kind: ComponentConfirmPrompt, Confirmation: c}, nil
}

func (m *Manager) transcribeComponent(ctx context.Context, inv Invocation, _ string) (*ComponentResult, error) {
	if err := m.RequireStaff(ctx, inv); err != nil {
		return nil, err
	}
	path, count, err := m.Transcribe(ctx, inv)
	if err != nil {
		return nil, err
	}
	return &ComponentResult{Kind: ComponentTranscript, TranscriptPath: path, TranscriptCount: count}, nil
}

func (m *Manager) confirmComponent(ctx context.Context, inv Invocation, token string) (*ComponentResult, error) {
	res, err := m.ConfirmClose(ctx, inv, token)
	if err != nil {
		return nil, err
	}
	return &ComponentResult{Kind: ComponentClosed, Closed: res}, nil
}

// --- internals ---

func (m *Manager) guild(inv Invocation) (platform.Guild, error) {
	if inv.GuildID == "" {
		return nil, ErrNotInGuild
	}
	g, err := m.session.Guild(inv.GuildID)
	if err != nil {
		return nil, fmt.Errorf("ticket: guild %s: %w", inv.GuildID, err)
	}
	return g, nil
}

// requireTicketChannel rejects operations invoked outside the active-tickets
// category.
func (m *Manager) requireTicketChannel(ctx context.Context, g platform.Guild, ch *platform.Channel) error {
	if ch == nil || ch.CategoryID == "" {
		return ErrNotTicketChannel
	}
	cat, err := g.FindCategory(ctx, m.opts.CategoryName)
	if errors.Is(err, platform.ErrNotFound) {
		return ErrNotTicketChannel
	}
	if err != nil {
		return fmt.Errorf("ticket: category lookup: %w", err)
	}
	if ch.CategoryID != cat.ID {
		return ErrNotTicketChannel
	}
	return nil
}

// findOrCreateCategory looks the category up by display name on every call;
// the duplicate-create race on first use is an accepted gap.
func (m *Manager) findOrCreateCategory(ctx context.Context, g platform.Guild, name string) (*platform.Category, error) {
	cat, err := g.FindCategory(ctx, name)
	if err == nil {
		return cat, nil
	}
	if !errors.Is(err, platform.ErrNotFound) {
		return nil, err
	}
	return g.CreateCategory(ctx, name)
}

// staffRole resolves the staff role, returning (nil, nil) when it does not exist.
func (m *Manager) staffRole(ctx context.Context, g platform.Guild) (*platform.Role, error) {
	role, err := g.FindRole(ctx, m.opts.StaffRoleName)
	if errors.Is(err, platform.ErrNotFound) {
		m.logger.Warn("staff role not found", "role", m.opts.StaffRoleName)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ticket: staff role lookup: %w", err)
	}
	return role, nil
}

func (m *Manager) archive(ctx context.Context, g platform.Guild, ch *platform.Channel) error {
	ownerID := m.resolveOwner(ctx, g, ch)

	arch, err := m.findOrCreateCategory(ctx, g, m.opts.ArchiveCategoryName)
	if err != nil {
		return fmt.Errorf("ticket: archive %s: %w", ch.ID, err)
	}

	overwrites := []platform.Overwrite{
		{
			Principal: platform.Principal{ID: g.EveryoneID(), Kind: platform.PrincipalRole},
			Deny:      platform.Access{Read: true, Write: true},
		},
	}
	staff, err := m.staffRole(ctx, g)
	if err != nil {
		return fmt.Errorf("ticket: archive %s: %w", ch.ID, err)
	}
	if staff != nil {
		overwrites = append(overwrites, platform.Overwrite{
			Principal: platform.Principal{ID: staff.ID, Kind: platform.PrincipalRole},
			Allow:     platform.Access{Read: true},
			Deny:      platform.Access{Write: true},
		})
	}
	if ownerID != "" {
		overwrites = append(overwrites, platform.Overwrite{
			Principal: platform.Principal{ID: ownerID, Kind: platform.PrincipalMember},
			Deny:      platform.Access{Read: true, Write: true},
		})
	}

	name := archivedName(ch.Name)
	if _, err := g.EditChannel(ctx, ch.ID, platform.ChannelEdit{
		Name:       &name,
		ParentID:   &arch.ID,
		Overwrites: overwrites,
	}); err != nil {
		return fmt.Errorf("ticket: archive %s: %w", ch.ID, err)
	}

	if err := g.Send(ctx, ch.ID, platform.Outbound{
		Content: "This ticket has been archived. The channel is now a read-only record.",
	}); err != nil {
		m.logger.Warn("archive notice failed", "channel", ch.ID, "error", err)
	}
	if err := m.store.SetStatus(ch.ID, StatusArchived); err != nil {
		m.logger.Warn("ticket record update failed", "channel", ch.ID, "error", err)
	}
	return nil
}

var topicOwnerRe = regexp.MustCompile(`\(ID: ([0-9]+)\)\s*$`)

// resolveOwner finds the ticket owner for archival revocation: side-table
// first, then the legacy topic-metadata fallback. Any failure is tolerated
// and archival proceeds without owner revocation.
func (m *Manager) resolveOwner(ctx context.Context, g platform.Guild, ch *platform.Channel) string {
	ownerID := ""
	if rec, err := m.store.GetByChannel(ch.ID); err == nil {
		ownerID = rec.OwnerID
	} else if match := topicOwnerRe.FindStringSubmatch(ch.Topic); match != nil {
		ownerID = match[1]
	}
	if ownerID == "" {
		m.logger.Warn("ticket owner unresolved, archiving without owner revocation", "channel", ch.ID)
		return ""
	}
	if _, err := g.ResolveMember(ctx, ownerID); err != nil {
		m.logger.Warn("ticket owner not resolvable, archiving without owner revocation",
			"channel", ch.ID, "owner", ownerID, "error", err)
		return ""
	}
	return ownerID
}

// ownerTopic encodes the requester into the channel topic. Kept alongside the
// side-table so archival still works for channels whose record was lost.
func ownerTopic(member platform.Member) string {
	return fmt.Sprintf("Ticket created by %s (ID: %s)", member.Name(), member.ID)
}

func welcomeMessage(member platform.Member, topic string, number int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Welcome %s! Your ticket", platform.MentionUser(member.ID))
	if topic != "" {
		fmt.Fprintf(&b, " for %q", topic)
	}
	fmt.Fprintf(&b, " (Ticket #%d) has been created. A staff member will be with you shortly.", number)
	return b.String()
}

func archivedName(name string) string {
	renamed := "closed-" + name
	if r := []rune(renamed); len(r) > maxRenameLen {
		renamed = string(r[:maxRenameLen])
	}
	return renamed
}
