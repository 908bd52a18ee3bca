package ticket

import "errors"

// Sentinel errors for user-facing rejections. The interaction boundary maps
// these to ephemeral replies; anything else is logged and reported as a
// generic failure.
var (
	// ErrNotInGuild is returned when an operation is invoked outside a server.
	ErrNotInGuild = errors.New("ticket: not in a guild")
	// ErrNotTicketChannel is returned when an operation is invoked in a
	// channel that is not under the active-tickets category.
	ErrNotTicketChannel = errors.New("ticket: not a ticket channel")
	// ErrBotParticipant is returned when add/remove targets the bot itself.
	ErrBotParticipant = errors.New("ticket: cannot manage the bot as a participant")
	// ErrNotStaff is returned when the invoker lacks the staff role.
	ErrNotStaff = errors.New("ticket: staff role required")
	// ErrConfirmExpired is returned when a close confirmation token is
	// unknown, already used, or past its timeout.
	ErrConfirmExpired = errors.New("ticket: close confirmation expired")
	// ErrUnknownComponent is returned for component IDs the manager does not own.
	ErrUnknownComponent = errors.New("ticket: unknown component")
)
