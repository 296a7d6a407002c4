package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/codearena-api/internal/utils"
)

// Auth role constants used by WithAuth helper.
const (
	AuthRoleAny         = "any"
	AuthRoleOrganizer   = "organizer"
	AuthRoleParticipant = "participant"
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	Role string
	// AllowAnonymous lets unauthenticated callers through AuthRoleAny routes.
	AllowAnonymous bool
}

// WithAuth wraps a handler with per-route guards. Roles are ordered participant < organizer
// < admin, and a token without a role counts as a participant.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}
	requireUser := !opts.AllowAnonymous || role != AuthRoleAny
	minimum := roleRank(role)

	return func(c *fiber.Ctx) error {
		if requireUser && c.Locals(LocalUserID) == nil {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}
		if role == AuthRoleAny {
			return handler(c)
		}

		current := normalizeRoleValue(c.Locals(LocalUserRole))
		if current == "" {
			current = AuthRoleParticipant
		}
		if rank := roleRank(current); rank == 0 || rank < minimum {
			return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
		}

		return handler(c)
	}
}
