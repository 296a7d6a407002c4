package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/codearena-api/internal/utils"
)

// RoleAdmin passes every role check.
const RoleAdmin = "admin"

// RequireRole lets the request through when the caller's role is one of roles or admin.
// It runs after the JWT middleware, so a missing role means the token carried none.
func RequireRole(roles ...string) fiber.Handler {
	allowed := map[string]struct{}{RoleAdmin: {}}
	for _, role := range roles {
		if normalized := normalizeRoleValue(role); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		role := normalizeRoleValue(c.Locals(LocalUserRole))
		if role == "" {
			return utils.Fail(c, fiber.StatusForbidden, "role required", fiber.Map{"allowed": roleList(allowed)})
		}
		if _, ok := allowed[role]; !ok {
			return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", fiber.Map{"role": role})
		}
		return c.Next()
	}
}

func roleList(allowed map[string]struct{}) []string {
	roles := make([]string, 0, len(allowed))
	for role := range allowed {
		roles = append(roles, role)
	}
	return roles
}

func normalizeRoleValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case fmt.Stringer:
		return strings.ToLower(strings.TrimSpace(v.String()))
	default:
		return strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", value)))
	}
}
