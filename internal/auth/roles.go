package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/case-service/pkg/util/errorutil"
)

// RequireAdmin ensures the caller has an admin identity.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !identity.Admin {
			return apperrors.NewForbidden("admin access required")
		}
		return c.Next()
	}
}

// RequireIdentity ensures the caller is authenticated.
func RequireIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := IdentityFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
