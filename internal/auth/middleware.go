package auth

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/case-service/internal/domain"
	apperrors "github.com/spec-kit/case-service/pkg/util/errorutil"
)

const identityKey = "auth_identity"

// AdminSubjectID is the subject recorded when the static admin secret is used.
const AdminSubjectID = "admin"

// Authenticator turns bearer credentials into an acting identity.
type Authenticator struct {
	tokens      *TokenManager
	adminEmail  string
	adminSecret string
}

// NewAuthenticator constructs the auth provider.
func NewAuthenticator(tokens *TokenManager, adminEmail, adminSecret string) *Authenticator {
	return &Authenticator{
		tokens:      tokens,
		adminEmail:  strings.ToLower(strings.TrimSpace(adminEmail)),
		adminSecret: adminSecret,
	}
}

// Authenticate verifies a bearer credential. The admin secret and JWTs issued to the admin email both yield an admin identity.
func (a *Authenticator) Authenticate(bearer string) (domain.Identity, error) {
	bearer = strings.TrimSpace(bearer)
	if bearer == "" {
		return domain.Identity{}, apperrors.NewUnauthorized("missing credentials")
	}
	if a.adminSecret != "" && subtle.ConstantTimeCompare([]byte(bearer), []byte(a.adminSecret)) == 1 {
		return domain.Identity{SubjectID: AdminSubjectID, Email: a.adminEmail, Admin: true}, nil
	}

	claims, err := a.tokens.ParseToken(bearer)
	if err != nil {
		return domain.Identity{}, apperrors.NewUnauthorized("invalid token")
	}
	email := strings.ToLower(claims.Email)
	return domain.Identity{
		SubjectID: claims.Subject,
		Email:     email,
		Admin:     a.adminEmail != "" && email == a.adminEmail,
	}, nil
}

// Handle enforces authentication for protected routes.
// EventSource clients cannot set headers, so an access_token query parameter is accepted as well.
func (a *Authenticator) Handle(c *fiber.Ctx) error {
	var bearer string
	if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return apperrors.NewUnauthorized("invalid authorization header")
		}
		bearer = parts[1]
	} else {
		bearer = c.Query("access_token")
	}

	identity, err := a.Authenticate(bearer)
	if err != nil {
		return err
	}
	c.Locals(identityKey, identity)
	return c.Next()
}

// IdentityFromContext retrieves the authenticated caller.
func IdentityFromContext(c *fiber.Ctx) (domain.Identity, bool) {
	identity, ok := c.Locals(identityKey).(domain.Identity)
	return identity, ok
}
