package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/supabase-community/gotrue-go"
)

// UserIDLocal is the locals key under which the authenticated user id is
// stored for downstream handlers.
const UserIDLocal = "user_id"

// UserResolver turns a bearer token into a user id. Implemented by the
// identity provider in production and by fakes in tests.
type UserResolver interface {
	Resolve(token string) (string, error)
}

// GoTrueResolver resolves tokens against the Supabase auth endpoint.
type GoTrueResolver struct {
	auth gotrue.Client
}

func NewGoTrueResolver(auth gotrue.Client) *GoTrueResolver {
	return &GoTrueResolver{auth: auth}
}

func (r *GoTrueResolver) Resolve(token string) (string, error) {
	user, err := r.auth.WithToken(token).GetUser()
	if err != nil {
		return "", fmt.Errorf("resolving user from token: %w", err)
	}
	return user.ID.String(), nil
}

// RequireUser rejects requests without a valid bearer token and stores the
// resolved user id in locals. Components downstream still receive the id
// explicitly; this middleware only establishes who the caller is.
func RequireUser(resolver UserResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status":  "error",
				"message": "Missing or malformed authorization header",
			})
		}

		userID, err := resolver.Resolve(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status":  "error",
				"message": "Invalid or expired session",
			})
		}

		c.Locals(UserIDLocal, userID)
		return c.Next()
	}
}

// UserID reads the authenticated user id set by RequireUser. Empty when the
// route is not behind the middleware.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(UserIDLocal).(string)
	return id
}
