package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/user"
)

var (
	ErrInvalidCredentials = core.NewUnauthorizedError("invalid credentials")
	ErrInactiveUser       = core.NewForbiddenError("user account is inactive")
	ErrInvalidToken       = core.NewUnauthorizedError("invalid or malformed token")
	ErrSessionExpired     = core.NewUnauthorizedError("session expired")
	ErrSessionEnded       = core.NewUnauthorizedError("session is no longer active")
	ErrSessionNotFound    = core.NewNotFoundError("session not found")
)

// Session is the server-side record of a login. Only a hash of the token is stored.
type Session struct {
	ID           string     `db:"SessionId" json:"id"`
	UserID       string     `db:"UserId" json:"user_id"`
	TokenHash    string     `db:"TokenHash" json:"-"`
	IPAddress    string     `db:"IPAddress" json:"ip_address"`
	UserAgent    string     `db:"UserAgent" json:"user_agent"`
	CreatedAt    time.Time  `db:"CreatedAt" json:"created_at"`
	LastActivity time.Time  `db:"LastActivity" json:"last_activity"`
	ExpiresAt    time.Time  `db:"ExpiresAt" json:"expires_at"`
	IsActive     bool       `db:"IsActive" json:"is_active"`
	EndedAt      *time.Time `db:"EndedAt" json:"ended_at"`
}

// Claims are the JWT claims minted at login. RegisteredClaims.Subject holds the user ID.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
	Username  string `json:"username"`
	Role      string `json:"role"`
}

func (c *Claims) UserID() string { return c.Subject }

// HasRole reports whether the token holder has one of roles.
func (c *Claims) HasRole(roles ...string) bool {
	for _, role := range roles {
		if c.Role == role {
			return true
		}
	}
	return false
}

type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (c *Credentials) Validate() error {
	c.Username = core.CleanString(c.Username, true /* lower */)
	return core.Validate.Struct(c)
}

// LoginResult is handed back to clients after a login or a refresh.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      user.User `json:"user"`
}
