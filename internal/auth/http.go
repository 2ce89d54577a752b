package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"issueInsightsTracker/models"
)

// UserLookup loads users by id. *repository.UserRepository satisfies it.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

const currentUserKey = "current_user"

// ErrUnknownUser means the token was valid but its user no longer exists.
var ErrUnknownUser = errors.New("user not found")

// ResolveUser parses raw and loads the user it names. Role and email always
// come from the stored user, never from the token.
func ResolveUser(ctx context.Context, tokens *Tokens, users UserLookup, raw string) (*models.User, error) {
	p, err := tokens.Parse(raw)
	if err != nil {
		return nil, err
	}
	u, err := users.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUnknownUser
	}
	return u, nil
}

// RequireUser rejects requests without a valid bearer token for an existing
// user. On success the user is available through CurrentUser.
func RequireUser(tokens *Tokens, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			abortUnauthorized(c, "Not authenticated")
			return
		}
		u, err := ResolveUser(c.Request.Context(), tokens, users, raw)
		if err != nil {
			_ = c.Error(err)
			abortUnauthorized(c, "Could not validate credentials")
			return
		}
		setUser(c, u)
		c.Next()
	}
}

// OptionalUser attaches the user when a valid token is supplied in the
// Authorization header or the "token" query parameter, and lets the request
// through anonymously otherwise.
func OptionalUser(tokens *Tokens, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			raw = c.Query("token")
		}
		if raw != "" {
			if u, err := ResolveUser(c.Request.Context(), tokens, users, raw); err == nil {
				setUser(c, u)
			}
		}
		c.Next()
	}
}

// CurrentUser returns the user attached by RequireUser or OptionalUser.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok && u != nil
}

func setUser(c *gin.Context, u *models.User) {
	c.Set(currentUserKey, u)
}

func abortUnauthorized(c *gin.Context, detail string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": detail})
}
