package middleware

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/AdamBeresnev/brick-bracket/internal/config"
	"github.com/AdamBeresnev/brick-bracket/internal/httputil"
	"github.com/AdamBeresnev/brick-bracket/internal/store"
	users "github.com/AdamBeresnev/brick-bracket/internal/user"
	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"github.com/markbates/goth"
	"github.com/markbates/goth/providers/discord"
	"github.com/markbates/goth/providers/google"
	"github.com/rs/zerolog"
)

type ContextKey string

const UserIDKey ContextKey = "userID"

// SessionUserKey is the session entry holding the signed in user id.
const SessionUserKey = "userID"

func InitAuth(cfg *config.Config) {
	goth.UseProviders(
		discord.New(cfg.DiscordKey, cfg.DiscordSecret, cfg.DiscordCallbackURL, discord.ScopeIdentify, discord.ScopeEmail),
		google.New(cfg.GoogleKey, cfg.GoogleSecret, cfg.GoogleCallbackURL, "email", "profile"),
	)
}

// LoadIdentity resolves the caller from a bearer token or, failing that, the
// session cookie and puts the user into the request context. Anonymous
// requests pass through untouched; a malformed bearer token is rejected.
func LoadIdentity(sessionManager *scs.SessionManager, tokens *TokenIssuer, userStore *store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := zerolog.Ctx(ctx)

			var userID uuid.UUID
			fromSession := false
			if raw, ok := bearerToken(r); ok {
				id, err := tokens.Parse(raw)
				if err != nil {
					logger.Debug().Err(err).Msg("rejected bearer token")
					httputil.Unauthorized(w, r, "invalid or expired token")
					return
				}
				userID = id
			} else if sessionManager != nil {
				userIDStr := sessionManager.GetString(ctx, SessionUserKey)
				if userIDStr == "" {
					next.ServeHTTP(w, r)
					return
				}
				id, err := uuid.Parse(userIDStr)
				if err != nil {
					sessionManager.Remove(ctx, SessionUserKey)
					next.ServeHTTP(w, r)
					return
				}
				userID = id
				fromSession = true
			} else {
				next.ServeHTTP(w, r)
				return
			}

			user, err := userStore.GetUser(ctx, userID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					if fromSession {
						sessionManager.Remove(ctx, SessionUserKey)
					}
					next.ServeHTTP(w, r)
					return
				}
				httputil.InternalServerError(w, r, "failed to load user", err)
				return
			}

			ctx = context.WithValue(ctx, UserIDKey, user.ID)
			ctx = context.WithValue(ctx, users.UserKey, user)

			// Tag the request logger with the caller
			l := logger.With().Str("user_id", user.ID.String()).Logger()
			ctx = l.WithContext(ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetAuthenticatedUser(r.Context()) == nil {
			httputil.Unauthorized(w, r, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetAuthenticatedUser(r.Context())
		if user == nil {
			httputil.Unauthorized(w, r, "authentication required")
			return
		}
		if !user.IsAdmin {
			httputil.Forbidden(w, r, "administrator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	val := ctx.Value(UserIDKey)
	if val == nil {
		return uuid.Nil, false
	}

	id, ok := val.(uuid.UUID)
	return id, ok
}

func GetAuthenticatedUser(ctx context.Context) *users.User {
	val := ctx.Value(users.UserKey)
	if val == nil {
		return nil
	}
	user, ok := val.(*users.User)
	if !ok {
		return nil
	}
	return user
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
