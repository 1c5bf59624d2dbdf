package user

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"resumepersona/backend/handlers/response"
	"resumepersona/backend/services/identity"
	"resumepersona/backend/services/persona"
	"resumepersona/backend/services/session"
)

type Accounts interface {
	Get(ctx context.Context, id string) (*identity.User, error)
}

type Profiles interface {
	GetProfile(ctx context.Context, userID string) (*persona.Profile, error)
}

// GetMeHandler returns the signed-in identity and its profile.
func GetMeHandler(accounts Accounts, profiles Profiles, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session.FromContext(r.Context())
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		u, err := accounts.Get(r.Context(), s.UserID)
		if errors.Is(err, identity.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "User not found")
			return
		} else if err != nil {
			logger.Error("load user failed", zap.String("user_id", s.UserID), zap.Error(err))
			response.Error(w, http.StatusInternalServerError, "Database error")
			return
		}

		p, err := profiles.GetProfile(r.Context(), s.UserID)
		if err != nil && !errors.Is(err, persona.ErrNotFound) {
			logger.Error("load profile failed", zap.String("user_id", s.UserID), zap.Error(err))
			response.Error(w, http.StatusInternalServerError, "Database error")
			return
		}

		response.JSON(w, http.StatusOK, MeResponse{User: u, Profile: p})
	}
}
