package profile

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"resumepersona/backend/handlers/response"
	"resumepersona/backend/services/persona"
	"resumepersona/backend/services/session"
)

type Store interface {
	GetProfile(ctx context.Context, userID string) (*persona.Profile, error)
	UpdateProfileNames(ctx context.Context, userID, firstName, lastName string) (*persona.Profile, error)
}

// GetMyProfileHandler returns the signed-in user's profile.
func GetMyProfileHandler(store Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session.FromContext(r.Context())
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		p, err := store.GetProfile(r.Context(), s.UserID)
		if errors.Is(err, persona.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "Profile not found")
			return
		} else if err != nil {
			logger.Error("load profile failed", zap.String("user_id", s.UserID), zap.Error(err))
			response.Error(w, http.StatusInternalServerError, "Database error")
			return
		}
		response.JSON(w, http.StatusOK, p)
	}
}

// UpdateProfileHandler sets first and last name. Both are required because
// persona creation reads them from the profile.
func UpdateProfileHandler(store Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session.FromContext(r.Context())
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req UpdateProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		req.FirstName = strings.TrimSpace(req.FirstName)
		req.LastName = strings.TrimSpace(req.LastName)

		fields := map[string]string{}
		if req.FirstName == "" {
			fields["first_name"] = "First name is required."
		}
		if req.LastName == "" {
			fields["last_name"] = "Last name is required."
		}
		if len(fields) > 0 {
			response.JSON(w, http.StatusBadRequest, response.ErrorResponse{Error: "Please correct the highlighted fields.", Fields: fields})
			return
		}

		p, err := store.UpdateProfileNames(r.Context(), s.UserID, req.FirstName, req.LastName)
		if errors.Is(err, persona.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "Profile not found")
			return
		} else if err != nil {
			logger.Error("update profile failed", zap.String("user_id", s.UserID), zap.Error(err))
			response.Error(w, http.StatusInternalServerError, "Failed to update profile")
			return
		}
		response.JSON(w, http.StatusOK, p)
	}
}
