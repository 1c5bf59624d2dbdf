package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"resumepersona/backend/handlers/response"
	"resumepersona/backend/services/identity"
	"resumepersona/backend/services/persona"
	"resumepersona/backend/services/provisioning"
	"resumepersona/backend/services/session"
)

// Workflow is the part of provisioning.Workflow the auth routes use.
type Workflow interface {
	Register(ctx context.Context, in provisioning.RegisterInput) (*provisioning.Result, error)
	SignIn(ctx context.Context, email, password string) (*session.Session, error)
	SignOut(ctx context.Context, s *session.Session) error
}

type Confirmer interface {
	Confirm(ctx context.Context, token string) (string, error)
}

type SignupRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	ResumeText string `json:"resume_text"`
	APIKey     string `json:"api_key"`
	IsPublic   bool   `json:"is_public"`
	RedirectTo string `json:"redirect_to"`
}

type SignupResponse struct {
	Outcome   provisioning.Outcome `json:"outcome"`
	User      *identity.User       `json:"user"`
	Token     string               `json:"token,omitempty"`
	ExpiresAt *time.Time           `json:"expires_at,omitempty"`
	Persona   *persona.Persona     `json:"persona,omitempty"`
	Message   string               `json:"message,omitempty"`
}

type LoginResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SignupHandler creates the account and provisions its persona.
// Used by: /api/auth/signup
// Response: SignupResponse, 201 when provisioned, 202 when the email still
// needs confirming.
func SignupHandler(wf Workflow, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SignupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.RedirectTo != "" && !safeRedirect(req.RedirectTo) {
			response.JSON(w, http.StatusBadRequest, response.ErrorResponse{
				Error:  "Please correct the highlighted fields.",
				Fields: map[string]string{"redirect_to": "Redirect must be an http(s) URL or a path."},
			})
			return
		}

		res, err := wf.Register(r.Context(), provisioning.RegisterInput{
			Email:          req.Email,
			Password:       req.Password,
			FirstName:      req.FirstName,
			LastName:       req.LastName,
			ResumeText:     req.ResumeText,
			APIKey:         req.APIKey,
			IsPublic:       req.IsPublic,
			RedirectTarget: req.RedirectTo,
		})
		if err != nil {
			response.WorkflowError(w, logger, err)
			return
		}

		if res.Outcome == provisioning.OutcomePendingConfirmation {
			response.JSON(w, http.StatusAccepted, SignupResponse{
				Outcome: res.Outcome,
				User:    res.User,
				Message: "Check your email to confirm your account, then sign in to create your persona.",
			})
			return
		}
		response.JSON(w, http.StatusCreated, SignupResponse{
			Outcome:   res.Outcome,
			User:      res.User,
			Token:     res.Session.Token,
			ExpiresAt: &res.Session.ExpiresAt,
			Persona:   res.Persona,
		})
	}
}

// LoginHandler handles user authentication
// Used by: /api/auth/login
// Response: LoginResponse
func LoginHandler(wf Workflow, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		s, err := wf.SignIn(r.Context(), req.Email, req.Password)
		if err != nil {
			response.WorkflowError(w, logger, err)
			return
		}
		response.JSON(w, http.StatusOK, LoginResponse{
			ID:        s.UserID,
			Email:     s.Email,
			Token:     s.Token,
			ExpiresAt: s.ExpiresAt,
		})
	}
}

// LogoutHandler revokes the bearer token.
// Used by: /api/auth/logout (protected)
func LogoutHandler(wf Workflow, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, _ := session.FromContext(r.Context())
		if err := wf.SignOut(r.Context(), s); err != nil {
			response.WorkflowError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ConfirmHandler marks the email confirmed and sends the user back to the
// page they signed up from.
// Used by: /api/auth/confirm?token=
func ConfirmHandler(c Confirmer, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			response.Error(w, http.StatusBadRequest, "Missing confirmation token")
			return
		}
		redirect, err := c.Confirm(r.Context(), token)
		if err != nil {
			if errors.Is(err, identity.ErrInvalidConfirmation) {
				response.Error(w, http.StatusBadRequest, "This confirmation link is invalid or has expired.")
				return
			}
			logger.Error("email confirmation failed", zap.Error(err))
			response.Error(w, http.StatusInternalServerError, "Could not confirm email. Please try again.")
			return
		}
		if redirect != "" && safeRedirect(redirect) {
			http.Redirect(w, r, redirect, http.StatusSeeOther)
			return
		}
		response.JSON(w, http.StatusOK, map[string]string{"message": "Email confirmed. You can now sign in."})
	}
}

// safeRedirect accepts absolute http(s) URLs and site-relative paths.
func safeRedirect(target string) bool {
	if strings.HasPrefix(target, "/") {
		return !strings.HasPrefix(target, "//")
	}
	u, err := url.Parse(target)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
