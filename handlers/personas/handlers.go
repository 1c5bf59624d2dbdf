package personas

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"resumepersona/backend/handlers/response"
	"resumepersona/backend/services/persona"
	"resumepersona/backend/services/provisioning"
	"resumepersona/backend/services/session"
)

// Workflow is the part of provisioning.Workflow the persona routes use.
type Workflow interface {
	CreateForSession(ctx context.Context, s *session.Session, in provisioning.CreateInput) (*persona.Persona, error)
	MyPersona(ctx context.Context, s *session.Session) (*persona.Persona, error)
	SetVisibility(ctx context.Context, s *session.Session, personaID string, public bool) (*persona.Persona, error)
	DeletePersona(ctx context.Context, s *session.Session) error
	ListPublic(ctx context.Context) ([]persona.PublicPersona, error)
	GetPublic(ctx context.Context, personaID string) (*persona.PublicPersona, error)
}

type CreateRequest struct {
	ResumeText string `json:"resume_text"`
	APIKey     string `json:"api_key"`
	IsPublic   bool   `json:"is_public"`
}

type VisibilityRequest struct {
	IsPublic *bool `json:"is_public"`
}

// ListResponse always carries a list. Notice is set when the listing could
// not be loaded.
type ListResponse struct {
	Personas []persona.PublicPersona `json:"personas"`
	Notice   string                  `json:"notice,omitempty"`
}

// CreateHandler provisions a persona for the signed-in user.
// Used by: POST /api/personas
func CreateHandler(wf Workflow, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, _ := session.FromContext(r.Context())

		var req CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		p, err := wf.CreateForSession(r.Context(), s, provisioning.CreateInput{
			ResumeText: req.ResumeText,
			APIKey:     req.APIKey,
			IsPublic:   req.IsPublic,
		})
		if err != nil {
			response.WorkflowError(w, logger, err)
			return
		}
		response.JSON(w, http.StatusCreated, p)
	}
}

// GetMineHandler returns the owner's view of their persona.
// Used by: GET /api/me/persona
func GetMineHandler(wf Workflow, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, _ := session.FromContext(r.Context())
		p, err := wf.MyPersona(r.Context(), s)
		if err != nil {
			response.WorkflowError(w, logger, err)
			return
		}
		response.JSON(w, http.StatusOK, p)
	}
}

// DeleteMineHandler removes the owner's persona. The profile stays.
// Used by: DELETE /api/me/persona
func DeleteMineHandler(wf Workflow, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, _ := session.FromContext(r.Context())
		if err := wf.DeletePersona(r.Context(), s); err != nil {
			response.WorkflowError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// SetVisibilityHandler toggles is_public and returns the stored persona.
// Used by: PUT /api/personas/{id}/visibility
func SetVisibilityHandler(wf Workflow, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, _ := session.FromContext(r.Context())

		var req VisibilityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.IsPublic == nil {
			response.JSON(w, http.StatusBadRequest, response.ErrorResponse{
				Error:  "Please correct the highlighted fields.",
				Fields: map[string]string{"is_public": "is_public is required."},
			})
			return
		}

		p, err := wf.SetVisibility(r.Context(), s, mux.Vars(r)["id"], *req.IsPublic)
		if err != nil {
			response.WorkflowError(w, logger, err)
			return
		}
		response.JSON(w, http.StatusOK, p)
	}
}

// ListPublicHandler never fails the page: read errors degrade to an empty
// list with a notice.
// Used by: GET /api/personas
func ListPublicHandler(wf Workflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := wf.ListPublic(r.Context())
		if err != nil {
			notice := provisioning.MsgListingFailed
			var ferr *provisioning.FetchError
			if errors.As(err, &ferr) {
				notice = ferr.Message
			}
			response.JSON(w, http.StatusOK, ListResponse{Personas: []persona.PublicPersona{}, Notice: notice})
			return
		}
		if list == nil {
			list = []persona.PublicPersona{}
		}
		response.JSON(w, http.StatusOK, ListResponse{Personas: list})
	}
}

// GetPublicHandler returns one public persona, 404 when it is private or
// does not exist.
// Used by: GET /api/personas/{id}
func GetPublicHandler(wf Workflow, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pp, err := wf.GetPublic(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			response.WorkflowError(w, logger, err)
			return
		}
		response.JSON(w, http.StatusOK, pp)
	}
}
