package status

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"resumepersona/backend/handlers/response"
	"resumepersona/backend/services/provisioning"
	"resumepersona/backend/services/session"
)

// Status represents how far the signed-in user got through provisioning.
type Status struct {
	UserID     string                     `json:"user_id"`
	Status     provisioning.AccountStatus `json:"status"`
	LastUpdate time.Time                  `json:"last_update"`
}

type Reporter interface {
	Status(ctx context.Context, s *session.Session) (provisioning.AccountStatus, error)
}

// GetMyStatusHandler returns the current status of the authenticated user
func GetMyStatusHandler(reporter Reporter, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, _ := session.FromContext(r.Context())
		st, err := reporter.Status(r.Context(), s)
		if err != nil {
			response.WorkflowError(w, logger, err)
			return
		}
		response.JSON(w, http.StatusOK, Status{UserID: s.UserID, Status: st, LastUpdate: time.Now().UTC()})
	}
}
