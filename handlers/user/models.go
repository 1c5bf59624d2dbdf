package user

import (
	"resumepersona/backend/services/identity"
	"resumepersona/backend/services/persona"
)

// MeResponse is the signed-in account with its profile.
type MeResponse struct {
	User    *identity.User   `json:"user"`
	Profile *persona.Profile `json:"profile"`
}
