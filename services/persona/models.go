package persona

import "time"

// Profile is the per-identity row created at sign-up.
type Profile struct {
	UserID    string    `json:"user_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	AgentID   *string   `json:"agent_id"`
	AgentLink *string   `json:"agent_link"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Persona is the owner's view. The API key never leaves the store.
type Persona struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	IsPublic         bool      `json:"is_public"`
	AgentID          string    `json:"agent_id"`
	ConversationLink string    `json:"conversation_link"`
	AvatarURL        string    `json:"avatar_url"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// PublicPersona holds only the fields anyone may read.
type PublicPersona struct {
	ID               string `json:"id"`
	AvatarURL        string `json:"avatar_url"`
	AgentID          string `json:"agent_id"`
	ConversationLink string `json:"conversation_link"`
}

// NewPersona is the insert payload. APIKey is plaintext here and sealed
// by the store.
type NewPersona struct {
	UserID           string
	IsPublic         bool
	APIKey           string
	AgentID          string
	ConversationLink string
	AvatarURL        string
}
