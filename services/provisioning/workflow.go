package provisioning

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"resumepersona/backend/services/identity"
	"resumepersona/backend/services/persona"
	"resumepersona/backend/services/session"
	"resumepersona/backend/services/voiceagent"
)

type IdentityProvider interface {
	SignUp(ctx context.Context, in identity.SignUpInput) (*identity.User, error)
	SignIn(ctx context.Context, email, password string) (*identity.User, error)
	Get(ctx context.Context, id string) (*identity.User, error)
}

type AgentProvisioner interface {
	CreateAgent(ctx context.Context, req voiceagent.Request) (*voiceagent.Agent, error)
}

type PersonaStore interface {
	GetProfile(ctx context.Context, userID string) (*persona.Profile, error)
	LinkProfile(ctx context.Context, userID, agentID, agentLink string) error
	Insert(ctx context.Context, np persona.NewPersona) (*persona.Persona, error)
	GetByOwner(ctx context.Context, userID string) (*persona.Persona, error)
	SetVisibility(ctx context.Context, userID, personaID string, public bool) (*persona.Persona, bool, error)
	Delete(ctx context.Context, userID string) (string, error)
	ListPublic(ctx context.Context) ([]persona.PublicPersona, error)
	GetPublic(ctx context.Context, personaID string) (*persona.PublicPersona, error)
}

type Sessions interface {
	Start(ctx context.Context, userID, email string) (*session.Session, error)
	End(ctx context.Context, s *session.Session) error
	Publish(e session.Event)
}

type Outcome string

const (
	OutcomePendingConfirmation Outcome = "pending_confirmation"
	OutcomeProvisioned         Outcome = "provisioned"
)

type RegisterInput struct {
	Email          string
	Password       string
	FirstName      string
	LastName       string
	ResumeText     string
	APIKey         string
	IsPublic       bool
	RedirectTarget string
}

type CreateInput struct {
	ResumeText string
	APIKey     string
	IsPublic   bool
}

type Result struct {
	Outcome Outcome          `json:"outcome"`
	User    *identity.User   `json:"user"`
	Session *session.Session `json:"session,omitempty"`
	Persona *persona.Persona `json:"persona,omitempty"`
}

// AccountStatus summarizes where an identity is in the provisioning flow.
type AccountStatus string

const (
	StatusPendingConfirmation AccountStatus = "pending_confirmation"
	StatusNoPersona           AccountStatus = "no_persona"
	StatusUnlinked            AccountStatus = "unlinked"
	StatusActive              AccountStatus = "active"
)

// Workflow turns a registration into an identity, a voice agent and a
// persona. Steps run in order and are never retried or compensated.
type Workflow struct {
	identities IdentityProvider
	agents     AgentProvisioner
	personas   PersonaStore
	sessions   Sessions
	logger     *zap.Logger
}

func NewWorkflow(identities IdentityProvider, agents AgentProvisioner, personas PersonaStore, sessions Sessions, logger *zap.Logger) *Workflow {
	return &Workflow{
		identities: identities,
		agents:     agents,
		personas:   personas,
		sessions:   sessions,
		logger:     logger,
	}
}

// Register creates the identity and, once it is usable, the persona.
// It keeps running when the caller goes away.
func (w *Workflow) Register(ctx context.Context, in RegisterInput) (*Result, error) {
	if verr := validateRegistration(in); verr != nil {
		return nil, verr
	}
	ctx = context.WithoutCancel(ctx)

	user, err := w.identities.SignUp(ctx, identity.SignUpInput{
		Email:    in.Email,
		Password: in.Password,
		Metadata: identity.Metadata{
			FirstName: strings.TrimSpace(in.FirstName),
			LastName:  strings.TrimSpace(in.LastName),
		},
		RedirectTarget: in.RedirectTarget,
	})
	if err != nil {
		if errors.Is(err, identity.ErrDuplicateAccount) {
			return nil, &AuthError{Message: MsgDuplicateAccount, Err: err}
		}
		w.logger.Error("identity creation failed", zap.Error(err))
		return nil, &AuthError{Message: MsgAccountFailed, Err: err}
	}
	log := w.logger.With(zap.String("user_id", user.ID))

	if !user.Confirmed {
		log.Info("identity awaiting confirmation")
		return &Result{Outcome: OutcomePendingConfirmation, User: user}, nil
	}

	p, err := w.provision(ctx, log, user.ID, strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName), in.ResumeText, in.APIKey, in.IsPublic)
	if err != nil {
		return nil, err
	}

	s, err := w.sessions.Start(ctx, user.ID, user.Email)
	if err != nil {
		log.Error("session start after provisioning failed", zap.Error(err))
		return nil, &AuthError{Message: MsgSignInAfterCreate, Err: err}
	}
	return &Result{Outcome: OutcomeProvisioned, User: user, Session: s, Persona: p}, nil
}

// CreateForSession provisions a persona for an identity that is already
// signed in, using the names stored on its profile.
func (w *Workflow) CreateForSession(ctx context.Context, s *session.Session, in CreateInput) (*persona.Persona, error) {
	if s == nil {
		return nil, &AuthError{Message: MsgNotSignedIn}
	}
	if verr := validateCreate(in); verr != nil {
		return nil, verr
	}
	ctx = context.WithoutCancel(ctx)
	log := w.logger.With(zap.String("user_id", s.UserID))

	profile, err := w.personas.GetProfile(ctx, s.UserID)
	if err != nil {
		return nil, &PersistenceError{Message: MsgProfileUnavailable, Err: err}
	}
	fields := map[string]string{}
	if strings.TrimSpace(profile.FirstName) == "" {
		fields["first_name"] = "Your profile has no first name. Add it before creating a persona."
	}
	if strings.TrimSpace(profile.LastName) == "" {
		fields["last_name"] = "Your profile has no last name. Add it before creating a persona."
	}
	if verr := asValidationError(fields); verr != nil {
		return nil, verr
	}

	switch _, err := w.personas.GetByOwner(ctx, s.UserID); {
	case err == nil:
		return nil, &PersistenceError{Message: MsgPersonaExists, Err: persona.ErrPersonaExists}
	case !errors.Is(err, persona.ErrNotFound):
		return nil, &PersistenceError{Message: MsgProfileUnavailable, Err: err}
	}

	return w.provision(ctx, log, s.UserID, profile.FirstName, profile.LastName, in.ResumeText, in.APIKey, in.IsPublic)
}

// provision creates the agent, links the profile and stores the persona.
func (w *Workflow) provision(ctx context.Context, log *zap.Logger, userID, firstName, lastName, resumeText, apiKey string, public bool) (*persona.Persona, error) {
	agent, err := w.agents.CreateAgent(ctx, voiceagent.Request{
		ResumeText: resumeText,
		FirstName:  firstName,
		LastName:   lastName,
		APIKey:     apiKey,
	})
	if err != nil {
		log.Warn("voice agent creation failed", zap.Error(err))
		return nil, &ProvisioningError{Message: MsgAgentFailed, Err: err}
	}
	link := persona.ConversationLink(agent.AgentID)
	avatar := persona.AvatarURL(userID)

	if err := w.personas.LinkProfile(ctx, userID, agent.AgentID, link); err != nil {
		log.Warn("profile link failed, continuing", zap.String("agent_id", agent.AgentID), zap.Error(err))
	}

	p, err := w.personas.Insert(ctx, persona.NewPersona{
		UserID:           userID,
		IsPublic:         public,
		APIKey:           apiKey,
		AgentID:          agent.AgentID,
		ConversationLink: link,
		AvatarURL:        avatar,
	})
	if err != nil {
		log.Error("persona insert failed", zap.String("agent_id", agent.AgentID), zap.Error(err))
		if errors.Is(err, persona.ErrPersonaExists) {
			return nil, &PersistenceError{Message: MsgPersonaExists, Err: err}
		}
		return nil, &PersistenceError{Message: MsgPersonaSaveFailed, Err: err}
	}

	log.Info("persona provisioned", zap.String("persona_id", p.ID), zap.String("agent_id", p.AgentID))
	w.sessions.Publish(session.Event{
		Type:   session.EventPersonaCreated,
		UserID: userID,
		Data:   map[string]any{"persona_id": p.ID, "is_public": p.IsPublic},
	})
	return p, nil
}

func (w *Workflow) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	if verr := validateSignIn(email, password); verr != nil {
		return nil, verr
	}
	user, err := w.identities.SignIn(ctx, email, password)
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		return nil, &AuthError{Message: MsgInvalidCredentials, Err: err}
	case errors.Is(err, identity.ErrNotConfirmed):
		return nil, &AuthError{Message: MsgNotConfirmed, Err: err}
	case err != nil:
		w.logger.Error("sign in failed", zap.Error(err))
		return nil, &AuthError{Message: MsgSignInFailed, Err: err}
	}
	s, err := w.sessions.Start(ctx, user.ID, user.Email)
	if err != nil {
		return nil, &AuthError{Message: MsgSignInFailed, Err: err}
	}
	return s, nil
}

func (w *Workflow) SignOut(ctx context.Context, s *session.Session) error {
	if s == nil {
		return &AuthError{Message: MsgNotSignedIn}
	}
	if err := w.sessions.End(ctx, s); err != nil {
		return &AuthError{Message: MsgSignInFailed, Err: err}
	}
	return nil
}

func (w *Workflow) MyPersona(ctx context.Context, s *session.Session) (*persona.Persona, error) {
	if s == nil {
		return nil, &AuthError{Message: MsgNotSignedIn}
	}
	p, err := w.personas.GetByOwner(ctx, s.UserID)
	if err != nil {
		if errors.Is(err, persona.ErrNotFound) {
			return nil, &FetchError{Message: MsgPersonaNotFound, Err: err}
		}
		return nil, &FetchError{Message: MsgProfileUnavailable, Err: err}
	}
	return p, nil
}

// SetVisibility changes is_public on the caller's persona. Listeners are only
// told about real changes.
func (w *Workflow) SetVisibility(ctx context.Context, s *session.Session, personaID string, public bool) (*persona.Persona, error) {
	if s == nil {
		return nil, &AuthError{Message: MsgNotSignedIn}
	}
	p, changed, err := w.personas.SetVisibility(ctx, s.UserID, personaID, public)
	if err != nil {
		if errors.Is(err, persona.ErrNotFound) {
			return nil, &PersistenceError{Message: MsgPersonaNotFound, Err: err}
		}
		w.logger.Error("visibility update failed", zap.String("persona_id", personaID), zap.Error(err))
		return nil, &PersistenceError{Message: MsgPersonaUpdate, Err: err}
	}
	if changed {
		w.sessions.Publish(session.Event{
			Type:   session.EventPersonaVisibilityChanged,
			UserID: s.UserID,
			Data:   map[string]any{"persona_id": p.ID, "is_public": p.IsPublic},
		})
	}
	return p, nil
}

func (w *Workflow) DeletePersona(ctx context.Context, s *session.Session) error {
	if s == nil {
		return &AuthError{Message: MsgNotSignedIn}
	}
	id, err := w.personas.Delete(ctx, s.UserID)
	if err != nil {
		if errors.Is(err, persona.ErrNotFound) {
			return &PersistenceError{Message: MsgPersonaNotFound, Err: err}
		}
		return &PersistenceError{Message: MsgPersonaUpdate, Err: err}
	}
	w.sessions.Publish(session.Event{
		Type:   session.EventPersonaDeleted,
		UserID: s.UserID,
		Data:   map[string]any{"persona_id": id},
	})
	return nil
}

// ListPublic returns the public listing. Failures come back as FetchError
// so the caller can show an empty list with a notice.
func (w *Workflow) ListPublic(ctx context.Context) ([]persona.PublicPersona, error) {
	out, err := w.personas.ListPublic(ctx)
	if err != nil {
		w.logger.Warn("public listing failed", zap.Error(err))
		return nil, &FetchError{Message: MsgListingFailed, Err: err}
	}
	return out, nil
}

func (w *Workflow) GetPublic(ctx context.Context, personaID string) (*persona.PublicPersona, error) {
	pp, err := w.personas.GetPublic(ctx, personaID)
	if err != nil {
		if errors.Is(err, persona.ErrNotFound) {
			return nil, &FetchError{Message: MsgPersonaNotFound, Err: err}
		}
		return nil, &FetchError{Message: MsgListingFailed, Err: err}
	}
	return pp, nil
}

// Status reports how far the identity got through provisioning.
func (w *Workflow) Status(ctx context.Context, s *session.Session) (AccountStatus, error) {
	if s == nil {
		return "", &AuthError{Message: MsgNotSignedIn}
	}
	user, err := w.identities.Get(ctx, s.UserID)
	if err != nil {
		return "", &FetchError{Message: MsgProfileUnavailable, Err: err}
	}
	if !user.Confirmed {
		return StatusPendingConfirmation, nil
	}
	if _, err := w.personas.GetByOwner(ctx, s.UserID); err != nil {
		if errors.Is(err, persona.ErrNotFound) {
			return StatusNoPersona, nil
		}
		return "", &FetchError{Message: MsgProfileUnavailable, Err: err}
	}
	profile, err := w.personas.GetProfile(ctx, s.UserID)
	if err != nil {
		return "", &FetchError{Message: MsgProfileUnavailable, Err: err}
	}
	if profile.AgentID == nil || *profile.AgentID == "" {
		return StatusUnlinked, nil
	}
	return StatusActive, nil
}
