package provisioning

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"resumepersona/backend/services/identity"
	"resumepersona/backend/services/persona"
	"resumepersona/backend/services/session"
	"resumepersona/backend/services/voiceagent"
)

type fakeIdentities struct {
	mu                  sync.Mutex
	requireConfirmation bool
	signUpErr           error
	signUps             int
	users               map[string]*identity.User
	passwords           map[string]string
}

func newFakeIdentities() *fakeIdentities {
	return &fakeIdentities{users: map[string]*identity.User{}, passwords: map[string]string{}}
}

func (f *fakeIdentities) SignUp(_ context.Context, in identity.SignUpInput) (*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signUps++
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	email := identity.NormalizeEmail(in.Email)
	if _, ok := f.passwords[email]; ok {
		return nil, identity.ErrDuplicateAccount
	}
	u := &identity.User{ID: "u1", Email: email, Confirmed: !f.requireConfirmation, CreatedAt: time.Now()}
	f.users[u.ID] = u
	f.passwords[email] = in.Password
	return u, nil
}

func (f *fakeIdentities) SignIn(_ context.Context, email, password string) (*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = identity.NormalizeEmail(email)
	if pw, ok := f.passwords[email]; !ok || pw != password {
		return nil, identity.ErrInvalidCredentials
	}
	for _, u := range f.users {
		if u.Email == email {
			if !u.Confirmed {
				return nil, identity.ErrNotConfirmed
			}
			return u, nil
		}
	}
	return nil, identity.ErrNotFound
}

func (f *fakeIdentities) Get(_ context.Context, id string) (*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return u, nil
}

type fakeAgents struct {
	err      error
	requests []voiceagent.Request
}

func (f *fakeAgents) CreateAgent(_ context.Context, req voiceagent.Request) (*voiceagent.Agent, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &voiceagent.Agent{AgentID: "abc123"}, nil
}

type fakePersonas struct {
	profiles  map[string]*persona.Profile
	personas  map[string]*persona.Persona
	linkErr   error
	insertErr error
	listErr   error
	inserts   int
}

func newFakePersonas() *fakePersonas {
	return &fakePersonas{profiles: map[string]*persona.Profile{}, personas: map[string]*persona.Persona{}}
}

func (f *fakePersonas) GetProfile(_ context.Context, userID string) (*persona.Profile, error) {
	p, ok := f.profiles[userID]
	if !ok {
		return nil, persona.ErrNotFound
	}
	return p, nil
}

func (f *fakePersonas) LinkProfile(_ context.Context, userID, agentID, link string) error {
	if f.linkErr != nil {
		return f.linkErr
	}
	p, ok := f.profiles[userID]
	if !ok {
		p = &persona.Profile{UserID: userID}
		f.profiles[userID] = p
	}
	p.AgentID, p.AgentLink = &agentID, &link
	return nil
}

func (f *fakePersonas) Insert(_ context.Context, np persona.NewPersona) (*persona.Persona, error) {
	f.inserts++
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	if _, ok := f.personas[np.UserID]; ok {
		return nil, persona.ErrPersonaExists
	}
	p := &persona.Persona{
		ID:               "p1",
		UserID:           np.UserID,
		IsPublic:         np.IsPublic,
		AgentID:          np.AgentID,
		ConversationLink: np.ConversationLink,
		AvatarURL:        np.AvatarURL,
	}
	f.personas[np.UserID] = p
	return p, nil
}

func (f *fakePersonas) GetByOwner(_ context.Context, userID string) (*persona.Persona, error) {
	p, ok := f.personas[userID]
	if !ok {
		return nil, persona.ErrNotFound
	}
	return p, nil
}

func (f *fakePersonas) SetVisibility(_ context.Context, userID, personaID string, public bool) (*persona.Persona, bool, error) {
	p, ok := f.personas[userID]
	if !ok || p.ID != personaID {
		return nil, false, persona.ErrNotFound
	}
	changed := p.IsPublic != public
	p.IsPublic = public
	cp := *p
	return &cp, changed, nil
}

func (f *fakePersonas) Delete(_ context.Context, userID string) (string, error) {
	p, ok := f.personas[userID]
	if !ok {
		return "", persona.ErrNotFound
	}
	delete(f.personas, userID)
	return p.ID, nil
}

func (f *fakePersonas) ListPublic(context.Context) ([]persona.PublicPersona, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []persona.PublicPersona{}
	for _, p := range f.personas {
		if p.IsPublic {
			out = append(out, persona.PublicPersona{ID: p.ID, AgentID: p.AgentID, AvatarURL: p.AvatarURL, ConversationLink: p.ConversationLink})
		}
	}
	return out, nil
}

func (f *fakePersonas) GetPublic(_ context.Context, id string) (*persona.PublicPersona, error) {
	for _, p := range f.personas {
		if p.ID == id && p.IsPublic {
			return &persona.PublicPersona{ID: p.ID, AgentID: p.AgentID}, nil
		}
	}
	return nil, persona.ErrNotFound
}

type fakeSessions struct {
	startErr error
	events   []session.Event
}

func (f *fakeSessions) Start(_ context.Context, userID, email string) (*session.Session, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.events = append(f.events, session.Event{Type: session.EventSignedIn, UserID: userID})
	return &session.Session{UserID: userID, Email: email, Token: "tok-" + userID}, nil
}

func (f *fakeSessions) End(_ context.Context, s *session.Session) error {
	f.events = append(f.events, session.Event{Type: session.EventSignedOut, UserID: s.UserID})
	return nil
}

func (f *fakeSessions) Publish(e session.Event) { f.events = append(f.events, e) }

func (f *fakeSessions) types() []session.EventType {
	out := make([]session.EventType, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	ids      *fakeIdentities
	agents   *fakeAgents
	personas *fakePersonas
	sessions *fakeSessions
	wf       *Workflow
}

func newHarness() *harness {
	h := &harness{
		ids:      newFakeIdentities(),
		agents:   &fakeAgents{},
		personas: newFakePersonas(),
		sessions: &fakeSessions{},
	}
	h.wf = NewWorkflow(h.ids, h.agents, h.personas, h.sessions, zap.NewNop())
	return h
}

func validInput() RegisterInput {
	return RegisterInput{
		Email:      "ada@example.com",
		Password:   "correct horse",
		FirstName:  "Ada",
		LastName:   "Lovelace",
		ResumeText: "Analyst. Wrote the first published algorithm.",
		APIKey:     "sk-test",
		IsPublic:   true,
	}
}

func TestRegister_Provisioned(t *testing.T) {
	h := newHarness()

	res, err := h.wf.Register(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, OutcomeProvisioned, res.Outcome)
	require.NotNil(t, res.Session)
	assert.Equal(t, "tok-u1", res.Session.Token)

	require.NotNil(t, res.Persona)
	assert.Equal(t, "abc123", res.Persona.AgentID)
	assert.Equal(t, "https://elevenlabs.io/app/talk-to?agent_id=abc123", res.Persona.ConversationLink)
	assert.Equal(t, "https://api.dicebear.com/7.x/pixel-art/svg?seed=u1&scale=100", res.Persona.AvatarURL)
	assert.True(t, res.Persona.IsPublic)

	profile := h.personas.profiles["u1"]
	require.NotNil(t, profile)
	assert.Equal(t, "abc123", *profile.AgentID)

	require.Len(t, h.agents.requests, 1)
	assert.Equal(t, voiceagent.Request{
		ResumeText: validInput().ResumeText,
		FirstName:  "Ada",
		LastName:   "Lovelace",
		APIKey:     "sk-test",
	}, h.agents.requests[0])

	assert.Equal(t, []session.EventType{session.EventPersonaCreated, session.EventSignedIn}, h.sessions.types())
}

func TestRegister_EmptyResumeMakesNoCalls(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t "} {
		h := newHarness()
		in := validInput()
		in.ResumeText = text

		_, err := h.wf.Register(context.Background(), in)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "resume_text")
		assert.Zero(t, h.ids.signUps)
		assert.Empty(t, h.agents.requests)
		assert.Zero(t, h.personas.inserts)
	}
}

func TestRegister_ShortPassword(t *testing.T) {
	for _, pw := range []string{"", "a", "1234567"} {
		h := newHarness()
		in := validInput()
		in.Password = pw

		_, err := h.wf.Register(context.Background(), in)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "Password must be at least 8 characters.", verr.Fields["password"])
		assert.Len(t, verr.Fields, 1)
		assert.Zero(t, h.ids.signUps)
	}
}

func TestRegister_ValidationListsEveryField(t *testing.T) {
	h := newHarness()
	_, err := h.wf.Register(context.Background(), RegisterInput{Email: "Ada <ada@example.com>", Password: "short"})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	for _, f := range []string{"email", "password", "first_name", "last_name", "resume_text", "api_key"} {
		assert.Contains(t, verr.Fields, f)
	}
	assert.Zero(t, h.ids.signUps)
}

func TestRegister_DuplicateAccount(t *testing.T) {
	h := newHarness()
	_, err := h.wf.Register(context.Background(), validInput())
	require.NoError(t, err)
	agentCalls, inserts := len(h.agents.requests), h.personas.inserts

	_, err = h.wf.Register(context.Background(), validInput())
	var aerr *AuthError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, MsgDuplicateAccount, aerr.Message)
	assert.NotEqual(t, MsgAccountFailed, aerr.Message)
	assert.ErrorIs(t, err, identity.ErrDuplicateAccount)

	assert.Len(t, h.agents.requests, agentCalls)
	assert.Equal(t, inserts, h.personas.inserts)
}

func TestRegister_GenericIdentityFailure(t *testing.T) {
	h := newHarness()
	h.ids.signUpErr = errors.New("connection refused")

	_, err := h.wf.Register(context.Background(), validInput())
	var aerr *AuthError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, MsgAccountFailed, aerr.Message)
	assert.Empty(t, h.agents.requests)
}

func TestRegister_PendingConfirmation(t *testing.T) {
	h := newHarness()
	h.ids.requireConfirmation = true

	res, err := h.wf.Register(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, OutcomePendingConfirmation, res.Outcome)
	assert.Nil(t, res.Session)
	assert.Nil(t, res.Persona)
	assert.Empty(t, h.agents.requests)
	assert.Zero(t, h.personas.inserts)
}

func TestRegister_AgentFailureKeepsIdentity(t *testing.T) {
	h := newHarness()
	h.agents.err = &voiceagent.APIError{StatusCode: 401, Detail: "invalid api key"}

	_, err := h.wf.Register(context.Background(), validInput())
	var perr *ProvisioningError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, MsgAgentFailed, perr.Message)

	var apiErr *voiceagent.APIError
	assert.ErrorAs(t, err, &apiErr)

	assert.Zero(t, h.personas.inserts)
	assert.Empty(t, h.personas.personas)

	s, err := h.wf.SignIn(context.Background(), "ada@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)

	status, err := h.wf.Status(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, StatusNoPersona, status)
}

func TestRegister_ProfileLinkIsBestEffort(t *testing.T) {
	h := newHarness()
	h.personas.profiles["u1"] = &persona.Profile{UserID: "u1", FirstName: "Ada", LastName: "Lovelace"}
	h.personas.linkErr = errors.New("profile locked")

	res, err := h.wf.Register(context.Background(), validInput())
	require.NoError(t, err)
	require.NotNil(t, res.Persona)

	status, err := h.wf.Status(context.Background(), res.Session)
	require.NoError(t, err)
	assert.Equal(t, StatusUnlinked, status)
}

func TestRegister_InsertFailure(t *testing.T) {
	h := newHarness()
	h.personas.insertErr = errors.New("disk full")

	_, err := h.wf.Register(context.Background(), validInput())
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, MsgPersonaSaveFailed, perr.Message)
	// the profile was linked before the insert failed
	assert.NotNil(t, h.personas.profiles["u1"])
}

func TestRegister_SessionFailureAfterProvisioning(t *testing.T) {
	h := newHarness()
	h.sessions.startErr = errors.New("ledger down")

	_, err := h.wf.Register(context.Background(), validInput())
	var aerr *AuthError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, MsgSignInAfterCreate, aerr.Message)
	assert.Len(t, h.personas.personas, 1)
}

func TestRegister_IgnoresCallerCancellation(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := h.wf.Register(ctx, validInput())
	require.NoError(t, err)
	assert.Equal(t, OutcomeProvisioned, res.Outcome)
}

func TestCreateForSession(t *testing.T) {
	h := newHarness()
	h.personas.profiles["u2"] = &persona.Profile{UserID: "u2", FirstName: "Grace", LastName: "Hopper"}
	s := &session.Session{UserID: "u2", Email: "grace@example.com"}

	p, err := h.wf.CreateForSession(context.Background(), s, CreateInput{ResumeText: "Admiral.", APIKey: "sk"})
	require.NoError(t, err)
	assert.False(t, p.IsPublic)
	assert.Equal(t, persona.AvatarURL("u2"), p.AvatarURL)
	assert.Equal(t, "Grace", h.agents.requests[0].FirstName)

	_, err = h.wf.CreateForSession(context.Background(), s, CreateInput{ResumeText: "Admiral.", APIKey: "sk"})
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, persona.ErrPersonaExists)
	assert.Len(t, h.agents.requests, 1)
}

func TestCreateForSession_MissingNames(t *testing.T) {
	h := newHarness()
	h.personas.profiles["u2"] = &persona.Profile{UserID: "u2", FirstName: "Grace"}

	_, err := h.wf.CreateForSession(context.Background(), &session.Session{UserID: "u2"}, CreateInput{ResumeText: "x", APIKey: "k"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "last_name")
	assert.NotContains(t, verr.Fields, "first_name")
	assert.Empty(t, h.agents.requests)
}

func TestCreateForSession_NoSession(t *testing.T) {
	h := newHarness()
	_, err := h.wf.CreateForSession(context.Background(), nil, CreateInput{ResumeText: "x", APIKey: "k"})
	var aerr *AuthError
	require.ErrorAs(t, err, &aerr)
}

func TestSignIn_Errors(t *testing.T) {
	h := newHarness()
	h.ids.requireConfirmation = true
	_, err := h.wf.Register(context.Background(), validInput())
	require.NoError(t, err)

	_, err = h.wf.SignIn(context.Background(), "ada@example.com", "correct horse")
	assert.ErrorIs(t, err, identity.ErrNotConfirmed)

	_, err = h.wf.SignIn(context.Background(), "ada@example.com", "wrong password")
	var aerr *AuthError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, MsgInvalidCredentials, aerr.Message)

	_, err = h.wf.SignIn(context.Background(), "", "")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestVisibilityAndDelete(t *testing.T) {
	h := newHarness()
	res, err := h.wf.Register(context.Background(), validInput())
	require.NoError(t, err)
	s := res.Session
	h.sessions.events = nil

	p, err := h.wf.SetVisibility(context.Background(), s, res.Persona.ID, false)
	require.NoError(t, err)
	assert.False(t, p.IsPublic)
	p, err = h.wf.SetVisibility(context.Background(), s, res.Persona.ID, true)
	require.NoError(t, err)
	assert.True(t, p.IsPublic)
	_, err = h.wf.SetVisibility(context.Background(), s, res.Persona.ID, true)
	require.NoError(t, err)

	assert.Equal(t, []session.EventType{
		session.EventPersonaVisibilityChanged,
		session.EventPersonaVisibilityChanged,
	}, h.sessions.types())

	_, err = h.wf.SetVisibility(context.Background(), s, "someone-else", true)
	assert.ErrorIs(t, err, persona.ErrNotFound)

	require.NoError(t, h.wf.DeletePersona(context.Background(), s))
	assert.ErrorIs(t, h.wf.DeletePersona(context.Background(), s), persona.ErrNotFound)
}

func TestListPublic_FetchError(t *testing.T) {
	h := newHarness()
	h.personas.listErr = errors.New("timeout")

	_, err := h.wf.ListPublic(context.Background())
	var ferr *FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, MsgListingFailed, ferr.Message)
}

func TestStatus(t *testing.T) {
	h := newHarness()
	res, err := h.wf.Register(context.Background(), validInput())
	require.NoError(t, err)

	status, err := h.wf.Status(context.Background(), res.Session)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, status)

	h.personas.profiles["u1"].AgentID = nil
	status, err = h.wf.Status(context.Background(), res.Session)
	require.NoError(t, err)
	assert.Equal(t, StatusUnlinked, status)
}
