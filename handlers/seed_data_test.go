package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"resumepersona/backend/services/identity"
	"resumepersona/backend/services/persona"
)

type seedAccounts struct{ n int }

func (s *seedAccounts) SignUp(_ context.Context, in identity.SignUpInput) (*identity.User, error) {
	s.n++
	return &identity.User{ID: "u" + strconv.Itoa(s.n), Email: in.Email}, nil
}

type seedPersonas struct {
	inserted []persona.NewPersona
	err      error
}

func (s *seedPersonas) LinkProfile(context.Context, string, string, string) error { return nil }

func (s *seedPersonas) Insert(_ context.Context, np persona.NewPersona) (*persona.Persona, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.inserted = append(s.inserted, np)
	return &persona.Persona{ID: "p" + strconv.Itoa(len(s.inserted)), UserID: np.UserID}, nil
}

func seed(h http.Handler, query string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/dev/seed-personas"+query, nil))
	return rec
}

func TestGenerateSeedPersonasHandler(t *testing.T) {
	personas := &seedPersonas{}
	h := GenerateSeedPersonasHandler(&seedAccounts{}, personas, zap.NewNop())

	rec := seed(h, "?count=3")
	require.Equal(t, http.StatusCreated, rec.Code)
	var body SeedResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 3, body.Created)

	require.Len(t, personas.inserted, 3)
	for _, np := range personas.inserted {
		assert.True(t, np.IsPublic)
		assert.True(t, strings.HasPrefix(np.AgentID, "seed_"))
		assert.Equal(t, persona.ConversationLink(np.AgentID), np.ConversationLink)
		assert.Equal(t, persona.AvatarURL(np.UserID), np.AvatarURL)
	}

	rec = seed(h, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, personas.inserted, 3+defaultSeedCount)
}

func TestGenerateSeedPersonasHandler_Count(t *testing.T) {
	h := GenerateSeedPersonasHandler(&seedAccounts{}, &seedPersonas{}, zap.NewNop())
	for _, q := range []string{"?count=0", "?count=151", "?count=abc"} {
		assert.Equal(t, http.StatusBadRequest, seed(h, q).Code, q)
	}
}

func TestGenerateSeedPersonasHandler_Failure(t *testing.T) {
	h := GenerateSeedPersonasHandler(&seedAccounts{}, &seedPersonas{err: errors.New("db")}, zap.NewNop())
	assert.Equal(t, http.StatusInternalServerError, seed(h, "?count=2").Code)
}
