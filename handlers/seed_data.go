// Note: To generate dev personas, run with DEV_ROUTES=true and use:
// curl -X POST "http://localhost:8080/api/dev/seed-personas?count=5"

package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/brianvoe/gofakeit/v6"
	"go.uber.org/zap"

	"resumepersona/backend/handlers/response"
	"resumepersona/backend/services/identity"
	"resumepersona/backend/services/persona"
)

const (
	defaultSeedCount = 10
	maxSeedCount     = 150
)

type SeedAccounts interface {
	SignUp(ctx context.Context, in identity.SignUpInput) (*identity.User, error)
}

type SeedPersonas interface {
	LinkProfile(ctx context.Context, userID, agentID, agentLink string) error
	Insert(ctx context.Context, np persona.NewPersona) (*persona.Persona, error)
}

type SeedResponse struct {
	Created  int      `json:"created"`
	Personas []string `json:"personas"`
}

// GenerateSeedPersonasHandler creates public personas with fake identities
// and agent ids so the listing can be exercised without the voice provider.
// Used by: /api/dev/seed-personas (dev_routes only)
func GenerateSeedPersonasHandler(accounts SeedAccounts, personas SeedPersonas, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count := defaultSeedCount
		if countParam := r.URL.Query().Get("count"); countParam != "" {
			parsedCount, err := strconv.Atoi(countParam)
			if err != nil || parsedCount < 1 || parsedCount > maxSeedCount {
				response.Error(w, http.StatusBadRequest, "Count must be between 1 and 150")
				return
			}
			count = parsedCount
		}

		out := SeedResponse{Personas: make([]string, 0, count)}
		for i := 0; i < count; i++ {
			id, err := seedOne(r.Context(), accounts, personas)
			if err != nil {
				logger.Error("seeding persona failed", zap.Int("index", i), zap.Error(err))
				response.Error(w, http.StatusInternalServerError, "Could not finish generating personas")
				return
			}
			out.Personas = append(out.Personas, id)
			out.Created++
		}

		logger.Info("seeded dev personas", zap.Int("count", out.Created))
		response.JSON(w, http.StatusCreated, out)
	}
}

func seedOne(ctx context.Context, accounts SeedAccounts, personas SeedPersonas) (string, error) {
	first, last := gofakeit.FirstName(), gofakeit.LastName()
	user, err := accounts.SignUp(ctx, identity.SignUpInput{
		Email:    gofakeit.Username() + "." + gofakeit.LetterN(6) + "@example.com",
		Password: gofakeit.Password(true, true, true, false, false, 16),
		Metadata: identity.Metadata{FirstName: first, LastName: last},
	})
	if err != nil {
		return "", err
	}

	agentID := "seed_" + gofakeit.LetterN(20)
	link := persona.ConversationLink(agentID)
	if err := personas.LinkProfile(ctx, user.ID, agentID, link); err != nil {
		return "", err
	}
	p, err := personas.Insert(ctx, persona.NewPersona{
		UserID:           user.ID,
		IsPublic:         true,
		APIKey:           "seed-" + gofakeit.LetterN(32),
		AgentID:          agentID,
		ConversationLink: link,
		AvatarURL:        persona.AvatarURL(user.ID),
	})
	if err != nil {
		return "", err
	}
	return p.ID, nil
}
