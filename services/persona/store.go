package persona

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"resumepersona/backend/services/cache"
	"resumepersona/backend/services/database"
)

const (
	// The listing is cached under publicListingKey:<generation>. Every write
	// bumps the generation after it commits, so a reader that queried before
	// the commit stores its rows under a key no later reader looks at.
	publicListingKey = "personas:public:v1"
	publicListingGen = "personas:public:gen"
	publicListingTTL = 30 * time.Second
	// one-persona-per-identity index from schema.sql
	ownerUniqueIndex = "personas_user_id_key"
)

var (
	ErrNotFound      = errors.New("persona: not found")
	ErrPersonaExists = errors.New("persona: identity already has a persona")
)

// Sealer encrypts API keys before they are stored.
type Sealer interface {
	Seal(plaintext string) (string, error)
}

// Store reads and writes profiles and personas. Every statement runs in a
// transaction scoped to the caller so the row-level policies apply.
type Store struct {
	db     *sql.DB
	sealer Sealer
	cache  cache.Cache
	logger *zap.Logger
}

func NewStore(db *sql.DB, sealer Sealer, c cache.Cache, logger *zap.Logger) *Store {
	if c == nil {
		c = cache.Noop{}
	}
	return &Store{db: db, sealer: sealer, cache: c, logger: logger}
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var p *Profile
	err := database.InTx(ctx, s.db, database.Owner(userID), func(tx *sql.Tx) error {
		var err error
		p, err = scanProfile(tx.QueryRowContext(ctx, selectProfileQuery, userID))
		return err
	})
	if err != nil {
		return nil, wrap("get profile", err)
	}
	return p, nil
}

// UpdateProfileNames sets the names the voice agent introduces itself with.
func (s *Store) UpdateProfileNames(ctx context.Context, userID, firstName, lastName string) (*Profile, error) {
	var p *Profile
	err := database.InTx(ctx, s.db, database.Owner(userID), func(tx *sql.Tx) error {
		var err error
		p, err = scanProfile(tx.QueryRowContext(ctx, updateProfileNamesQuery, firstName, lastName, userID))
		return err
	})
	if err != nil {
		return nil, wrap("update profile", err)
	}
	return p, nil
}

// LinkProfile records the agent on the owner's profile.
func (s *Store) LinkProfile(ctx context.Context, userID, agentID, agentLink string) error {
	err := database.InTx(ctx, s.db, database.Owner(userID), func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, linkProfileQuery, agentID, agentLink, userID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
	return wrap("link profile", err)
}

// Insert stores a new persona. A second persona for the same identity fails
// with ErrPersonaExists.
func (s *Store) Insert(ctx context.Context, np NewPersona) (*Persona, error) {
	sealed, err := s.sealer.Seal(np.APIKey)
	if err != nil {
		return nil, fmt.Errorf("persona: seal api key: %w", err)
	}

	p := &Persona{
		ID:               uuid.NewString(),
		UserID:           np.UserID,
		IsPublic:         np.IsPublic,
		AgentID:          np.AgentID,
		ConversationLink: np.ConversationLink,
		AvatarURL:        np.AvatarURL,
	}
	err = database.InTx(ctx, s.db, database.Owner(np.UserID), func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, insertPersonaQuery,
			p.ID, p.UserID, p.IsPublic, sealed, p.AgentID, p.ConversationLink, p.AvatarURL,
		).Scan(&p.CreatedAt, &p.UpdatedAt)
		if database.IsUniqueViolation(err, ownerUniqueIndex) {
			return ErrPersonaExists
		}
		return err
	})
	if err != nil {
		return nil, wrap("insert", err)
	}
	if p.IsPublic {
		s.invalidatePublic(ctx)
	}
	return p, nil
}

func (s *Store) GetByOwner(ctx context.Context, userID string) (*Persona, error) {
	var p *Persona
	err := database.InTx(ctx, s.db, database.Owner(userID), func(tx *sql.Tx) error {
		var err error
		p, err = scanPersona(tx.QueryRowContext(ctx, selectOwnPersonaQuery, userID))
		return err
	})
	if err != nil {
		return nil, wrap("get", err)
	}
	return p, nil
}

// SetVisibility updates is_public on the owner's persona and returns the
// stored row. changed is false when the value was already in place.
func (s *Store) SetVisibility(ctx context.Context, userID, personaID string, public bool) (p *Persona, changed bool, err error) {
	if _, err := uuid.Parse(personaID); err != nil {
		return nil, false, ErrNotFound
	}
	err = database.InTx(ctx, s.db, database.Owner(userID), func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, setVisibilityQuery, public, personaID, userID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		changed = n > 0
		p, err = scanPersona(tx.QueryRowContext(ctx, selectOwnPersonaByIDQuery, personaID, userID))
		return err
	})
	if err != nil {
		return nil, false, wrap("set visibility", err)
	}
	if changed {
		s.invalidatePublic(ctx)
	}
	return p, changed, nil
}

// Delete removes the owner's persona and returns its id.
func (s *Store) Delete(ctx context.Context, userID string) (string, error) {
	var id string
	err := database.InTx(ctx, s.db, database.Owner(userID), func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, deletePersonaQuery, userID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	})
	if err != nil {
		return "", wrap("delete", err)
	}
	s.invalidatePublic(ctx)
	return id, nil
}

// ListPublic returns every public persona that has an agent. Rows without an
// agent id are skipped, not reported.
func (s *Store) ListPublic(ctx context.Context) ([]PublicPersona, error) {
	key, cacheable := s.listingCacheKey(ctx)
	if cacheable {
		if cached, err := s.cache.Get(ctx, key); err == nil {
			var out []PublicPersona
			if err := json.Unmarshal([]byte(cached), &out); err == nil {
				return out, nil
			}
			s.logger.Warn("discarding unreadable public listing cache entry", zap.String("key", key))
		} else if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("public listing cache read failed", zap.Error(err))
		}
	}

	out := make([]PublicPersona, 0)
	err := database.InTx(ctx, s.db, database.Anonymous(), func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, selectPublicPersonasQuery)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				pp      PublicPersona
				agentID sql.NullString
			)
			if err := rows.Scan(&pp.ID, &pp.AvatarURL, &agentID); err != nil {
				return err
			}
			if !agentID.Valid || strings.TrimSpace(agentID.String) == "" {
				continue
			}
			pp.AgentID = agentID.String
			pp.ConversationLink = ConversationLink(pp.AgentID)
			out = append(out, pp)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrap("list public", err)
	}

	if !cacheable {
		return out, nil
	}
	if b, err := json.Marshal(out); err == nil {
		if err := s.cache.Set(ctx, key, string(b), publicListingTTL); err != nil {
			s.logger.Warn("public listing cache write failed", zap.Error(err))
		}
	}
	return out, nil
}

func (s *Store) GetPublic(ctx context.Context, personaID string) (*PublicPersona, error) {
	if _, err := uuid.Parse(personaID); err != nil {
		return nil, ErrNotFound
	}
	var pp PublicPersona
	err := database.InTx(ctx, s.db, database.Anonymous(), func(tx *sql.Tx) error {
		var agentID sql.NullString
		err := tx.QueryRowContext(ctx, selectPublicPersonaQuery, personaID).Scan(&pp.ID, &pp.AvatarURL, &agentID)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && strings.TrimSpace(agentID.String) == "") {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		pp.AgentID = agentID.String
		pp.ConversationLink = ConversationLink(pp.AgentID)
		return nil
	})
	if err != nil {
		return nil, wrap("get public", err)
	}
	return &pp, nil
}

// ReconcileProfileLinks copies agent links from personas onto profiles that
// never got them. It only fills gaps and never deletes.
func (s *Store) ReconcileProfileLinks(ctx context.Context) (int64, error) {
	var n int64
	err := database.InTx(ctx, s.db, database.Service(), func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, reconcileProfileLinksQuery)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, wrap("reconcile profile links", err)
	}
	return n, nil
}

// listingCacheKey returns the cache key for the current generation. It must
// be read before the listing query. When the generation cannot be read the
// listing bypasses the cache.
func (s *Store) listingCacheKey(ctx context.Context) (string, bool) {
	gen, err := s.cache.Get(ctx, publicListingGen)
	switch {
	case errors.Is(err, cache.ErrMiss):
		gen = "0"
	case err != nil:
		s.logger.Warn("public listing generation read failed", zap.Error(err))
		return "", false
	}
	return publicListingKey + ":" + gen, true
}

func (s *Store) invalidatePublic(ctx context.Context) {
	if _, err := s.cache.Incr(ctx, publicListingGen); err != nil {
		s.logger.Warn("public listing cache invalidation failed", zap.Error(err))
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*Profile, error) {
	var (
		p                  Profile
		agentID, agentLink sql.NullString
	)
	err := row.Scan(&p.UserID, &p.FirstName, &p.LastName, &agentID, &agentLink, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.AgentID = nullable(agentID)
	p.AgentLink = nullable(agentLink)
	return &p, nil
}

func scanPersona(row rowScanner) (*Persona, error) {
	var (
		p                 Persona
		agentID, convLink sql.NullString
	)
	err := row.Scan(&p.ID, &p.UserID, &p.IsPublic, &agentID, &convLink, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.AgentID = agentID.String
	p.ConversationLink = convLink.String
	return &p, nil
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// wrap keeps the package sentinels matchable with errors.Is.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrPersonaExists) {
		return err
	}
	return fmt.Errorf("persona: %s: %w", op, err)
}
