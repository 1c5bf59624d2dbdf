package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"resumepersona/backend/services/database"
)

var (
	ErrDuplicateAccount    = errors.New("identity: account already exists")
	ErrInvalidCredentials  = errors.New("identity: invalid credentials")
	ErrNotConfirmed        = errors.New("identity: email not confirmed")
	ErrInvalidConfirmation = errors.New("identity: invalid or expired confirmation")
	ErrNotFound            = errors.New("identity: user not found")
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Confirmed bool      `json:"confirmed"`
	CreatedAt time.Time `json:"created_at"`
}

// Metadata is copied into the user's profile row on sign-up.
type Metadata struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type SignUpInput struct {
	Email    string
	Password string
	Metadata Metadata
	// RedirectTarget is where the confirmation link sends the user.
	RedirectTarget string
}

// Mailer delivers confirmation links.
type Mailer interface {
	SendConfirmation(ctx context.Context, email, link string) error
}

type Options struct {
	RequireConfirmation bool
	ConfirmationTTL     time.Duration
	// PublicBaseURL prefixes /api/auth/confirm in confirmation links.
	PublicBaseURL string
}

// Store is the Postgres-backed identity provider.
type Store struct {
	db     *sql.DB
	mailer Mailer
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

func NewStore(db *sql.DB, mailer Mailer, opts Options, logger *zap.Logger) *Store {
	if opts.ConfirmationTTL <= 0 {
		opts.ConfirmationTTL = 48 * time.Hour
	}
	return &Store{db: db, mailer: mailer, opts: opts, logger: logger, now: time.Now}
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp creates the user and its profile in one transaction. When
// confirmation is required the user is returned unconfirmed and a link is
// sent through the Mailer.
func (s *Store) SignUp(ctx context.Context, in SignUpInput) (*User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("identity: hash password: %w", err)
	}

	now := s.now().UTC()
	user := &User{
		ID:        uuid.NewString(),
		Email:     NormalizeEmail(in.Email),
		Confirmed: !s.opts.RequireConfirmation,
		CreatedAt: now,
	}
	var confirmedAt *time.Time
	if user.Confirmed {
		confirmedAt = &now
	}
	confirmToken := uuid.NewString()

	err = database.InTx(ctx, s.db, database.Owner(user.ID), func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, insertUserQuery, user.ID, user.Email, string(hashed), confirmedAt, now)
		if err != nil {
			if database.IsUniqueViolation(err, "") {
				return ErrDuplicateAccount
			}
			return fmt.Errorf("insert user: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insertProfileQuery, user.ID,
			strings.TrimSpace(in.Metadata.FirstName), strings.TrimSpace(in.Metadata.LastName)); err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}
		if user.Confirmed {
			return nil
		}
		if _, err := tx.ExecContext(ctx, insertConfirmationQuery,
			confirmToken, user.ID, in.RedirectTarget, now.Add(s.opts.ConfirmationTTL)); err != nil {
			return fmt.Errorf("insert confirmation: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateAccount) {
			return nil, err
		}
		return nil, fmt.Errorf("identity: sign up: %w", err)
	}

	if !user.Confirmed {
		link := strings.TrimRight(s.opts.PublicBaseURL, "/") + "/api/auth/confirm?token=" + url.QueryEscape(confirmToken)
		if err := s.mailer.SendConfirmation(ctx, user.Email, link); err != nil {
			// the account exists; the user can ask for sign-in help
			s.logger.Warn("confirmation delivery failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	return user, nil
}

// SignIn checks the password and that the email is confirmed.
func (s *Store) SignIn(ctx context.Context, email, password string) (*User, error) {
	var (
		user        User
		hash        string
		confirmedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, selectUserByEmailQuery, NormalizeEmail(email)).
		Scan(&user.ID, &user.Email, &hash, &confirmedAt, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("identity: sign in: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !confirmedAt.Valid {
		return nil, ErrNotConfirmed
	}
	user.Confirmed = true
	return &user, nil
}

// Confirm consumes a confirmation token and returns its redirect target.
func (s *Store) Confirm(ctx context.Context, token string) (string, error) {
	if _, err := uuid.Parse(token); err != nil {
		return "", ErrInvalidConfirmation
	}

	var redirect string
	err := database.InTx(ctx, s.db, database.Anonymous(), func(tx *sql.Tx) error {
		var (
			userID    string
			expiresAt time.Time
		)
		err := tx.QueryRowContext(ctx, selectConfirmationQuery, token).Scan(&userID, &redirect, &expiresAt)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidConfirmation
		}
		if err != nil {
			return fmt.Errorf("select confirmation: %w", err)
		}
		if !expiresAt.After(s.now()) {
			return ErrInvalidConfirmation
		}
		if _, err := tx.ExecContext(ctx, confirmUserQuery, userID); err != nil {
			return fmt.Errorf("confirm user: %w", err)
		}
		if _, err := tx.ExecContext(ctx, deleteConfirmationQuery, token); err != nil {
			return fmt.Errorf("delete confirmation: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidConfirmation) {
			return "", err
		}
		return "", fmt.Errorf("identity: confirm: %w", err)
	}
	return redirect, nil
}

func (s *Store) Get(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	var (
		user        User
		confirmedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, selectUserByIDQuery, id).
		Scan(&user.ID, &user.Email, &confirmedAt, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("identity: get: %w", err)
	}
	user.Confirmed = confirmedAt.Valid
	return &user, nil
}

// LogMailer logs confirmation links instead of sending mail.
type LogMailer struct {
	Logger *zap.Logger
}

func (m LogMailer) SendConfirmation(_ context.Context, email, link string) error {
	m.Logger.Info("confirmation link issued", zap.String("email", email), zap.String("link", link))
	return nil
}
