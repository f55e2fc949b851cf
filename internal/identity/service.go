package identity

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ledgerwell/ledgerwell/internal/id"
	"github.com/ledgerwell/ledgerwell/internal/logging"
	"github.com/ledgerwell/ledgerwell/internal/model"
	"github.com/ledgerwell/ledgerwell/internal/store"
)

// Service provides user registration, authentication and profile updates.
type Service struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates an identity Service.
func NewService(s store.Store, logger *slog.Logger) *Service {
	return &Service{store: s, logger: logging.OrDiscard(logger), now: time.Now}
}

// RegisterParams holds the fields of a new user.
type RegisterParams struct {
	Username string
	Password string
	FullName string
	Email    string
	Phone    string
}

// Register creates a user. Usernames are unique and compared case-sensitively.
func (s *Service) Register(ctx context.Context, p RegisterParams) (model.User, error) {
	if strings.TrimSpace(p.Username) == "" {
		return model.User{}, fmt.Errorf("%w: username", model.ErrBlankField)
	}
	if p.Password == "" {
		return model.User{}, fmt.Errorf("%w: password", model.ErrBlankField)
	}

	u := model.User{
		ID:        id.NewUserID(),
		Username:  p.Username,
		Password:  p.Password,
		FullName:  strings.TrimSpace(p.FullName),
		Email:     strings.TrimSpace(p.Email),
		Phone:     strings.TrimSpace(p.Phone),
		CreatedAt: s.now().UTC().Truncate(store.Precision),
	}
	err := s.store.Update(ctx, func(tx store.Tx) error {
		return tx.InsertUser(ctx, u)
	})
	if err != nil {
		if errors.Is(err, model.ErrUsernameTaken) {
			s.logger.Debug("registration rejected", "username", p.Username, "error", err)
		} else {
			s.logger.Error("registration failed", "username", p.Username, "error", err)
		}
		return model.User{}, fmt.Errorf("registering %q: %w", p.Username, err)
	}

	s.logger.Info("user registered", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// Authenticate returns the user whose username and password both match.
// Unknown usernames and wrong passwords fail the same way.
func (s *Service) Authenticate(ctx context.Context, username, password string) (model.User, error) {
	var u model.User
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		u, err = tx.UserByUsername(ctx, username)
		return err
	})
	if errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return model.User{}, fmt.Errorf("authenticating %q: %w", username, err)
	}
	if subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) != 1 {
		return model.User{}, model.ErrInvalidCredentials
	}
	return u, nil
}

// Login authenticates and opens a Session for subsequent ledger calls.
func (s *Service) Login(ctx context.Context, username, password string) (model.Session, error) {
	u, err := s.Authenticate(ctx, username, password)
	if err != nil {
		s.logger.Debug("login rejected", "username", username, "error", err)
		return model.Session{}, err
	}
	return model.Session{
		UserID:    u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		StartedAt: s.now().UTC(),
	}, nil
}

// Profile returns the stored user.
func (s *Service) Profile(ctx context.Context, userID string) (model.User, error) {
	var u model.User
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		u, err = tx.UserByID(ctx, userID, false)
		return err
	})
	if err != nil {
		return model.User{}, fmt.Errorf("loading profile: %w", err)
	}
	return u, nil
}

// UpdateProfile replaces each non-blank field of p; blank fields keep their
// current value.
func (s *Service) UpdateProfile(ctx context.Context, userID string, p model.ProfileUpdate) error {
	changed := false
	err := s.store.Update(ctx, func(tx store.Tx) error {
		u, err := tx.UserByID(ctx, userID, true)
		if err != nil {
			return err
		}
		if changed = u.Apply(p); !changed {
			return nil
		}
		return tx.UpdateUser(ctx, u)
	})
	if err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	if changed {
		s.logger.Info("profile updated", "user_id", userID)
	}
	return nil
}
