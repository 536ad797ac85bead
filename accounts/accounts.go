// Package accounts handles credentials and profiles: registration, login and
// profile reads and updates.
package accounts

import (
	"context"

	"github.com/pkg/errors"

	"github.com/satswap/satswap/build"
	"github.com/satswap/satswap/models/users"
	"github.com/satswap/satswap/storage"
)

var log = build.AddSubLogger("ACCT")

// Service is the credential and profile store
type Service struct {
	store         storage.Users
	checkPassword func(users.User, string) error
}

// NewService returns a Service persisting to the given store
func NewService(store storage.Users) *Service {
	return &Service{store: store, checkPassword: users.CheckPassword}
}

// Register creates a user with the given credentials. Only a salted hash of
// the password is stored.
func (s *Service) Register(ctx context.Context, username, password string) (users.User, error) {
	hashed, err := users.HashPassword(password)
	if err != nil {
		return users.User{}, err
	}

	user, err := s.store.InsertUser(ctx, username, hashed)
	if err != nil {
		if errors.Is(err, users.ErrUsernameTaken) {
			log.WithField("username", username).Info("Username already taken")
			return users.User{}, users.ErrUsernameTaken
		}
		return users.User{}, errors.Wrap(err, "could not register user")
	}
	return user, nil
}

// Authenticate returns the user with the given credentials. Unknown
// usernames and wrong passwords both give users.ErrInvalidCredentials, and
// both cost a bcrypt comparison.
func (s *Service) Authenticate(ctx context.Context, username, password string) (users.User, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			_ = s.checkPassword(users.UnknownUser(), password)
			return users.User{}, users.ErrInvalidCredentials
		}
		return users.User{}, errors.Wrap(err, "could not look up user")
	}

	if err := s.checkPassword(user, password); err != nil {
		log.WithField("userId", user.ID).Info("Wrong password")
		return users.User{}, err
	}
	return user, nil
}

// GetProfile returns the user with the given ID
func (s *Service) GetProfile(ctx context.Context, userID int) (users.User, error) {
	return s.store.GetUser(ctx, userID)
}

// UpdateProfile overwrites all four profile fields of the user
func (s *Service) UpdateProfile(ctx context.Context, userID int, profile users.Profile) (users.User, error) {
	user, err := s.store.UpdateProfile(ctx, userID, profile)
	if err != nil {
		return users.User{}, err
	}
	log.WithField("userId", userID).
		WithField("complete", profile.IsComplete()).
		Info("Updated profile")
	return user, nil
}
