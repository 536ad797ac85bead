package users

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/satswap/satswap/build"
	"github.com/satswap/satswap/db"
)

var log = build.AddSubLogger("USER")

// User is a database table. The four profile fields stay NULL until the user
// fills in their profile.
type User struct {
	ID             int    `db:"id" json:"id"`
	Username       string `db:"username" json:"username"`
	HashedPassword []byte `db:"hashed_password" json:"-"`

	Name            *string `db:"name" json:"name"`
	CardNumber      *string `db:"card_number" json:"cardNumber"`
	LightningWallet *string `db:"lightning_wallet" json:"lightningWallet"`
	TelegramID      *string `db:"telegram_id" json:"telegramId"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Profile is the trading metadata a user has to fill in before they can
// place or approve orders
type Profile struct {
	Name            string `json:"name"`
	CardNumber      string `json:"cardNumber"`
	LightningWallet string `json:"lightningWallet"`
	TelegramID      string `json:"telegramId"`
}

// IsComplete is true when every profile field is set
func (p Profile) IsComplete() bool {
	return p.Name != "" && p.CardNumber != "" && p.LightningWallet != "" && p.TelegramID != ""
}

// Profile extracts the trading profile of the user
func (u User) Profile() Profile {
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	return Profile{
		Name:            deref(u.Name),
		CardNumber:      deref(u.CardNumber),
		LightningWallet: deref(u.LightningWallet),
		TelegramID:      deref(u.TelegramID),
	}
}

// HasCompleteProfile is a shorthand for u.Profile().IsComplete()
func (u User) HasCompleteProfile() bool {
	return u.Profile().IsComplete()
}

// Exported errors
var (
	// ErrUsernameTaken means another user already registered with that exact
	// username
	ErrUsernameTaken = errors.New("username is already taken")
	// ErrInvalidCredentials is returned for both unknown usernames and wrong
	// passwords, so callers can't tell which one it was
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserNotFound       = errors.New("user not found")
	// ErrIncompleteProfile means the user must fill in their profile before
	// trading
	ErrIncompleteProfile = errors.New("profile is incomplete")
)

// BcryptCost is the work factor passwords are hashed with. Tests lower it.
var BcryptCost = bcrypt.DefaultCost

const (
	selectFromUsersTable = "SELECT id, username, hashed_password, name, card_number, lightning_wallet, telegram_id, created_at, updated_at FROM users"

	returningFromUsersTable = "RETURNING id, username, hashed_password, name, card_number, lightning_wallet, telegram_id, created_at, updated_at"

	uniqueUsernameConstraint = "users_username_key"
	uniqueViolation          = "23505"
)

// HashPassword salts and hashes the given password with bcrypt
func HashPassword(password string) ([]byte, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return nil, errors.Wrap(err, "could not hash password")
	}
	return hashed, nil
}

// CheckPassword compares the given password with the stored hash of the user
func CheckPassword(user User, password string) error {
	if err := bcrypt.CompareHashAndPassword(user.HashedPassword, []byte(password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			log.WithError(err).WithField("userId", user.ID).Error("Could not compare password hash")
		}
		return ErrInvalidCredentials
	}
	return nil
}

const unknownUserPassword = "satswap-unknown-user"

var (
	unknownUserMu     sync.Mutex
	unknownUserHashes = map[int][]byte{}
)

// UnknownUser is a user that exists nowhere. Its hash is made with the
// current BcryptCost, so checking a password against it takes as long as
// checking the password of a real user.
func UnknownUser() User {
	unknownUserMu.Lock()
	defer unknownUserMu.Unlock()

	hashed, ok := unknownUserHashes[BcryptCost]
	if !ok {
		var err error
		if hashed, err = HashPassword(unknownUserPassword); err != nil {
			log.WithError(err).Error("Could not hash password of unknown user")
			return User{}
		}
		unknownUserHashes[BcryptCost] = hashed
	}
	return User{HashedPassword: hashed}
}

// Insert creates a user with the given credentials and an empty profile
func Insert(ctx context.Context, q db.Querier, username string, hashedPassword []byte) (User, error) {
	query := fmt.Sprintf(`INSERT INTO users (username, hashed_password)
		VALUES ($1, $2) %s`, returningFromUsersTable)

	var user User
	if err := sqlx.GetContext(ctx, q, &user, query, username, hashedPassword); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation &&
			pqErr.Constraint == uniqueUsernameConstraint {
			return User{}, ErrUsernameTaken
		}
		return User{}, errors.Wrap(err, "could not insert user")
	}

	log.WithFields(logrus.Fields{
		"userId":   user.ID,
		"username": user.Username,
	}).Info("Created user")
	return user, nil
}

// GetByID selects the user with the given ID
func GetByID(ctx context.Context, q db.Querier, id int) (User, error) {
	var user User
	query := selectFromUsersTable + " WHERE id=$1 LIMIT 1"
	if err := sqlx.GetContext(ctx, q, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, errors.Wrapf(err, "GetByID(%d)", id)
	}
	return user, nil
}

// GetByUsername selects the user with exactly the given username. The match
// is case sensitive.
func GetByUsername(ctx context.Context, q db.Querier, username string) (User, error) {
	var user User
	query := selectFromUsersTable + " WHERE username=$1 LIMIT 1"
	if err := sqlx.GetContext(ctx, q, &user, query, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, errors.Wrapf(err, "GetByUsername(%s)", username)
	}
	return user, nil
}

// GetAll reads all users, oldest first
func GetAll(ctx context.Context, q db.Querier) ([]User, error) {
	queryResult := []User{}
	if err := sqlx.SelectContext(ctx, q, &queryResult, selectFromUsersTable+" ORDER BY id"); err != nil {
		return nil, errors.Wrap(err, "could not get users")
	}
	return queryResult, nil
}

// UpdateProfile overwrites all four profile fields of the given user. Empty
// fields are stored as NULL.
func UpdateProfile(ctx context.Context, q db.Querier, id int, profile Profile) (User, error) {
	query := fmt.Sprintf(`UPDATE users
		SET name = $2, card_number = $3, lightning_wallet = $4, telegram_id = $5, updated_at = now()
		WHERE id = $1 %s`, returningFromUsersTable)

	var user User
	err := sqlx.GetContext(ctx, q, &user, query, id,
		nullable(profile.Name),
		nullable(profile.CardNumber),
		nullable(profile.LightningWallet),
		nullable(profile.TelegramID),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, errors.Wrapf(err, "could not update profile of user %d", id)
	}

	log.WithField("userId", id).Debug("Updated profile")
	return user, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
