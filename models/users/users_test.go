package users

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/brianvoe/gofakeit"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var userColumns = []string{
	"id", "username", "hashed_password", "name", "card_number",
	"lightning_wallet", "telegram_id", "created_at", "updated_at",
}

func init() {
	BcryptCost = bcrypt.MinCost
	gofakeit.Seed(0)
}

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return sqlx.NewDb(mockDB, "postgres"), mock
}

func TestProfile_IsComplete(t *testing.T) {
	t.Parallel()

	complete := Profile{
		Name:            "Ali",
		CardNumber:      "6037991234567890",
		LightningWallet: "ali@getalby.com",
		TelegramID:      "@ali",
	}
	assert.True(t, complete.IsComplete())

	tests := []struct {
		name  string
		strip func(p *Profile)
	}{
		{"no name", func(p *Profile) { p.Name = "" }},
		{"no card number", func(p *Profile) { p.CardNumber = "" }},
		{"no wallet", func(p *Profile) { p.LightningWallet = "" }},
		{"no telegram", func(p *Profile) { p.TelegramID = "" }},
	}
	for _, tt := range tests {
		p := complete
		tt.strip(&p)
		assert.False(t, p.IsComplete(), tt.name)
	}

	assert.False(t, User{}.HasCompleteProfile(), "a fresh user has no profile")
}

func TestUser_Profile(t *testing.T) {
	t.Parallel()
	name := "Ali"
	u := User{Name: &name}
	assert.Equal(t, Profile{Name: "Ali"}, u.Profile())
}

func TestCheckPassword(t *testing.T) {
	t.Parallel()

	password := gofakeit.Password(true, true, true, true, false, 16)
	hashed, err := HashPassword(password)
	require.NoError(t, err)
	assert.NotEqual(t, []byte(password), hashed, "password must not be stored in plain text")

	user := User{ID: 1, HashedPassword: hashed}
	assert.NoError(t, CheckPassword(user, password))
	assert.Equal(t, ErrInvalidCredentials, CheckPassword(user, password+"x"))
	assert.Equal(t, ErrInvalidCredentials, CheckPassword(User{}, password),
		"a user without a hash never matches")
}

func TestUnknownUser(t *testing.T) {
	t.Parallel()

	unknown := UnknownUser()
	cost, err := bcrypt.Cost(unknown.HashedPassword)
	require.NoError(t, err)
	assert.Equal(t, BcryptCost, cost)
	assert.Zero(t, unknown.ID)

	assert.Equal(t, unknown.HashedPassword, UnknownUser().HashedPassword, "hash is made once")
	assert.Equal(t, ErrInvalidCredentials, CheckPassword(unknown, "password"))
}

func TestInsert(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("create a user", func(t *testing.T) {
		d, mock := newMock(t)
		now := time.Now()
		mock.ExpectQuery("INSERT INTO users").
			WithArgs("ali", []byte("hash")).
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow(1, "ali", []byte("hash"), nil, nil, nil, nil, now, now))

		user, err := Insert(ctx, d, "ali", []byte("hash"))
		require.NoError(t, err)
		assert.Equal(t, 1, user.ID)
		assert.Equal(t, "ali", user.Username)
		assert.Nil(t, user.Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reject a taken username", func(t *testing.T) {
		d, mock := newMock(t)
		mock.ExpectQuery("INSERT INTO users").
			WillReturnError(&pq.Error{Code: "23505", Constraint: "users_username_key"})

		_, err := Insert(ctx, d, "ali", []byte("hash"))
		assert.Equal(t, ErrUsernameTaken, err)
	})

	t.Run("wrap other errors", func(t *testing.T) {
		d, mock := newMock(t)
		mock.ExpectQuery("INSERT INTO users").
			WillReturnError(&pq.Error{Code: "08006"})

		_, err := Insert(ctx, d, "ali", []byte("hash"))
		require.Error(t, err)
		assert.NotEqual(t, ErrUsernameTaken, err)
		assert.Contains(t, err.Error(), "could not insert user")
	})
}

func TestGetByID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("find a user", func(t *testing.T) {
		d, mock := newMock(t)
		now := time.Now()
		mock.ExpectQuery("SELECT (.+) FROM users WHERE id=").
			WithArgs(7).
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow(7, "bob", []byte("hash"), "Bob", "6037991234567890", "bob@ln.tips", "@bob", now, now))

		user, err := GetByID(ctx, d, 7)
		require.NoError(t, err)
		assert.True(t, user.HasCompleteProfile())
		assert.Equal(t, "@bob", *user.TelegramID)
	})

	t.Run("missing user", func(t *testing.T) {
		d, mock := newMock(t)
		mock.ExpectQuery("SELECT (.+) FROM users WHERE id=").
			WithArgs(8).
			WillReturnRows(sqlmock.NewRows(userColumns))

		_, err := GetByID(ctx, d, 8)
		assert.Equal(t, ErrUserNotFound, err)
	})
}

func TestGetByUsername(t *testing.T) {
	t.Parallel()
	d, mock := newMock(t)
	mock.ExpectQuery("SELECT (.+) FROM users WHERE username=").
		WithArgs("Ali").
		WillReturnRows(sqlmock.NewRows(userColumns))

	_, err := GetByUsername(context.Background(), d, "Ali")
	assert.Equal(t, ErrUserNotFound, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProfile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("empty fields are stored as NULL", func(t *testing.T) {
		d, mock := newMock(t)
		now := time.Now()
		mock.ExpectQuery("UPDATE users").
			WithArgs(3, "Ali", nil, "ali@getalby.com", nil).
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow(3, "ali", []byte("hash"), "Ali", nil, "ali@getalby.com", nil, now, now))

		user, err := UpdateProfile(ctx, d, 3, Profile{Name: "Ali", LightningWallet: "ali@getalby.com"})
		require.NoError(t, err)
		assert.False(t, user.HasCompleteProfile())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown user", func(t *testing.T) {
		d, mock := newMock(t)
		mock.ExpectQuery("UPDATE users").
			WillReturnRows(sqlmock.NewRows(userColumns))

		_, err := UpdateProfile(ctx, d, 3, Profile{})
		assert.Equal(t, ErrUserNotFound, err)
	})
}
