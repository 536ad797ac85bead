package userstestutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/brianvoe/gofakeit"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/satswap/satswap/models/users"
	"github.com/satswap/satswap/storage"
)

func init() {
	// fixtures don't need slow hashes
	users.BcryptCost = bcrypt.MinCost
}

// Username generates a random username that is very unlikely to collide
// with other generated usernames
func Username() string {
	return fmt.Sprintf("%s_%d", gofakeit.Username(), gofakeit.Number(0, 1000000))
}

// Password generates a random password that passes request validation
func Password() string {
	return gofakeit.Password(true, true, true, true, false, gofakeit.Number(8, 32))
}

// Profile generates a random complete trading profile
func Profile() users.Profile {
	return users.Profile{
		Name:            gofakeit.Name(),
		CardNumber:      fmt.Sprintf("4%015d", gofakeit.Number(0, 999999999)),
		LightningWallet: gofakeit.Email(),
		TelegramID:      "@" + gofakeit.Username(),
	}
}

// CreateUserOrFail creates a user with a random username and password, and
// an empty profile
func CreateUserOrFail(t testing.TB, store storage.Users) users.User {
	return CreateUserOrFailWithPassword(t, store, Password())
}

// CreateUserOrFailWithPassword creates a user with a random username and the
// given password
func CreateUserOrFailWithPassword(t testing.TB, store storage.Users, password string) users.User {
	t.Helper()
	hashed, err := users.HashPassword(password)
	require.NoError(t, err)

	u, err := store.InsertUser(context.Background(), Username(), hashed)
	require.NoError(t, err)
	return u
}

// CreateTraderOrFail creates a user with a complete profile, able to place
// and approve orders
func CreateTraderOrFail(t testing.TB, store storage.Users) users.User {
	t.Helper()
	u := CreateUserOrFail(t, store)

	trader, err := store.UpdateProfile(context.Background(), u.ID, Profile())
	require.NoError(t, err)
	require.True(t, trader.HasCompleteProfile())
	return trader
}
