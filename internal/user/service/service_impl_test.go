package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/promoreel/promoreel/internal/config"
	ledgerservice "github.com/promoreel/promoreel/internal/ledger/service"
	userdomain "github.com/promoreel/promoreel/internal/user/domain"
	"github.com/promoreel/promoreel/internal/user/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	stmts := []string{
		`CREATE TABLE users (
			id INTEGER PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL DEFAULT '',
			coins INTEGER NOT NULL DEFAULT 0,
			coins_expire_at TIMESTAMP,
			session_token TEXT,
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		)`,
		`CREATE TABLE coin_transactions (
			id INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			amount INTEGER NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			external_reference TEXT,
			created_at TIMESTAMP
		)`,
	}
	for _, stmt := range stmts {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) userdomain.Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	ledger := ledgerservice.NewService(ledgerservice.Params{DB: db, Log: zap.NewNop(), GenID: node})
	return NewService(Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Repo:    repository.Provide(),
		Ledger:  ledger,
		Pricing: config.NewStaticPricingConfigHolder(config.DefaultPricingConfig()),
	})
}

func TestSignIn_ProvisionsWithWelcomeBonus(t *testing.T) {
	db := newTestDB(t, "user_signin_provision")
	svc := newTestService(t, db)

	res, err := svc.SignIn(context.Background(), "New@Example.com", "New User")
	require.NoError(t, err)

	assert.True(t, res.Created)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "new@example.com", res.User.Email)
	assert.Equal(t, int64(40), res.User.Coins)
	assert.NotNil(t, res.User.CoinsExpireAt)

	var kind string
	require.NoError(t, db.Raw(
		`SELECT kind FROM coin_transactions WHERE user_id = ?`, res.User.ID,
	).Scan(&kind).Error)
	assert.Equal(t, "bonus", kind)
}

func TestSignIn_ExistingUserRotatesToken(t *testing.T) {
	db := newTestDB(t, "user_signin_existing")
	svc := newTestService(t, db)

	first, err := svc.SignIn(context.Background(), "repeat@example.com", "Repeat")
	require.NoError(t, err)

	second, err := svc.SignIn(context.Background(), "repeat@example.com", "Repeat")
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.User.ID, second.User.ID)
	assert.NotEqual(t, first.Token, second.Token)

	// The welcome bonus lands only on the first sign-in.
	var count int64
	require.NoError(t, db.Raw(
		`SELECT COUNT(*) FROM coin_transactions WHERE user_id = ?`, first.User.ID,
	).Scan(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSignIn_InvalidEmail(t *testing.T) {
	db := newTestDB(t, "user_signin_invalid")
	svc := newTestService(t, db)

	for _, email := range []string{"", "   ", "not-an-email"} {
		_, err := svc.SignIn(context.Background(), email, "")
		assert.ErrorIs(t, err, userdomain.ErrInvalidEmail, "email %q", email)
	}
}

func TestAuthenticate(t *testing.T) {
	db := newTestDB(t, "user_authenticate")
	svc := newTestService(t, db)

	res, err := svc.SignIn(context.Background(), "auth@example.com", "Auth")
	require.NoError(t, err)

	user, err := svc.Authenticate(context.Background(), res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, user.ID)

	_, err = svc.Authenticate(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, userdomain.ErrUnauthorized)

	_, err = svc.Authenticate(context.Background(), "  ")
	assert.ErrorIs(t, err, userdomain.ErrUnauthorized)
}

func TestGet_NotFound(t *testing.T) {
	db := newTestDB(t, "user_get_missing")
	svc := newTestService(t, db)

	_, err := svc.Get(context.Background(), snowflake.ID(987654321))
	assert.ErrorIs(t, err, userdomain.ErrUserNotFound)
}
