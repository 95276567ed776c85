package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/promoreel/promoreel/internal/product/domain"
	"github.com/promoreel/promoreel/internal/product/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T, name string) (domain.Service, *snowflake.Node) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`CREATE TABLE products (
		id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		slug TEXT NOT NULL,
		image_url TEXT NOT NULL DEFAULT '',
		features TEXT NOT NULL DEFAULT '',
		concept TEXT NOT NULL DEFAULT '',
		target_audience TEXT NOT NULL DEFAULT '',
		caption TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP,
		updated_at TIMESTAMP
	)`).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(Params{DB: db, Log: zap.NewNop(), GenID: node, Repo: repository.Provide()})
	return svc, node
}

func TestSave_CreateAndUpdate(t *testing.T) {
	svc, node := newTestService(t, "product_save")
	userID := node.Generate()

	created, err := svc.Save(context.Background(), userID, domain.SaveRequest{
		Name:     "  Glow Serum  ",
		ImageURL: "https://cdn.example.com/serum.jpg",
		Features: "vitamin C, hyaluronic acid",
	})
	require.NoError(t, err)
	assert.Equal(t, "Glow Serum", created.Name)
	assert.Equal(t, "glow-serum", created.Slug)
	assert.Equal(t, userID, created.UserID)

	updated, err := svc.Save(context.Background(), userID, domain.SaveRequest{
		ID:       created.ID,
		Name:     "Glow Serum Pro",
		ImageURL: created.ImageURL,
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "glow-serum-pro", updated.Slug)

	got, err := svc.Get(context.Background(), userID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Glow Serum Pro", got.Name)
}

func TestSave_RequiresName(t *testing.T) {
	svc, node := newTestService(t, "product_save_noname")

	_, err := svc.Save(context.Background(), node.Generate(), domain.SaveRequest{Name: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)
}

func TestSave_UpdateMissingProduct(t *testing.T) {
	svc, node := newTestService(t, "product_update_missing")

	_, err := svc.Save(context.Background(), node.Generate(), domain.SaveRequest{
		ID:   node.Generate(),
		Name: "Ghost",
	})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestList_ScopedToOwner(t *testing.T) {
	svc, node := newTestService(t, "product_list_scope")
	owner := node.Generate()
	other := node.Generate()

	for _, name := range []string{"Candle", "Mug"} {
		_, err := svc.Save(context.Background(), owner, domain.SaveRequest{Name: name})
		require.NoError(t, err)
	}
	_, err := svc.Save(context.Background(), other, domain.SaveRequest{Name: "Poster"})
	require.NoError(t, err)

	products, err := svc.List(context.Background(), owner, 0)
	require.NoError(t, err)
	assert.Len(t, products, 2)
	for _, p := range products {
		assert.Equal(t, owner, p.UserID)
	}
}

func TestDelete(t *testing.T) {
	svc, node := newTestService(t, "product_delete")
	userID := node.Generate()

	created, err := svc.Save(context.Background(), userID, domain.SaveRequest{Name: "Tote Bag"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), userID, created.ID))

	_, err = svc.Get(context.Background(), userID, created.ID)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	err = svc.Delete(context.Background(), userID, created.ID)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}
