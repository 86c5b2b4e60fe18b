package gormdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	domain "user-image-service/internal/domain/user"
	apperrors "user-image-service/pkg/errors"
)

func setupTestStore(t *testing.T) (*Store, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "users.db")), &gorm.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	store := NewStore(db, zaptest.NewLogger(t))
	require.NoError(t, store.Migrate(context.Background()))
	return store, db
}

func seed(t *testing.T, store *Store, users ...*domain.User) {
	s := store.NewSession()
	for _, u := range users {
		s.Add(u)
	}
	require.NoError(t, s.SaveChanges(context.Background()))
}

func TestSession_AddAssignsIDs(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	alice := &domain.User{Name: "Alice", Email: "alice@x.com"}
	alice.SetImage("a_photo.jpg")
	bob := &domain.User{Name: "Bob", Email: "bob@x.com"}

	s := store.NewSession()
	s.Add(alice)
	s.Add(bob)
	s.Add(alice)
	require.NoError(t, s.SaveChanges(ctx))

	assert.Positive(t, alice.ID)
	assert.Positive(t, bob.ID)
	assert.NotEqual(t, alice.ID, bob.ID)

	got, found, err := store.NewSession().Find(ctx, alice.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, alice.Equal(*got))

	all, err := store.NewSession().List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSession_FindMissing(t *testing.T) {
	store, _ := setupTestStore(t)

	u, found, err := store.NewSession().Find(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, u)
}

func TestSession_IdentityMap(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	seed(t, store, &domain.User{Name: "Alice", Email: "alice@x.com"})

	s := store.NewSession()
	listed, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	found, ok, err := s.Find(ctx, listed[0].ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, listed[0], found)

	again, err := s.List(ctx)
	require.NoError(t, err)
	assert.Same(t, listed[0], again[0])
}

func TestSession_ChangeTracking(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	alice := &domain.User{Name: "Alice", Email: "alice@x.com"}
	alice.SetImage("a_photo.jpg")
	seed(t, store, alice)

	s := store.NewSession()
	u, _, err := s.Find(ctx, alice.ID)
	require.NoError(t, err)
	u.Name = "Alicia"
	u.ImagePath = nil
	require.NoError(t, s.SaveChanges(ctx))

	got, found, err := store.NewSession().Find(ctx, alice.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Alicia", got.Name)
	assert.Equal(t, "alice@x.com", got.Email)
	assert.Nil(t, got.ImagePath)
}

func TestSession_UnchangedSaveIsNoop(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	seed(t, store, &domain.User{Name: "Alice", Email: "alice@x.com"})

	s := store.NewSession()
	_, err := s.List(ctx)
	require.NoError(t, err)
	assert.NoError(t, s.SaveChanges(ctx))
	assert.NoError(t, store.NewSession().SaveChanges(ctx))
}

func TestSession_Remove(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	alice := &domain.User{Name: "Alice", Email: "alice@x.com"}
	bob := &domain.User{Name: "Bob", Email: "bob@x.com"}
	seed(t, store, alice, bob)

	s := store.NewSession()
	u, found, err := s.Find(ctx, alice.ID)
	require.NoError(t, err)
	require.True(t, found)
	s.Remove(u)

	// Staged removals are hidden from the same session
	_, found, err = s.Find(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SaveChanges(ctx))

	all, err := store.NewSession().List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, bob.ID, all[0].ID)
}

func TestSession_RemoveUnsavedAdd(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	s := store.NewSession()
	u := &domain.User{Name: "Ghost", Email: "ghost@x.com"}
	s.Add(u)
	s.Remove(u)
	require.NoError(t, s.SaveChanges(ctx))

	all, err := store.NewSession().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSession_SaveChangesFailureKeepsStagedState(t *testing.T) {
	store, db := setupTestStore(t)
	ctx := context.Background()
	alice := &domain.User{Name: "Alice", Email: "alice@x.com"}
	seed(t, store, alice)

	s := store.NewSession()
	u, _, err := s.Find(ctx, alice.ID)
	require.NoError(t, err)
	u.Name = "Alicia"
	added := &domain.User{Name: "Carol", Email: "carol@x.com"}
	s.Add(added)

	// Another writer deletes the row; the commit must roll back the insert too
	require.NoError(t, db.Delete(&UserSchema{}, alice.ID).Error)

	err = s.SaveChanges(ctx)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindStorage, apperrors.KindOf(err))
	assert.ErrorIs(t, err, errConcurrentChange)
	assert.Zero(t, added.ID)

	all, err := store.NewSession().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSession_ClosedDatabase(t *testing.T) {
	store, db := setupTestStore(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = store.NewSession().List(context.Background())
	assert.Equal(t, apperrors.KindStorage, apperrors.KindOf(err))

	_, _, err = store.NewSession().Find(context.Background(), 1)
	assert.Equal(t, apperrors.KindStorage, apperrors.KindOf(err))

	s := store.NewSession()
	s.Add(&domain.User{Name: "Alice"})
	assert.Equal(t, apperrors.KindStorage, apperrors.KindOf(s.SaveChanges(context.Background())))
}
