package gormdb

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	domain "user-image-service/internal/domain/user"
	usecase "user-image-service/internal/usecase/user"
	apperrors "user-image-service/pkg/errors"
)

var (
	_ usecase.SessionFactory = (*Store)(nil)
	_ usecase.Session        = (*Session)(nil)
)

// errConcurrentChange is returned when a tracked row vanished before commit.
var errConcurrentChange = errors.New("row was changed or deleted by another session")

// Store opens Sessions over a GORM connection.
type Store struct {
	db  *gorm.DB    // GORM database connection
	log *zap.Logger // Structured logger for database operations
}

// NewStore creates a new instance of Store.
func NewStore(db *gorm.DB, log *zap.Logger) *Store {
	return &Store{db: db, log: log}
}

// NewSession opens an empty unit of work.
func (s *Store) NewSession() usecase.Session {
	return &Session{
		db:      s.db,
		log:     s.log,
		tracked: make(map[int64]*entry),
		removed: make(map[int64]*domain.User),
	}
}

// Migrate creates or updates the users table.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&UserSchema{}); err != nil {
		return apperrors.NewStorageError("migrate", err)
	}
	return nil
}

type entry struct {
	user     *domain.User
	snapshot domain.User // values as last loaded or saved
}

// Session is a GORM backed unit of work. Each loaded row is represented by a
// single *domain.User for the lifetime of the Session.
type Session struct {
	db      *gorm.DB
	log     *zap.Logger
	tracked map[int64]*entry
	added   []*domain.User
	removed map[int64]*domain.User
}

// List loads every user ordered by id.
func (s *Session) List(ctx context.Context) ([]*domain.User, error) {
	var models []UserSchema
	if err := s.db.WithContext(ctx).Order("id").Find(&models).Error; err != nil {
		s.log.Error("failed to list users from db", zap.Error(err))
		return nil, apperrors.NewStorageError("list users", err)
	}

	users := make([]*domain.User, 0, len(models))
	for _, m := range models {
		if _, gone := s.removed[m.ID]; gone {
			continue
		}
		users = append(users, s.track(m))
	}
	return users, nil
}

// Find returns the tracked user with id, loading it if needed.
func (s *Session) Find(ctx context.Context, id int64) (*domain.User, bool, error) {
	if _, gone := s.removed[id]; gone {
		return nil, false, nil
	}
	if e, ok := s.tracked[id]; ok {
		return e.user, true, nil
	}

	var m UserSchema
	err := s.db.WithContext(ctx).First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		s.log.Error("failed to get user from db", zap.Int64("id", id), zap.Error(err))
		return nil, false, apperrors.NewStorageError("find user", err)
	}

	return s.track(m), true, nil
}

// Add stages u for insertion.
func (s *Session) Add(u *domain.User) {
	if u == nil {
		return
	}
	for _, a := range s.added {
		if a == u {
			return
		}
	}
	s.added = append(s.added, u)
}

// Remove stages u for deletion. A user that was only added is unstaged.
func (s *Session) Remove(u *domain.User) {
	if u == nil {
		return
	}
	for i, a := range s.added {
		if a == u {
			s.added = append(s.added[:i], s.added[i+1:]...)
			return
		}
	}
	if e, ok := s.tracked[u.ID]; ok && e.user == u {
		s.removed[u.ID] = u
	}
}

// SaveChanges commits staged inserts, modified tracked users and staged
// removals in one transaction. On failure nothing is written and the staged
// state is kept as it was.
func (s *Session) SaveChanges(ctx context.Context) error {
	inserts := make([]UserSchema, len(s.added))
	for i, u := range s.added {
		inserts[i] = toSchema(u)
		inserts[i].ID = 0
	}

	var updates []UserSchema
	for id, e := range s.tracked {
		if _, gone := s.removed[id]; gone {
			continue
		}
		if !e.user.Equal(e.snapshot) {
			updates = append(updates, toSchema(e.user))
		}
	}

	if len(inserts) == 0 && len(updates) == 0 && len(s.removed) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range inserts {
			if err := tx.Create(&inserts[i]).Error; err != nil {
				return fmt.Errorf("insert user: %w", err)
			}
		}
		for _, m := range updates {
			res := tx.Model(&UserSchema{}).Where("id = ?", m.ID).Updates(map[string]any{
				"name":       m.Name,
				"email":      m.Email,
				"image_path": m.ImagePath,
			})
			if res.Error != nil {
				return fmt.Errorf("update user %d: %w", m.ID, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("update user %d: %w", m.ID, errConcurrentChange)
			}
		}
		for id := range s.removed {
			res := tx.Delete(&UserSchema{}, id)
			if res.Error != nil {
				return fmt.Errorf("delete user %d: %w", id, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("delete user %d: %w", id, errConcurrentChange)
			}
		}
		return nil
	})
	if err != nil {
		s.log.Error("failed to save changes", zap.Error(err))
		return apperrors.NewStorageError("save changes", err)
	}

	for i, u := range s.added {
		u.ID = inserts[i].ID
		s.tracked[u.ID] = &entry{user: u, snapshot: u.Clone()}
	}
	for _, e := range s.tracked {
		e.snapshot = e.user.Clone()
	}
	for id := range s.removed {
		delete(s.tracked, id)
	}

	s.log.Debug("changes saved",
		zap.Int("inserted", len(inserts)),
		zap.Int("updated", len(updates)),
		zap.Int("deleted", len(s.removed)),
	)
	s.added = nil
	s.removed = make(map[int64]*domain.User)
	return nil
}

// track returns the tracked instance for m, registering a new one if needed.
func (s *Session) track(m UserSchema) *domain.User {
	if e, ok := s.tracked[m.ID]; ok {
		return e.user
	}
	u := m.toDomain()
	s.tracked[u.ID] = &entry{user: u, snapshot: u.Clone()}
	return u
}
