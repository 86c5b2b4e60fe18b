package user

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"user-image-service/internal/adapter/cache"
	domain "user-image-service/internal/domain/user"
	apperrors "user-image-service/pkg/errors"
	"user-image-service/pkg/logger"
	"user-image-service/pkg/security"
)

var _ UserUsecase = (*Usecase)(nil)

// lookupTimeout bounds a shared GetUser database lookup.
const lookupTimeout = 5 * time.Second

func flightKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Usecase implements user management with image file side effects.
// Each operation opens its own Session from the injected factory.
type Usecase struct {
	sessions SessionFactory     // Opens one unit of work per operation
	images   ImageStore         // Image file storage
	cache    cache.UserCache    // Optional read cache, nil disables caching
	log      *zap.Logger        // Logger for structured logging
	group    singleflight.Group // Collapses concurrent cache misses per id
	newID    func() string      // Prefix generator for stored image names
}

// New creates a new instance of Usecase. If c is nil, caching is disabled.
func New(sessions SessionFactory, images ImageStore, c cache.UserCache, log *zap.Logger) *Usecase {
	return &Usecase{
		sessions: sessions,
		images:   images,
		cache:    c,
		log:      log,
		newID:    uuid.NewString,
	}
}

// ListUsers returns every user. The result is empty, not nil, when there are none.
func (uc *Usecase) ListUsers(ctx context.Context) ([]User, error) {
	log := logger.WithContext(ctx, uc.log)

	rows, err := uc.sessions.NewSession().List(ctx)
	if err != nil {
		log.Error("failed to list users", zap.Error(err))
		return nil, err
	}

	users := make([]User, 0, len(rows))
	for _, u := range rows {
		users = append(users, *toDTO(u))
	}

	log.Debug("listed users", zap.Int("count", len(users)))
	return users, nil
}

// GetUser retrieves a user by ID. found is false when no such user exists.
// It uses cache-aside: the cache is checked first, then the database.
func (uc *Usecase) GetUser(ctx context.Context, in GetUserRequest) (*User, bool, error) {
	log := logger.WithContext(ctx, uc.log)

	if uc.cache != nil {
		cached, err := uc.cache.Get(ctx, in.ID)
		if err != nil {
			log.Warn("cache get error, falling back to database", zap.Int64("id", in.ID), zap.Error(err))
		} else if cached != nil {
			log.Debug("user retrieved from cache", zap.Int64("id", in.ID))
			return toDTO(cached), true, nil
		}
	}

	// Only one lookup per id reaches the database at a time. Waiters share
	// it, so it is not bound to the first caller's cancellation.
	v, err, _ := uc.group.Do(flightKey(in.ID), func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()

		// The generation is read before the row so a write committed
		// during the lookup keeps the result out of the cache.
		gen, cacheable := int64(0), false
		if uc.cache != nil {
			g, err := uc.cache.Generation(lookupCtx, in.ID)
			if err != nil {
				log.Warn("cache generation error, skipping cache fill", zap.Int64("id", in.ID), zap.Error(err))
			} else {
				gen, cacheable = g, true
			}
		}

		u, found, err := uc.sessions.NewSession().Find(lookupCtx, in.ID)
		if err != nil || !found {
			return nil, err
		}

		if cacheable {
			if _, err := uc.cache.Set(lookupCtx, u, gen); err != nil {
				log.Warn("failed to cache user", zap.Int64("id", in.ID), zap.Error(err))
			}
		}
		return u, nil
	})
	if err != nil {
		log.Error("failed to get user", zap.Int64("id", in.ID), zap.Error(err))
		return nil, false, err
	}
	if v == nil {
		log.Debug("user not found", zap.Int64("id", in.ID))
		return nil, false, nil
	}

	return toDTO(v.(*domain.User)), true, nil
}

// CreateUser stores the image, inserts the user and commits.
// If the commit fails the stored image is left on disk.
func (uc *Usecase) CreateUser(ctx context.Context, in CreateUserRequest) (*User, error) {
	log := logger.WithContext(ctx, uc.log)
	log.Info("creating user", zap.String("name", in.Name), zap.String("email", in.Email))

	imageName, err := uc.SaveImage(in.Image)
	if err != nil {
		log.Warn("failed to save image for new user", zap.Error(err))
		return nil, err
	}

	u := &domain.User{
		Name:  in.Name,
		Email: in.Email,
	}
	u.SetImage(imageName)

	session := uc.sessions.NewSession()
	session.Add(u)
	if err := session.SaveChanges(ctx); err != nil {
		log.Error("failed to create user", zap.String("image", imageName), zap.Error(err))
		return nil, err
	}

	log.Info("user created", zap.Int64("id", u.ID), zap.String("image", imageName))
	return toDTO(u), nil
}

// UpdateUser overwrites name and email and optionally replaces the image.
// found is false, with nothing changed, when the user does not exist.
func (uc *Usecase) UpdateUser(ctx context.Context, in UpdateUserRequest) (*User, bool, error) {
	log := logger.WithContext(ctx, uc.log)
	log.Info("updating user", zap.Int64("id", in.ID), zap.String("name", in.Name), zap.String("email", in.Email))

	session := uc.sessions.NewSession()
	u, found, err := session.Find(ctx, in.ID)
	if err != nil {
		log.Error("failed to load user for update", zap.Int64("id", in.ID), zap.Error(err))
		return nil, false, err
	}
	if !found {
		log.Warn("user to update not found", zap.Int64("id", in.ID))
		return nil, false, nil
	}

	if in.Image != nil {
		// Reject the upload before the current image is touched
		imageName, err := uc.imageName(in.Image)
		if err != nil {
			log.Warn("rejected replacement image", zap.Int64("id", in.ID), zap.Error(err))
			return nil, true, err
		}

		if old, ok := u.ImageName(); ok {
			if err := uc.DeleteImage(old); err != nil {
				log.Error("failed to delete previous image", zap.Int64("id", in.ID), zap.String("image", old), zap.Error(err))
				return nil, true, err
			}
		}

		if err := uc.writeImage(imageName, in.Image); err != nil {
			log.Error("failed to save replacement image", zap.Int64("id", in.ID), zap.Error(err))
			return nil, true, err
		}
		u.SetImage(imageName)
	}

	u.Name = in.Name
	u.Email = in.Email

	if err := session.SaveChanges(ctx); err != nil {
		log.Error("failed to update user", zap.Int64("id", in.ID), zap.Error(err))
		return nil, true, err
	}

	uc.invalidate(ctx, in.ID)
	return toDTO(u), true, nil
}

// DeleteUser removes the user's image file and row. It returns false when
// the user does not exist.
func (uc *Usecase) DeleteUser(ctx context.Context, in DeleteUserRequest) (bool, error) {
	log := logger.WithContext(ctx, uc.log)
	log.Info("deleting user", zap.Int64("id", in.ID))

	session := uc.sessions.NewSession()
	u, found, err := session.Find(ctx, in.ID)
	if err != nil {
		log.Error("failed to load user for delete", zap.Int64("id", in.ID), zap.Error(err))
		return false, err
	}
	if !found {
		log.Warn("user to delete not found", zap.Int64("id", in.ID))
		return false, nil
	}

	if name, ok := u.ImageName(); ok {
		if err := uc.DeleteImage(name); err != nil {
			log.Error("failed to delete user image", zap.Int64("id", in.ID), zap.String("image", name), zap.Error(err))
			return false, err
		}
	}

	session.Remove(u)
	if err := session.SaveChanges(ctx); err != nil {
		log.Error("failed to delete user", zap.Int64("id", in.ID), zap.Error(err))
		return false, err
	}

	uc.invalidate(ctx, in.ID)
	return true, nil
}

// SaveImage stores img under a fresh "<uuid>_<name>" file name and returns that name.
func (uc *Usecase) SaveImage(img *domain.Image) (string, error) {
	name, err := uc.imageName(img)
	if err != nil {
		return "", err
	}
	if err := uc.writeImage(name, img); err != nil {
		return "", err
	}
	return name, nil
}

// imageName validates img and derives the file name it will be stored under.
func (uc *Usecase) imageName(img *domain.Image) (string, error) {
	if img == nil {
		return "", apperrors.ErrImageRequired
	}
	if img.IsEmpty() {
		return "", apperrors.ErrImageEmpty
	}

	base, err := security.SanitizeFileName(img.FileName)
	if err != nil {
		return "", apperrors.NewValidationError("image", err.Error())
	}

	return fmt.Sprintf("%s_%s", uc.newID(), base), nil
}

func (uc *Usecase) writeImage(name string, img *domain.Image) error {
	if _, err := uc.images.Write(name, img.Content); err != nil {
		return err
	}
	uc.log.Debug("image saved", zap.String("image", name), zap.Int64("size", img.Size))
	return nil
}

// DeleteImage removes the stored image called name. A missing file is ignored.
func (uc *Usecase) DeleteImage(name string) error {
	return uc.images.Remove(name)
}

// invalidate detaches later GetUser calls from lookups started before the
// write and drops id from the cache. Call it after a successful commit.
func (uc *Usecase) invalidate(ctx context.Context, id int64) {
	uc.group.Forget(flightKey(id))
	if uc.cache == nil {
		return
	}
	if err := uc.cache.Invalidate(ctx, id); err != nil {
		logger.WithContext(ctx, uc.log).Warn("failed to invalidate cache", zap.Int64("id", id), zap.Error(err))
	}
}
