package user

import (
	"context"
	"io"

	domain "user-image-service/internal/domain/user"
)

// UserUsecase defines the user operations exposed to transports.
type UserUsecase interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, in GetUserRequest) (*User, bool, error)
	CreateUser(ctx context.Context, in CreateUserRequest) (*User, error)
	UpdateUser(ctx context.Context, in UpdateUserRequest) (*User, bool, error)
	DeleteUser(ctx context.Context, in DeleteUserRequest) (bool, error)
}

// Session is a unit of work over the users table. Entities returned by
// List and Find are tracked, and SaveChanges writes every staged insert,
// every changed tracked entity and every staged removal in one transaction.
// A Session is not safe for concurrent use.
type Session interface {
	List(ctx context.Context) ([]*domain.User, error)
	Find(ctx context.Context, id int64) (*domain.User, bool, error)
	Add(u *domain.User)
	Remove(u *domain.User)
	SaveChanges(ctx context.Context) error
}

// SessionFactory opens a fresh Session for each operation.
type SessionFactory interface {
	NewSession() Session
}

// ImageStore persists image files by name.
type ImageStore interface {
	Write(name string, r io.Reader) (int64, error)
	Remove(name string) error
}
