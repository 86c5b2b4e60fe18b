package user

import domain "user-image-service/internal/domain/user"

// CreateUserRequest represents the request payload for creating a new user.
type CreateUserRequest struct {
	Name  string
	Email string
	Image *domain.Image // required
}

// UpdateUserRequest represents the request payload for updating an existing user.
// Name and Email always replace the stored values.
type UpdateUserRequest struct {
	ID    int64
	Name  string
	Email string
	Image *domain.Image // optional, nil keeps the current image
}

// DeleteUserRequest represents the request payload for deleting a user.
type DeleteUserRequest struct {
	ID int64
}

// GetUserRequest represents the request payload for retrieving a user.
type GetUserRequest struct {
	ID int64
}

// User represents a user DTO (Data Transfer Object) for API responses.
type User struct {
	ID        int64
	Name      string
	Email     string
	ImagePath *string
}

func toDTO(u *domain.User) *User {
	dto := &User{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
	}
	if name, ok := u.ImageName(); ok {
		dto.ImagePath = &name
	}
	return dto
}
