package gormdb

import (
	domain "user-image-service/internal/domain/user"
)

// UserSchema represents the database schema for the users table.
type UserSchema struct {
	ID        int64   `gorm:"primaryKey;autoIncrement"` // Assigned by the database on insert
	Name      string  `gorm:"not null"`
	Email     string  `gorm:"not null"`
	ImagePath *string `gorm:"column:image_path"` // NULL when the user has no image
}

// TableName specifies the table name for the UserSchema model.
func (UserSchema) TableName() string {
	return "users"
}

func toSchema(u *domain.User) UserSchema {
	c := u.Clone()
	return UserSchema{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		ImagePath: c.ImagePath,
	}
}

func (m UserSchema) toDomain() *domain.User {
	return &domain.User{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		ImagePath: m.ImagePath,
	}
}
