package user

// User represents a user entity in the system.
type User struct {
	ID        int64   // ID is assigned by storage on first save
	Name      string  // Name is the display name of the user
	Email     string  // Email is the contact address of the user
	ImagePath *string // ImagePath is the stored image file name, nil when the user has no image
}

// ImageName returns the stored image file name and whether one is recorded.
func (u *User) ImageName() (string, bool) {
	if u == nil || u.ImagePath == nil || *u.ImagePath == "" {
		return "", false
	}
	return *u.ImagePath, true
}

// SetImage records name as the user's stored image.
func (u *User) SetImage(name string) {
	u.ImagePath = &name
}

// Clone returns a deep copy of u.
func (u User) Clone() User {
	if u.ImagePath != nil {
		p := *u.ImagePath
		u.ImagePath = &p
	}
	return u
}

// Equal reports whether u and other hold the same field values.
func (u User) Equal(other User) bool {
	if u.ID != other.ID || u.Name != other.Name || u.Email != other.Email {
		return false
	}
	a, aok := u.ImageName()
	b, bok := other.ImageName()
	return aok == bok && a == b
}
