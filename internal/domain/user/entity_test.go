package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUser_ImageName(t *testing.T) {
	var nilUser *User
	_, ok := nilUser.ImageName()
	assert.False(t, ok)

	u := &User{ID: 1, Name: "Alice"}
	_, ok = u.ImageName()
	assert.False(t, ok)

	u.SetImage("abc_photo.jpg")
	name, ok := u.ImageName()
	assert.True(t, ok)
	assert.Equal(t, "abc_photo.jpg", name)
}

func TestUser_CloneIsDeep(t *testing.T) {
	u := User{ID: 1, Name: "Alice", Email: "alice@x.com"}
	u.SetImage("a.jpg")

	c := u.Clone()
	*u.ImagePath = "b.jpg"

	name, _ := c.ImageName()
	assert.Equal(t, "a.jpg", name)
	assert.False(t, u.Equal(c))
}

func TestUser_Equal(t *testing.T) {
	img := "a.jpg"
	same := "a.jpg"

	tests := []struct {
		name string
		a, b User
		want bool
	}{
		{name: "identical", a: User{ID: 1, Name: "A"}, b: User{ID: 1, Name: "A"}, want: true},
		{name: "different name", a: User{ID: 1, Name: "A"}, b: User{ID: 1, Name: "B"}, want: false},
		{name: "image pointers with same value", a: User{ID: 1, ImagePath: &img}, b: User{ID: 1, ImagePath: &same}, want: true},
		{name: "image added", a: User{ID: 1}, b: User{ID: 1, ImagePath: &img}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
		})
	}
}

func TestImage_IsEmpty(t *testing.T) {
	var nilImage *Image
	assert.True(t, nilImage.IsEmpty())
	assert.True(t, NewImage("a.jpg", nil).IsEmpty())
	assert.True(t, (&Image{FileName: "a.jpg", Size: 10}).IsEmpty())
	assert.False(t, NewImage("a.jpg", []byte("0123456789")).IsEmpty())
}
