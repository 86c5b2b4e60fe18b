package user

import (
	"bytes"
	"io"
)

// Image is an uploaded image file waiting to be stored.
type Image struct {
	FileName string    // FileName is the name supplied by the client
	Size     int64     // Size is the declared content length in bytes
	Content  io.Reader // Content streams the image bytes
}

// NewImage wraps an in-memory image.
func NewImage(fileName string, data []byte) *Image {
	return &Image{
		FileName: fileName,
		Size:     int64(len(data)),
		Content:  bytes.NewReader(data),
	}
}

// IsEmpty reports whether there is no image content to store.
func (img *Image) IsEmpty() bool {
	return img == nil || img.Content == nil || img.Size <= 0
}
