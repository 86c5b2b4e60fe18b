package storage

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	apperrors "user-image-service/pkg/errors"
)

// ImagesDir is the subdirectory of the static root that holds uploaded images.
const ImagesDir = "images"

const (
	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o644
)

// ImageStore keeps uploaded images as plain files under <root>/images.
type ImageStore struct {
	fs   afero.Fs
	root string
	log  *zap.Logger
}

// NewImageStore creates an ImageStore rooted at root on fs.
func NewImageStore(fs afero.Fs, root string, log *zap.Logger) *ImageStore {
	return &ImageStore{fs: fs, root: root, log: log}
}

// NewOSImageStore creates an ImageStore on the local disk.
func NewOSImageStore(root string, log *zap.Logger) *ImageStore {
	return NewImageStore(afero.NewOsFs(), root, log)
}

// Dir returns the directory holding the image files.
func (s *ImageStore) Dir() string {
	return filepath.Join(s.root, ImagesDir)
}

// Path returns the full path of the image file called name.
// Every file operation on images goes through here.
func (s *ImageStore) Path(name string) string {
	return filepath.Join(s.Dir(), filepath.Base(name))
}

// Write stores the full content of r as name, replacing any existing file.
// The images directory is created when missing.
func (s *ImageStore) Write(name string, r io.Reader) (int64, error) {
	// MkdirAll succeeds when a concurrent request created the directory first
	if err := s.fs.MkdirAll(s.Dir(), dirPerm); err != nil {
		s.log.Error("failed to create image directory", zap.String("dir", s.Dir()), zap.Error(err))
		return 0, apperrors.NewFileSystemError("mkdir", s.Dir(), err)
	}

	path := s.Path(name)
	f, err := s.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		s.log.Error("failed to create image file", zap.String("path", path), zap.Error(err))
		return 0, apperrors.NewFileSystemError("create", path, err)
	}

	n, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		s.log.Error("failed to write image file", zap.String("path", path), zap.Int64("written", n), zap.Error(err))
		return n, apperrors.NewFileSystemError("write", path, err)
	}

	s.log.Debug("image written", zap.String("path", path), zap.Int64("bytes", n))
	return n, nil
}

// Remove deletes the image file called name. A missing file is not an error.
func (s *ImageStore) Remove(name string) error {
	path := s.Path(name)

	exists, err := afero.Exists(s.fs, path)
	if err != nil {
		return apperrors.NewFileSystemError("stat", path, err)
	}
	if !exists {
		s.log.Debug("image already absent", zap.String("path", path))
		return nil
	}

	if err := s.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Error("failed to remove image file", zap.String("path", path), zap.Error(err))
		return apperrors.NewFileSystemError("remove", path, err)
	}

	s.log.Debug("image removed", zap.String("path", path))
	return nil
}

// Exists reports whether the image file called name is present.
func (s *ImageStore) Exists(name string) (bool, error) {
	ok, err := afero.Exists(s.fs, s.Path(name))
	if err != nil {
		return false, apperrors.NewFileSystemError("stat", s.Path(name), err)
	}
	return ok, nil
}

// HTTPDir exposes the image files for static serving. Directory listings
// are not served.
func (s *ImageStore) HTTPDir() http.FileSystem {
	return filesOnly{afero.NewHttpFs(s.fs).Dir(s.Dir())}
}

type filesOnly struct {
	http.FileSystem
}

func (fs filesOnly) Open(name string) (http.File, error) {
	f, err := fs.FileSystem.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}
