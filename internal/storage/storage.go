// Package storage keeps uploaded media on local disk under the uploads directory.
package storage

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/artverse/nova/internal/model"
	"github.com/google/uuid"
)

// URLPrefix is where uploads are served from.
const URLPrefix = "/uploads/"

var (
	ErrTooLarge    = errors.New("file too large")
	ErrUnsupported = errors.New("unsupported media type")
)

type Uploads struct {
	dir string
}

func NewUploads(dir string) (*Uploads, error) {
	if dir == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &Uploads{dir: dir}, nil
}

// Stored describes a saved upload.
type Stored struct {
	Name      string
	URL       string
	MediaType model.MediaType
	Size      int64
}

// SaveMedia stores an image or video of at most maxBytes.
func (u *Uploads) SaveMedia(fh *multipart.FileHeader, maxBytes int64) (Stored, error) {
	mt, ok := model.MediaTypeFromMIME(fh.Header.Get("Content-Type"))
	if !ok {
		return Stored{}, ErrUnsupported
	}
	s, err := u.save(fh, "", maxBytes)
	s.MediaType = mt
	return s, err
}

// SaveAvatar stores an image of at most maxBytes with an avatar- prefix.
func (u *Uploads) SaveAvatar(fh *multipart.FileHeader, maxBytes int64) (Stored, error) {
	mt, ok := model.MediaTypeFromMIME(fh.Header.Get("Content-Type"))
	if !ok || mt != model.MediaImage {
		return Stored{}, ErrUnsupported
	}
	s, err := u.save(fh, "avatar-", maxBytes)
	s.MediaType = mt
	return s, err
}

func (u *Uploads) save(fh *multipart.FileHeader, prefix string, maxBytes int64) (Stored, error) {
	if maxBytes > 0 && fh.Size > maxBytes {
		return Stored{}, ErrTooLarge
	}
	src, err := fh.Open()
	if err != nil {
		return Stored{}, err
	}
	defer src.Close()

	name := prefix + uuid.NewString() + strings.ToLower(filepath.Ext(filepath.Base(fh.Filename)))
	path := filepath.Join(u.dir, name)
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return Stored{}, err
	}

	var r io.Reader = src
	if maxBytes > 0 {
		r = io.LimitReader(src, maxBytes+1)
	}
	n, err := io.Copy(dst, r)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err == nil && maxBytes > 0 && n > maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(path)
		return Stored{}, err
	}
	return Stored{Name: name, URL: URLPrefix + name, Size: n}, nil
}

// Remove deletes a file previously returned by Save. Foreign or non-canonical
// URLs such as /uploads/x/../name are ignored.
func (u *Uploads) Remove(url string) error {
	if !strings.HasPrefix(url, URLPrefix) {
		return nil
	}
	name := strings.TrimPrefix(url, URLPrefix)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return nil
	}
	err := os.Remove(filepath.Join(u.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
