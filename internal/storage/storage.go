package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("object not found")

// ObjectStore stores uploaded media and resolves public URLs for it.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// ObjectKey builds a collision-free key under prefix, keeping the file's
// extension when it has a sane one.
func ObjectKey(prefix, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 6 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	prefix = strings.Trim(prefix, "/")
	name := uuid.NewString() + ext
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// ThumbnailKey derives the thumbnail key stored next to an original object.
func ThumbnailKey(key string) string {
	ext := path.Ext(key)
	return strings.TrimSuffix(key, ext) + "_thumb.jpg"
}

func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}
