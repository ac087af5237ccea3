package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps objects on disk under Base. URLs point at the API's own
// content route.
type LocalStore struct {
	Base      string
	URLPrefix string
}

func NewLocalStore(base, urlPrefix string) (*LocalStore, error) {
	if err := os.MkdirAll(base, 0755); err != nil {
		return nil, err
	}
	return &LocalStore{Base: base, URLPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

func (s *LocalStore) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	if !validKey(key) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	target := s.path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", err
	}
	file, err := os.Create(target)
	if err != nil {
		return "", err
	}
	size, err := io.Copy(file, body)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && size == 0 {
		err = errors.New("empty object")
	}
	if err != nil {
		_ = os.Remove(target)
		return "", err
	}
	return s.URL(key), nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if !validKey(key) {
		return fmt.Errorf("invalid object key %q", key)
	}
	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (s *LocalStore) URL(key string) string {
	return s.URLPrefix + "/" + key
}

// Open returns the stored object for streaming back to clients.
func (s *LocalStore) Open(key string) (*os.File, error) {
	if !validKey(key) {
		return nil, ErrNotFound
	}
	file, err := os.Open(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return file, err
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.Base, filepath.FromSlash(key))
}
