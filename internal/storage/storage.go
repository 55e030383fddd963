// Package storage persists uploaded case files and reads them back by URL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrOutsideStore is returned when a URL is neither served by the store nor fetchable.
var ErrOutsideStore = errors.New("url not served by this store")

// Object is a downloaded file.
type Object struct {
	Data        []byte
	ContentType string
	Filename    string
}

// ObjectStorage uploads content and returns a retrievable URL.
type ObjectStorage interface {
	Upload(ctx context.Context, key, contentType string, r io.Reader) (string, error)
	Download(ctx context.Context, url string) (Object, error)
}

func cleanKey(key string) (string, error) {
	clean := path.Clean("/" + strings.TrimSpace(key))
	clean = strings.TrimPrefix(clean, "/")
	if clean == "" || clean == "." {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return clean, nil
}
