// Package storage stores uploaded place images.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// ErrUnsupportedType is returned for uploads with a MIME type outside the allow list
var ErrUnsupportedType = errors.New("invalid mime type")

var mimeExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpeg",
	"image/jpg":  "jpg",
}

// ImageStore saves image bytes and deletes them by the returned path
type ImageStore interface {
	Save(ctx context.Context, name, contentType string, r io.Reader, size int64) (string, error)
	Delete(ctx context.Context, path string) error
}

// NewImageName returns a unique object name for contentType
func NewImageName(contentType string) (string, error) {
	ext, ok := mimeExtensions[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	return uuid.New().String() + "." + ext, nil
}

// Allowed reports whether contentType may be uploaded
func Allowed(contentType string) bool {
	_, ok := mimeExtensions[contentType]
	return ok
}
