// Package blob stores uploaded images and returns their public URLs.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	appErrors "github.com/1282saa/paperone/pkg/errors"

	"github.com/docker/go-units"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultMaxSize is the upload limit when none is configured.
	DefaultMaxSize int64 = 10 * units.MiB

	defaultExtension = "jpg"
	defaultMIMEType  = "image/jpeg"

	// CacheMaxAge is one year in seconds.
	CacheMaxAge = 31536000
)

// Store writes bytes under key and returns a URL anyone can read them from.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Upload describes one incoming file.
type Upload struct {
	OwnerID     string
	Filename    string
	ContentType string
	// DeclaredSize is the size reported by the client, or <= 0 if unknown.
	DeclaredSize int64
	Body         io.Reader
}

// Uploader validates images and hands them to a Store.
type Uploader struct {
	store   Store
	maxSize int64
	newID   func() string
	logger  *zap.Logger
}

// NewUploader creates an uploader. maxSize <= 0 means DefaultMaxSize.
func NewUploader(store Store, maxSize int64, logger *zap.Logger) *Uploader {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{store: store, maxSize: maxSize, newID: uuid.NewString, logger: logger}
}

// MaxSize is the configured limit in bytes.
func (u *Uploader) MaxSize() int64 {
	return u.maxSize
}

// Upload checks the content type and size, then stores the image. The size
// is checked against the declared size first and again against what was
// actually read.
func (u *Uploader) Upload(ctx context.Context, in Upload) (string, error) {
	if err := ValidateContentType(in.ContentType); err != nil {
		return "", err
	}
	if in.DeclaredSize > u.maxSize {
		return "", u.tooLarge()
	}

	data, err := io.ReadAll(io.LimitReader(in.Body, u.maxSize+1))
	if err != nil {
		return "", appErrors.NewValidation("failed to read uploaded file")
	}
	if int64(len(data)) > u.maxSize {
		return "", u.tooLarge()
	}

	key := ObjectKey(in.OwnerID, u.newID(), in.Filename)
	contentType := in.ContentType
	if contentType == "" {
		contentType = defaultMIMEType
	}

	url, err := u.store.Put(ctx, key, data, contentType)
	if err != nil {
		u.logger.Error("Image upload failed",
			zap.String("user_id", in.OwnerID),
			zap.String("key", key),
			zap.Error(err),
		)
		return "", appErrors.NewStorage("image upload", err)
	}

	u.logger.Info("Image uploaded",
		zap.String("user_id", in.OwnerID),
		zap.String("key", key),
		zap.String("size", units.HumanSize(float64(len(data)))),
	)
	return url, nil
}

func (u *Uploader) tooLarge() error {
	return appErrors.NewValidation(fmt.Sprintf("file size must not exceed %s", units.BytesSize(float64(u.maxSize)))).
		WithCode("FILE_TOO_LARGE")
}

// ValidateContentType accepts image/* types only.
func ValidateContentType(contentType string) error {
	if !strings.HasPrefix(contentType, "image/") {
		return appErrors.NewValidation("only image files can be uploaded").WithCode("UNSUPPORTED_MEDIA_TYPE")
	}
	return nil
}

// ObjectKey builds images/{owner}/{id}.{ext}, taking the extension after the
// last dot of filename. A filename without a dot gets jpg; one ending in a dot
// keeps the empty extension.
func ObjectKey(ownerID, id, filename string) string {
	ext := defaultExtension
	if i := strings.LastIndex(filename, "."); i >= 0 {
		ext = filename[i+1:]
	}
	return path.Join("images", ownerID, id+"."+ext)
}

func reader(data []byte) io.Reader {
	return bytes.NewReader(data)
}
