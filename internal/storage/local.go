// Package storage keeps uploaded objects on the local filesystem and
// derives their public URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/pkg/config"
	"github.com/vibecampus/vibehub/pkg/logging"
)

// MaxObjectSize caps a single upload
const MaxObjectSize = 10 << 20

// ErrObjectTooLarge is returned when an upload exceeds MaxObjectSize
var ErrObjectTooLarge = &apperr.AppError{Code: apperr.CodeInvalidArgument, Message: "File is too large (10 MB max)", Field: "file"}

// Local stores objects under a root directory
type Local struct {
	root    string
	baseURL string
	logger  *zap.Logger
}

// NewLocal creates the root directory if needed
func NewLocal(cfg *config.StorageConfig) (*Local, error) {
	root := cfg.Root
	if root == "" {
		root = "uploads"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", root, err)
	}
	logger := logging.GetLogger().With(zap.String("component", "storage"))
	logger.Info("Local storage directory ensured", zap.String("path", root))

	return &Local{
		root:    root,
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		logger:  logger,
	}, nil
}

// Clean normalizes an object path and rejects anything that would
// escape the root
func Clean(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	if p == "" || strings.HasPrefix(p, "/") {
		return "", apperr.InvalidField("path", "Invalid file path")
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", apperr.InvalidField("path", "Invalid file path")
		}
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == "" {
		return "", apperr.InvalidField("path", "Invalid file path")
	}
	return cleaned, nil
}

func (l *Local) physical(p string) string {
	return filepath.Join(l.root, filepath.FromSlash(p))
}

// Upload writes r at p and returns the stored path. An existing object
// is never overwritten: the new one gets a unique suffix instead.
func (l *Local) Upload(ctx context.Context, p string, r io.Reader) (string, error) {
	stored, err := Clean(p)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(l.physical(stored)), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.OpenFile(l.physical(stored), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		ext := path.Ext(stored)
		stored = strings.TrimSuffix(stored, ext) + "-" + uuid.NewString() + ext
		f, err = os.OpenFile(l.physical(stored), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	}
	if err != nil {
		return "", fmt.Errorf("failed to create object: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(contextReader{ctx: ctx, r: r}, MaxObjectSize+1))
	closeErr := f.Close()
	if err == nil && n > MaxObjectSize {
		err = ErrObjectTooLarge
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(l.physical(stored))
		return "", err
	}

	l.logger.Info("Object stored", zap.String("path", stored), zap.Int64("bytes", n))
	return stored, nil
}

// Open returns a reader for the object at p
func (l *Local) Open(p string) (*os.File, error) {
	cleaned, err := Clean(p)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(l.physical(cleaned))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.NotFound("File not found")
	}
	return f, err
}

// PublicURL returns the URL an object is served at
func (l *Local) PublicURL(p string) string {
	cleaned, err := Clean(p)
	if err != nil {
		return ""
	}
	return l.baseURL + "/" + cleaned
}

// Delete removes the object at p. Missing objects are not an error.
func (l *Local) Delete(p string) error {
	cleaned, err := Clean(p)
	if err != nil {
		return err
	}
	if err := os.Remove(l.physical(cleaned)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// contextReader stops a copy once ctx is done
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
