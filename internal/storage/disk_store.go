package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/quickdesk/helpdesk/internal/domain"
)

// Store persists attachment blobs and hands back opaque references. Delete
// is the compensation path when the owning write fails.
type Store interface {
	Save(ctx context.Context, upload Upload) (*domain.AttachmentRef, error)
	Delete(ctx context.Context, storageKey string) error
}

// DiskStore keeps blobs as uuid-keyed files under a configured directory.
type DiskStore struct {
	dir string
}

// NewDiskStore ensures the directory exists and returns the store.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Save streams the upload to disk and returns its reference metadata.
func (s *DiskStore) Save(ctx context.Context, upload Upload) (*domain.AttachmentRef, error) {
	key := uuid.NewString() + strings.ToLower(filepath.Ext(upload.FileName))

	src, err := upload.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", upload.FileName, err)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(s.dir, key))
	if err != nil {
		return nil, fmt.Errorf("create blob %s: %w", key, err)
	}
	written, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(filepath.Join(s.dir, key))
		return nil, fmt.Errorf("write blob %s: %w", key, err)
	}

	return &domain.AttachmentRef{
		StorageKey:   key,
		OriginalName: upload.FileName,
		ContentType:  upload.ContentType,
		SizeBytes:    written,
	}, nil
}

// Delete removes a stored blob. Missing blobs are not an error.
func (s *DiskStore) Delete(ctx context.Context, storageKey string) error {
	err := os.Remove(filepath.Join(s.dir, filepath.Base(storageKey)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
