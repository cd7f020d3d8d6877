package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const maxImageSize = 5 << 20 // 5MB

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

var (
	ErrFileTooLarge   = errors.New("file exceeds the size limit")
	ErrBadContentType = errors.New("file type is not allowed")
)

// FileStore saves uploaded listing images on local disk, one directory
// per ad.
type FileStore struct {
	Root string
}

func New(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &FileStore{Root: root}, nil
}

// Save writes the upload under <root>/<adID>/<random>.<ext> and returns
// the relative path for persisting.
func (s *FileStore) Save(adID, filename string, size int64, r io.Reader) (string, error) {
	if size > maxImageSize {
		return "", ErrFileTooLarge
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return "", ErrBadContentType
	}

	dir := filepath.Join(s.Root, adID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create ad dir: %w", err)
	}

	name := uuid.NewString() + ext
	full := filepath.Join(dir, name)

	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, io.LimitReader(r, maxImageSize+1))
	if err != nil {
		os.Remove(full)
		return "", fmt.Errorf("write file: %w", err)
	}
	// Guard against a stream longer than the declared size.
	if n > maxImageSize {
		os.Remove(full)
		return "", ErrFileTooLarge
	}

	return filepath.Join(adID, name), nil
}

func (s *FileStore) Delete(relPath string) error {
	full := filepath.Join(s.Root, filepath.Clean(relPath))
	if !strings.HasPrefix(full, filepath.Clean(s.Root)+string(os.PathSeparator)) {
		return errors.New("path escapes the upload root")
	}
	err := os.Remove(full)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
