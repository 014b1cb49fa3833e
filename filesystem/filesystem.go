package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var (
	ErrFileNotFound      = errors.New("filesystem: file not found")
	ErrFileAlreadyExists = errors.New("filesystem: file already exists")
	ErrInvalidPath       = errors.New("filesystem: invalid path")
)

// Filesystem stores flat files below a single root. Every name is relative to
// that root and may not escape it.
type Filesystem interface {
	ReadFile(name string) ([]byte, error)
	// WriteFile creates name atomically. It fails with ErrFileAlreadyExists
	// instead of replacing an existing file.
	WriteFile(name string, content []byte) error
	DeleteFile(name string) error
	FileExists(name string) (bool, error)
	// ListFiles returns the regular files directly below the root, sorted.
	ListFiles() ([]string, error)
	Root() string
}

type localFileSystem struct {
	root string
}

func NewLocalFileSystem(root string) Filesystem {
	return &localFileSystem{root: filepath.Clean(root)}
}

// EnsureDirectory creates the root of a local filesystem if it is missing.
func EnsureDirectory(path string) error {
	info, err := os.Stat(path)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("filesystem: %s is not a directory", path)
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return os.MkdirAll(path, 0770)
	default:
		return err
	}
}

func (filesystem *localFileSystem) Root() string {
	return filesystem.root
}

func (filesystem *localFileSystem) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." || strings.ContainsRune(name, os.PathSeparator) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	return filepath.Join(filesystem.root, name), nil
}

func (filesystem *localFileSystem) ReadFile(name string) ([]byte, error) {
	path, err := filesystem.path(name)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	return content, err
}

func (filesystem *localFileSystem) WriteFile(name string, content []byte) error {
	path, err := filesystem.path(name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filesystem.root, "."+name+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		// no-op once the rename happened
		if removeErr := os.Remove(tmp.Name()); removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
			slog.Error("removing temporary file error", "file", tmp.Name(), "error", removeErr)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// link fails on an existing target, unlike rename
	if err := os.Link(tmp.Name(), path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrFileAlreadyExists, name)
		}
		return err
	}
	return nil
}

func (filesystem *localFileSystem) DeleteFile(name string) error {
	path, err := filesystem.path(name)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, name)
		}
		return err
	}
	return nil
}

func (filesystem *localFileSystem) FileExists(name string) (bool, error) {
	path, err := filesystem.path(name)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

func (filesystem *localFileSystem) ListFiles() ([]string, error) {
	entries, err := os.ReadDir(filesystem.root)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	slices.Sort(names)
	return names, nil
}

func GetFileExtension(name string) string {
	return filepath.Ext(name)
}
