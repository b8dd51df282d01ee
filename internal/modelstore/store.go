// Package modelstore persists fitted causal models as opaque blobs. The
// engine only requires that a stored model round-trips byte-identically; the
// backends are a directory of blob files and a Postgres table.
package modelstore

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gocause/internal/errors"
)

// Store is the persistence contract for fitted models.
type Store interface {
	Save(ctx context.Context, name string, blob []byte) error
	Load(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]ModelInfo, error)
}

// ModelInfo describes one stored model.
type ModelInfo struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

var validName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

func checkName(name string) error {
	if !validName.MatchString(name) {
		return errors.InvalidInput("model names may only contain letters, digits, dot, underscore and dash")
	}
	return nil
}

// FileStore keeps model blobs as files under a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create model directory %s", dir)
	}
	return &FileStore{dir: dir}, nil
}

func (fs *FileStore) path(name string) string {
	return filepath.Join(fs.dir, name+".scm")
}

func (fs *FileStore) Save(_ context.Context, name string, blob []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := os.WriteFile(fs.path(name), blob, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write model %s", name)
	}
	return nil
}

func (fs *FileStore) Load(_ context.Context, name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	blob, err := os.ReadFile(fs.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("model " + name)
		}
		return nil, errors.Wrapf(err, "failed to read model %s", name)
	}
	return blob, nil
}

func (fs *FileStore) Delete(_ context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := os.Remove(fs.path(name)); err != nil {
		if os.IsNotExist(err) {
			return errors.NotFound("model " + name)
		}
		return errors.Wrapf(err, "failed to delete model %s", name)
	}
	return nil
}

func (fs *FileStore) List(_ context.Context) ([]ModelInfo, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list model directory %s", fs.dir)
	}
	var infos []ModelInfo
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".scm" {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, ModelInfo{
			Name:      entry.Name()[:len(entry.Name())-len(".scm")],
			Size:      fi.Size(),
			UpdatedAt: fi.ModTime(),
		})
	}
	return infos, nil
}
