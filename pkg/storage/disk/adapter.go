package disk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gitvanity/pkg/storage"
	"gitvanity/pkg/types"
)

// Adapter implements storage.Store on a local directory.
type Adapter struct {
	rootPath string // e.g. .git/vanity/journal
}

// NewAdapter creates root if needed.
func NewAdapter(root string) (*Adapter, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create root storage dir: %w", err)
	}
	return &Adapter{rootPath: root}, nil
}

// layout maps a key to root/<namespace>/<id[:2]>/<id[2:]>.
func (s *Adapter) layout(key storage.Key) string {
	shard, rest := key.Shard()
	return filepath.Join(s.rootPath, key.Namespace, shard, rest)
}

func (s *Adapter) Put(ctx context.Context, key storage.Key, data []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}
	targetPath := s.layout(key)
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	// write to a temp file and rename so readers never see a partial record
	tempFile, err := os.CreateTemp(dir, "temp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}
	return os.Rename(tempFile.Name(), targetPath)
}

func (s *Adapter) Get(ctx context.Context, key storage.Key) (io.ReadCloser, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.layout(key))
	if os.IsNotExist(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Adapter) Has(ctx context.Context, key storage.Key) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}
	_, err := os.Stat(s.layout(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *Adapter) List(ctx context.Context, namespace string) ([]string, error) {
	return s.scan(ctx, namespace, "")
}

// Expand only reads the one shard directory the prefix points into.
func (s *Adapter) Expand(ctx context.Context, namespace string, prefix types.HashPrefix) (string, error) {
	p, err := storage.CheckPrefix(prefix)
	if err != nil {
		return "", err
	}
	ids, err := s.scan(ctx, namespace, p)
	if err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", storage.ErrNotFound
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: %s matches %d records", storage.ErrAmbiguousID, p, len(ids))
	}
}

func (s *Adapter) scan(ctx context.Context, namespace, prefix string) ([]string, error) {
	base := filepath.Join(s.rootPath, namespace)
	shards, err := os.ReadDir(base)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, shard := range shards {
		if !shard.IsDir() || len(shard.Name()) != 2 {
			continue
		}
		if len(prefix) >= 2 && shard.Name() != prefix[:2] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries, err := os.ReadDir(filepath.Join(base, shard.Name()))
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), "temp-") {
				continue
			}
			id := shard.Name() + e.Name()
			if strings.HasPrefix(id, prefix) {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}
