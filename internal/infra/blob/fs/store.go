// Package fs provides a filesystem blob store. Object metadata lives in
// a JSON sidecar next to each payload file.
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"giftmatch/internal/blob"
)

const metaSuffix = ".meta"

// Store writes blobs beneath a root directory.
type Store struct {
	root string
	now  func() time.Time
}

var _ blob.Store = (*Store)(nil)

// New creates the root directory if needed.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &Store{root: root, now: time.Now}, nil
}

func (s *Store) Driver() blob.Driver { return blob.DriverFS }

// sanitizeKey rejects keys that would escape the root directory.
func sanitizeKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("blob key must not be empty")
	}
	clean := filepath.ToSlash(filepath.Clean("/" + key))
	if strings.Contains(clean, "..") {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return strings.TrimPrefix(clean, "/"), nil
}

func (s *Store) paths(key string) (payload, meta string, err error) {
	clean, err := sanitizeKey(key)
	if err != nil {
		return "", "", err
	}
	payload = filepath.Join(s.root, filepath.FromSlash(clean))
	return payload, payload + metaSuffix, nil
}

type sidecar struct {
	Key         string            `json:"key"`
	Size        int64             `json:"size"`
	ETag        string            `json:"etag"`
	ContentType string            `json:"content_type,omitempty"`
	Modified    time.Time         `json:"modified"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (sc sidecar) info() blob.Info {
	return blob.Info{
		Key:          sc.Key,
		Size:         sc.Size,
		ETag:         sc.ETag,
		ContentType:  sc.ContentType,
		LastModified: sc.Modified,
		Metadata:     sc.Metadata,
	}
}

func (s *Store) Put(_ context.Context, key string, r io.Reader, opts blob.PutOptions) (blob.Info, error) {
	payload, meta, err := s.paths(key)
	if err != nil {
		return blob.Info{}, err
	}
	if _, err := os.Stat(payload); err == nil {
		return blob.Info{}, fmt.Errorf("%w: %s", blob.ErrExists, key)
	} else if !os.IsNotExist(err) {
		return blob.Info{}, err
	}
	if err := os.MkdirAll(filepath.Dir(payload), 0o755); err != nil {
		return blob.Info{}, fmt.Errorf("create blob dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(payload), ".put-*")
	if err != nil {
		return blob.Info{}, err
	}
	defer os.Remove(tmp.Name())
	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return blob.Info{}, fmt.Errorf("write blob: %w", err)
	}
	clean, _ := sanitizeKey(key)
	sc := sidecar{
		Key:         clean,
		Size:        size,
		ETag:        hex.EncodeToString(hasher.Sum(nil)),
		ContentType: opts.ContentType,
		Modified:    s.now().UTC(),
		Metadata:    opts.Metadata,
	}
	encoded, err := json.Marshal(sc)
	if err != nil {
		return blob.Info{}, err
	}
	if err := os.WriteFile(meta, encoded, 0o644); err != nil {
		return blob.Info{}, fmt.Errorf("write blob metadata: %w", err)
	}
	if err := os.Rename(tmp.Name(), payload); err != nil {
		os.Remove(meta)
		return blob.Info{}, fmt.Errorf("commit blob: %w", err)
	}
	return sc.info(), nil
}

func (s *Store) readSidecar(meta string, key string) (sidecar, error) {
	raw, err := os.ReadFile(meta)
	if os.IsNotExist(err) {
		return sidecar{}, fmt.Errorf("%w: %s", blob.ErrNotFound, key)
	}
	if err != nil {
		return sidecar{}, err
	}
	var sc sidecar
	if err := json.Unmarshal(raw, &sc); err != nil {
		return sidecar{}, fmt.Errorf("decode blob metadata: %w", err)
	}
	return sc, nil
}

func (s *Store) Get(_ context.Context, key string) (io.ReadCloser, blob.Info, error) {
	payload, meta, err := s.paths(key)
	if err != nil {
		return nil, blob.Info{}, err
	}
	sc, err := s.readSidecar(meta, key)
	if err != nil {
		return nil, blob.Info{}, err
	}
	f, err := os.Open(payload)
	if os.IsNotExist(err) {
		return nil, blob.Info{}, fmt.Errorf("%w: %s", blob.ErrNotFound, key)
	}
	if err != nil {
		return nil, blob.Info{}, err
	}
	return f, sc.info(), nil
}

func (s *Store) Head(_ context.Context, key string) (blob.Info, error) {
	_, meta, err := s.paths(key)
	if err != nil {
		return blob.Info{}, err
	}
	sc, err := s.readSidecar(meta, key)
	if err != nil {
		return blob.Info{}, err
	}
	return sc.info(), nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	payload, meta, err := s.paths(key)
	if err != nil {
		return err
	}
	if err := os.Remove(payload); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", blob.ErrNotFound, key)
	} else if err != nil {
		return err
	}
	if err := os.Remove(meta); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Store) List(_ context.Context, prefix string) ([]blob.Info, error) {
	var out []blob.Info
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, metaSuffix) {
			return err
		}
		rel, err := filepath.Rel(s.root, strings.TrimSuffix(path, metaSuffix))
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		sc, err := s.readSidecar(path, key)
		if err != nil {
			return err
		}
		out = append(out, sc.info())
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) PresignURL(context.Context, string, time.Duration) (string, error) {
	return "", blob.ErrUnsupported
}
