// Package memory provides an in-memory blob store for tests and
// ephemeral runs.
package memory

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"giftmatch/internal/blob"
)

type entry struct {
	data []byte
	info blob.Info
}

// Store keeps blobs in a map. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

var _ blob.Store = (*Store)(nil)

func New() *Store {
	return &Store{entries: make(map[string]entry), now: time.Now}
}

func (s *Store) Driver() blob.Driver { return blob.DriverMemory }

func (s *Store) Put(_ context.Context, key string, r io.Reader, opts blob.PutOptions) (blob.Info, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return blob.Info{}, fmt.Errorf("read payload: %w", err)
	}
	sum := sha256.Sum256(data)
	info := blob.Info{
		Key:          key,
		Size:         int64(len(data)),
		ETag:         hex.EncodeToString(sum[:]),
		ContentType:  opts.ContentType,
		LastModified: s.now().UTC(),
		Metadata:     cloneMetadata(opts.Metadata),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; ok {
		return blob.Info{}, fmt.Errorf("%w: %s", blob.ErrExists, key)
	}
	s.entries[key] = entry{data: data, info: info}
	return info, nil
}

func (s *Store) Get(_ context.Context, key string) (io.ReadCloser, blob.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, blob.Info{}, fmt.Errorf("%w: %s", blob.ErrNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(e.data)), cloneInfo(e.info), nil
}

func (s *Store) Head(_ context.Context, key string) (blob.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return blob.Info{}, fmt.Errorf("%w: %s", blob.ErrNotFound, key)
	}
	return cloneInfo(e.info), nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return fmt.Errorf("%w: %s", blob.ErrNotFound, key)
	}
	delete(s.entries, key)
	return nil
}

func (s *Store) List(_ context.Context, prefix string) ([]blob.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []blob.Info
	for key, e := range s.entries {
		if strings.HasPrefix(key, prefix) {
			out = append(out, cloneInfo(e.info))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) PresignURL(context.Context, string, time.Duration) (string, error) {
	return "", blob.ErrUnsupported
}

func cloneMetadata(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneInfo(info blob.Info) blob.Info {
	info.Metadata = cloneMetadata(info.Metadata)
	return info
}
