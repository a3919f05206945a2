// Package blob defines the object store used for report artifacts.
// Reports are archival: a key is written once and never overwritten.
package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver identifies a blob store backend.
type Driver string

const (
	DriverFS     Driver = "fs"
	DriverMemory Driver = "memory"
	DriverS3     Driver = "s3"
)

// ErrUnsupported is returned for operations a backend cannot provide.
var ErrUnsupported = errors.New("blob: operation not supported")

// ErrExists is returned when a key is already present; stored artifacts
// are immutable.
var ErrExists = errors.New("blob: key already exists")

// ErrNotFound is returned when a key is absent.
var ErrNotFound = errors.New("blob: key not found")

// PutOptions carries object metadata supplied at write time.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Info describes a stored object.
type Info struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Store is a create-only object store.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (io.ReadCloser, Info, error)
	Head(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]Info, error)
	PresignURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Driver() Driver
}
