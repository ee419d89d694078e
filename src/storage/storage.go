// Package storage talks to the private bucket that holds illustration files.
// Nothing outside this package knows it is S3.
package storage

import (
	"context"
	"errors"
	"time"
)

type ObjectStore interface {
	// A URL anyone can GET the object from until ttl runs out.
	SignURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, content []byte, contentType string) error
}

var ErrEmptyObject = errors.New("refusing to store an empty object")
