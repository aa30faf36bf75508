package blobstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/botdock/botdock/internal/config"
)

// Store is the blob storage the ingestion pipeline reads uploaded files
// from. Keys encode the chatbots/{chatbotId}/{documentId}/{filename}
// hierarchy; the store itself treats them as opaque.
type Store interface {
	Type() string
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

type Factory func(cfg config.BlobStoreConfig) (Store, error)

var registry = map[string]Factory{}

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func New(cfg config.BlobStoreConfig) (Store, error) {
	factory := registry[strings.ToLower(cfg.Type)]
	if factory == nil {
		return nil, fmt.Errorf("unsupported blob store type: %s", cfg.Type)
	}
	return factory(cfg)
}
