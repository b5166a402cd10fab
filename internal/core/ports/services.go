package ports

import (
	"context"

	"github.com/samirrijal/geolayers/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishZoneRecommendation(ctx context.Context, rec *domain.ZoneRecommendation) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// VersionedCache is a CacheService that can write a key only when the new
// version is not older than the stored one, as a single atomic step.
type VersionedCache interface {
	CacheService
	SetIfNewer(ctx context.Context, key string, value []byte, version int64, ttlSeconds int) (bool, error)
}
