// Package cache memoizes patient evaluations. An evaluation is a pure
// function of the snapshot and the evaluation date, so identical requests
// can be answered without re-running the pipeline.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/uacr-monitor/internal/domain"
)

const keyPrefix = "uacr:eval:"

// Entry is a cached evaluation outcome. Alert is nil when the patient was
// not worsening. Skips and failures are never cached.
type Entry struct {
	Alert    *domain.ClinicalAlert `json:"alert,omitempty"`
	CachedAt time.Time             `json:"cached_at"`
}

// Cache stores evaluation outcomes by key.
type Cache interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Set(ctx context.Context, key string, entry *Entry) error
	Len(ctx context.Context) (int, error)
	Close() error
}

// Key derives the cache key for evaluating patient as of asOf.
func Key(patient *domain.PatientSnapshot, asOf domain.Date) (string, error) {
	payload, err := json.Marshal(struct {
		AsOf    domain.Date             `json:"as_of"`
		Patient *domain.PatientSnapshot `json:"patient"`
	}{asOf, patient})
	if err != nil {
		return "", fmt.Errorf("failed to encode cache key: %w", err)
	}
	sum := sha256.Sum256(payload)
	return keyPrefix + hex.EncodeToString(sum[:]), nil
}

// New returns a Redis cache when cfg names a Redis URL and an in-memory LRU
// otherwise.
func New(ctx context.Context, cfg domain.CacheConfig, logger *logrus.Logger) (Cache, error) {
	if cfg.RedisURL == "" {
		logger.WithFields(logrus.Fields{
			"max_items": cfg.MaxMemorySize,
			"ttl":       cfg.DefaultTTL.String(),
		}).Info("Using in-memory evaluation cache")
		return NewMemoryCache(cfg.MaxMemorySize, cfg.DefaultTTL), nil
	}

	c, err := NewRedisCache(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.WithField("ttl", cfg.DefaultTTL.String()).Info("Using Redis evaluation cache")
	return c, nil
}
