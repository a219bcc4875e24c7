package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/steelminer/internal/model"
)

// keyVersion changes whenever cached reports stop being comparable
const keyVersion = "steelminer:v1:"

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives a cache key from a document identity, the sha256 of its
// content and a fingerprint of the extraction settings. Editing a file
// or changing the settings both miss.
func Key(documentID, contentHash, settings string) string {
	h := sha256.New()
	h.Write([]byte(documentID))
	h.Write([]byte{0})
	h.Write([]byte(contentHash))
	h.Write([]byte{0})
	h.Write([]byte(settings))
	return keyVersion + hex.EncodeToString(h.Sum(nil))
}

// ReportCache stores extraction reports as JSON in any Cache
type ReportCache struct {
	cache Cache
	ttl   time.Duration
}

// NewReportCache wraps a byte cache; ttl 0 uses each layer's default
func NewReportCache(c Cache, ttl time.Duration) *ReportCache {
	return &ReportCache{cache: c, ttl: ttl}
}

// Get returns a cached report. Undecodable entries are dropped and miss.
func (c *ReportCache) Get(key string) (model.Report, bool) {
	data, ok := c.cache.Get(key)
	if !ok {
		return model.Report{}, false
	}
	var r model.Report
	if err := json.Unmarshal(data, &r); err != nil {
		_ = c.cache.Delete(key)
		return model.Report{}, false
	}
	return r, true
}

// Set stores a report
func (c *ReportCache) Set(key string, r model.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "cache: marshal report")
	}
	return c.cache.Set(key, data, c.ttl)
}
