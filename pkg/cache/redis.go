// Package cache keeps the latest scan progress in Redis so the polling API
// answers most requests without a database round trip. Everything here is
// best-effort: a cold or unreachable cache only means falling back to MySQL.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/codesweep/codesweep/internal/model"
)

const snapshotTTL = 10 * time.Minute

type Snapshot struct {
	Progress  int              `json:"progress"`
	Status    model.ScanStatus `json:"status"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type ProgressCache struct {
	rdb *redis.Client
}

func NewProgressCache(addr string) *ProgressCache {
	return &ProgressCache{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func key(scanID uint) string {
	return fmt.Sprintf("scan:%d:progress", scanID)
}

func (c *ProgressCache) SetProgress(scanID uint, progress int, status model.ScanStatus) error {
	snap := Snapshot{Progress: progress, Status: status, UpdatedAt: time.Now()}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return c.rdb.Set(ctx, key(scanID), raw, snapshotTTL).Err()
}

// GetProgress returns the cached snapshot, or (nil, nil) on a miss.
func (c *ProgressCache) GetProgress(scanID uint) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	raw, err := c.rdb.Get(ctx, key(scanID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Invalidate drops the snapshot, used when a scan is deleted.
func (c *ProgressCache) Invalidate(scanID uint) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c.rdb.Del(ctx, key(scanID))
}
