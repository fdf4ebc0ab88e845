/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package detector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	applog "mangaeditor/internal/log"
)

const cacheKeyPrefix = "mangaeditor:detect:"

// Cached memoizes detector results in Redis keyed by the image reference.
// Cache failures are logged and never fail a detection; empty results are
// not cached.
type Cached struct {
	Next   Detector
	Client redis.Cmdable
	TTL    time.Duration
}

type cachedEntry struct {
	Source     string      `json:"source"`
	Detections []Detection `json:"detections"`
}

// NewCached wraps next with a Redis cache.
func NewCached(next Detector, client redis.Cmdable, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cached{Next: next, Client: client, TTL: ttl}
}

// DialRedis parses a redis:// URL and verifies the server is reachable.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	c := redis.NewClient(opt)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return c, nil
}

func (c *Cached) Name() string { return c.Next.Name() }

func (c *Cached) Detect(ctx context.Context, req Request) ([]Detection, error) {
	out, _, err := c.DetectSourced(ctx, req)
	return out, err
}

func (c *Cached) DetectSourced(ctx context.Context, req Request) ([]Detection, string, error) {
	l := applog.WithOperation(applog.WithComponent("detector"), "cache")
	key := CacheKey(req)
	if raw, err := c.Client.Get(ctx, key).Bytes(); err == nil {
		var e cachedEntry
		if err := json.Unmarshal(raw, &e); err == nil && len(e.Detections) > 0 {
			l.Debug("cache hit", slog.String("key", key))
			return e.Detections, e.Source, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		l.Warn("cache read failed", slog.Any("err", err))
	}

	out, source, err := DetectNamed(ctx, c.Next, req)
	if err != nil || len(out) == 0 {
		return out, source, err
	}
	if raw, err := json.Marshal(cachedEntry{Source: source, Detections: out}); err == nil {
		if err := c.Client.Set(ctx, key, raw, c.TTL).Err(); err != nil {
			l.Warn("cache write failed", slog.Any("err", err))
		}
	}
	return out, source, nil
}

// Invalidate drops the cached result for req.
func (c *Cached) Invalidate(ctx context.Context, req Request) error {
	return c.Client.Del(ctx, CacheKey(req)).Err()
}

// CacheKey derives the Redis key for a request.
func CacheKey(req Request) string {
	sum := sha256.Sum256([]byte(req.Key()))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
