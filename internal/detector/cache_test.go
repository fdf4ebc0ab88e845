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
	"os"
	"testing"
	"time"
)

// Set MGE_TEST_REDIS_URL (e.g. redis://localhost:6379/15) to run.
func TestCachedRoundTrip(t *testing.T) {
	url := os.Getenv("MGE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("MGE_TEST_REDIS_URL not set; skipping Redis tests")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := DialRedis(ctx, url)
	if err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	defer client.Close()

	next := &fakeDetector{name: "inner", out: []Detection{{X: 1, Y: 2, Width: 3, Height: 4, Text: "cached"}}}
	c := NewCached(next, client, time.Minute)
	req := Request{ImageURL: "/uploads/cache-test-" + time.Now().Format("150405.000000000") + ".png"}
	defer func() { _ = c.Invalidate(context.Background(), req) }()

	for i := 0; i < 2; i++ {
		out, src, err := c.DetectSourced(ctx, req)
		if err != nil || len(out) != 1 || out[0].Text != "cached" || src != "inner" {
			t.Fatalf("call %d: unexpected result %v %q %v", i, out, src, err)
		}
	}
	if next.calls != 1 {
		t.Fatalf("second call should be served from cache, inner calls=%d", next.calls)
	}
}

func TestDialRedisBadURL(t *testing.T) {
	if _, err := DialRedis(context.Background(), "not a url"); err == nil {
		t.Fatalf("expected parse error")
	}
}
