/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"log/slog"

	"mangaeditor/internal/config"
	"mangaeditor/internal/detector"
	applog "mangaeditor/internal/log"
)

// buildDetector assembles the detector chain from config: the HTTP service
// first, Tesseract second when enabled, and a Redis cache in front when a
// Redis URL is set. A nil detector means OCR always falls back.
func buildDetector(ctx context.Context, cfg config.DetectorConfig, token string) (detector.Detector, func(), error) {
	l := applog.WithComponent("detector")
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var chain detector.Chain
	if cfg.URL != "" {
		chain = append(chain, detector.NewHTTP(cfg.URL, token))
	}
	if cfg.Tesseract {
		t, err := detector.NewTesseract("eng", "jpn")
		switch {
		case errors.Is(err, detector.ErrTesseractNotEnabled):
			l.Warn("tesseract requested but binary built without the tesseract tag")
		case err != nil:
			l.Warn("tesseract unavailable", slog.Any("err", err))
		default:
			chain = append(chain, t)
			closers = append(closers, func() { _ = t.Close() })
		}
	}
	if len(chain) == 0 {
		l.Warn("no detector configured; OCR will use fallback regions")
		return nil, closeAll, nil
	}

	var det detector.Detector = chain
	if cfg.RedisURL != "" {
		rc, err := detector.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			l.Warn("redis cache disabled", slog.Any("err", err))
		} else {
			closers = append(closers, func() { _ = rc.Close() })
			det = detector.NewCached(chain, rc, cfg.CacheTTL())
			l.Info("detector cache enabled", slog.Duration("ttl", cfg.CacheTTL()))
		}
	}
	return det, closeAll, nil
}
