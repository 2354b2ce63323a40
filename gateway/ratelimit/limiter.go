// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ratelimit bounds the request rate of each client address with a
// sliding window shared through Redis, or a per-process fixed window when
// Redis is not configured.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultMax    = 500
	DefaultWindow = 10 * time.Minute

	// Message is the response body of a rejected request.
	Message = "Too many requests from this IP, please try again later."
)

// Limiter decides whether one more request from key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

type windowEntry struct {
	count     int
	resetTime time.Time
}

// MemoryLimiter is a fixed-window limiter local to the process.
type MemoryLimiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*windowEntry
}

// sweepThreshold is the entry count above which expired windows are purged.
const sweepThreshold = 10000

// NewMemoryLimiter creates a limiter allowing max requests per window.
func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	if max <= 0 {
		max = DefaultMax
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &MemoryLimiter{
		max:     max,
		window:  window,
		now:     time.Now,
		entries: make(map[string]*windowEntry),
	}
}

// Allow counts the request and reports whether it is within the limit.
func (m *MemoryLimiter) Allow(_ context.Context, key string) bool {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.entries[key]
	if !exists || now.After(entry.resetTime) {
		if !exists && len(m.entries) >= sweepThreshold {
			m.sweep(now)
		}
		m.entries[key] = &windowEntry{count: 1, resetTime: now.Add(m.window)}
		return true
	}

	entry.count++
	return entry.count <= m.max
}

// Status returns the count and reset time of key's current window.
func (m *MemoryLimiter) Status(key string) (int, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok || m.now().After(entry.resetTime) {
		return 0, time.Time{}
	}
	return entry.count, entry.resetTime
}

func (m *MemoryLimiter) sweep(now time.Time) {
	for k, e := range m.entries {
		if now.After(e.resetTime) {
			delete(m.entries, k)
		}
	}
}
