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

package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ddam2015/spp-app-data-hub/shared/logger"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func TestMemoryLimiter_Window(t *testing.T) {
	m := NewMemoryLimiter(3, time.Minute)
	now := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !m.Allow(ctx, "10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if m.Allow(ctx, "10.0.0.1") {
		t.Error("4th request should be rejected")
	}
	if !m.Allow(ctx, "10.0.0.2") {
		t.Error("other clients have their own window")
	}

	count, reset := m.Status("10.0.0.1")
	if count != 4 || !reset.Equal(now.Add(time.Minute)) {
		t.Errorf("Status = %d, %v", count, reset)
	}

	now = now.Add(time.Minute + time.Second)
	if !m.Allow(ctx, "10.0.0.1") {
		t.Error("request after the window resets should be allowed")
	}
}

func TestMemoryLimiter_Defaults(t *testing.T) {
	m := NewMemoryLimiter(0, 0)
	if m.max != DefaultMax || m.window != DefaultWindow {
		t.Errorf("defaults not applied: max=%d window=%v", m.max, m.window)
	}
}

func TestRedisLimiter_Window(t *testing.T) {
	_, client := setupMiniredis(t)
	l := NewRedisLimiter(client, 5, time.Minute, nil)
	now := time.Now()
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if !l.Allow(ctx, "10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow(ctx, "10.0.0.1") {
		t.Error("6th request should be rejected")
	}
	if !l.Allow(ctx, "10.0.0.9") {
		t.Error("other clients have their own window")
	}

	count, err := l.Count(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 6 {
		t.Errorf("expected 6 recorded requests, got %d", count)
	}

	// Everything recorded so far slides out of the window
	now = now.Add(time.Minute + time.Second)
	if !l.Allow(ctx, "10.0.0.1") {
		t.Error("request after the window slides should be allowed")
	}
}

func TestRedisLimiter_Reset(t *testing.T) {
	_, client := setupMiniredis(t)
	l := NewRedisLimiter(client, 1, time.Minute, nil)
	ctx := context.Background()

	l.Allow(ctx, "k")
	if l.Allow(ctx, "k") {
		t.Fatal("second request should be rejected")
	}
	if err := l.Reset(ctx, "k"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if !l.Allow(ctx, "k") {
		t.Error("request after reset should be allowed")
	}
}

func TestRedisLimiter_FailsOpen(t *testing.T) {
	mr, client := setupMiniredis(t)
	l := NewRedisLimiter(client, 1, time.Minute, nil)
	ctx := context.Background()

	l.Allow(ctx, "k")
	mr.Close()

	if !l.Allow(ctx, "k") {
		t.Error("expected request to be allowed when Redis is unavailable")
	}
}

func TestRedisLimiter_NilClientUsesMemory(t *testing.T) {
	l := NewRedisLimiter(nil, 2, time.Minute, nil)
	ctx := context.Background()

	if !l.Allow(ctx, "k") || !l.Allow(ctx, "k") {
		t.Fatal("first two requests should be allowed")
	}
	if l.Allow(ctx, "k") {
		t.Error("third request should be rejected")
	}
	count, err := l.Count(ctx, "k")
	if err != nil || count != 3 {
		t.Errorf("Count = %d, %v", count, err)
	}
	_ = l.Reset(ctx, "k")
	if !l.Allow(ctx, "k") {
		t.Error("request after reset should be allowed")
	}
}

func TestConnect(t *testing.T) {
	mr, _ := setupMiniredis(t)

	client, err := Connect(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	_ = client.Close()

	if _, err := Connect(context.Background(), "http://localhost:6379"); err == nil ||
		!strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	var rejected int32
	handler := Middleware(NewMemoryLimiter(2, time.Minute), 2, nil, func(string) {
		atomic.AddInt32(&rejected, 1)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := do("192.0.2.1:5000"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i+1, rec.Code)
		}
	}

	// Same IP from a different source port shares the window
	rec := do("192.0.2.1:6000")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Body.String() != Message {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
	if atomic.LoadInt32(&rejected) != 1 {
		t.Errorf("expected one rejection callback, got %d", rejected)
	}

	if rec := do("192.0.2.2:5000"); rec.Code != http.StatusOK {
		t.Errorf("other client: status %d", rec.Code)
	}
}

func TestMiddlewareLogsRejectionStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.NewWithZap("ratelimit", zap.New(core))
	handler := Middleware(NewMemoryLimiter(1, time.Minute), 1, log, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
		req.RemoteAddr = "192.0.2.9:5000"
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	entries := logs.FilterMessage("Rate limit exceeded").All()
	if len(entries) != 1 {
		t.Fatalf("expected one rejection log, got %d", len(entries))
	}
	if entries[0].Level != zapcore.ErrorLevel {
		t.Errorf("level = %v", entries[0].Level)
	}
	fields := entries[0].ContextMap()["fields"].(map[string]interface{})
	if fields["status_code"] != http.StatusTooManyRequests {
		t.Errorf("status_code = %v", fields["status_code"])
	}
	if fields["client_ip"] != "192.0.2.9" {
		t.Errorf("client_ip = %v", fields["client_ip"])
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[2001:db8::1]:443"
	if got := ClientIP(req); got != "2001:db8::1" {
		t.Errorf("ClientIP = %q", got)
	}
	req.RemoteAddr = "unix"
	if got := ClientIP(req); got != "unix" {
		t.Errorf("ClientIP = %q", got)
	}
}
