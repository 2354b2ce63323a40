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

package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddam2015/spp-app-data-hub/config"
	"github.com/ddam2015/spp-app-data-hub/connectors/base"
	"github.com/ddam2015/spp-app-data-hub/connectors/pooltest"
	"github.com/ddam2015/spp-app-data-hub/connectors/registry"
	"github.com/ddam2015/spp-app-data-hub/gateway/auth"
	"github.com/ddam2015/spp-app-data-hub/shared/logger"
)

type staticVerifier struct{}

func (staticVerifier) VerifyIDToken(ctx context.Context, idToken string) (*auth.Identity, error) {
	if idToken != "good-assertion" {
		return nil, errors.New("bad assertion")
	}
	return &auth.Identity{UID: "uid-1", Email: "coach@example.com"}, nil
}

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Port = 0
	cfg.JWT.Secret = "app-test-secret"
	cfg.ProdDB = config.DBConfig{Host: "prod", Port: 3306, User: "u", Password: "p", Name: "spp", TablePrefix: "spp"}
	cfg.DevDB = config.DBConfig{Host: "dev", Port: 3306, User: "u", Password: "p", Name: "sppdev", TablePrefix: "sppdev"}
	cfg.RateLimit.Max = 3
	return cfg
}

type harness struct {
	app  *App
	pool *pooltest.Pool
	reg  *prometheus.Registry
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	pool := pooltest.New("dev", pooltest.Rows(base.Row{"id": int64(3191), "nickname": "grassroots"}))
	reg := prometheus.NewRegistry()
	a, err := New(context.Background(), cfg, Options{
		Version: "test",
		Factory: func(ctx context.Context, tenant registry.Tenant) (base.Pool, error) {
			return pool, nil
		},
		Verifier:   staticVerifier{},
		Registerer: reg,
		Gatherer:   reg,
		Logger:     logger.NewNop(),
	})
	require.NoError(t, err)
	t.Cleanup(a.Close)
	a.Server.SetReady(true)
	return &harness{app: a, pool: pool, reg: reg}
}

func (h *harness) graphql(t *testing.T, host, query string) map[string]interface{} {
	t.Helper()
	body, err := json.Marshal(map[string]string{"query": query})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "http://"+host+"/graphql", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.app.Server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestNewServesStaticQueries(t *testing.T) {
	h := newHarness(t, testConfig())

	out := h.graphql(t, "dev.sportspassports.com", `{ hello welcome }`)
	data := out["data"].(map[string]interface{})
	assert.Equal(t, "Hello 3001", data["hello"])
	assert.Equal(t, "Welcome SPP", data["welcome"])
	assert.Zero(t, h.app.Registry.Count())
}

func TestNewRunsQueriesThroughTenantPool(t *testing.T) {
	h := newHarness(t, testConfig())

	out := h.graphql(t, "dev.sportspassports.com", `mutation { publicBrandList(brandNickname: "grassroots") { id nickname } }`)
	assert.Nil(t, out["errors"])
	rows := out["data"].(map[string]interface{})["publicBrandList"].([]interface{})
	require.Len(t, rows, 1)
	assert.Equal(t, "grassroots", rows[0].(map[string]interface{})["nickname"])

	executed := h.pool.Executed()
	require.Len(t, executed, 1)
	assert.Contains(t, executed[0].SQL, "sppdev_organizations")
	assert.Equal(t, 0, h.pool.Counts().Outstanding())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.app.Server.Handler().ServeHTTP(rec, req)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `spp_gateway_pools_created_total{tenant="development"} 1`)
}

func TestNewWiresSignInAndGate(t *testing.T) {
	h := newHarness(t, testConfig())

	out := h.graphql(t, "dev.sportspassports.com", `mutation { signIn(idToken: "good-assertion") }`)
	token, ok := out["data"].(map[string]interface{})["signIn"].(string)
	require.True(t, ok, "signIn returned %v", out)

	issuer, err := auth.NewTokenIssuer("app-test-secret", time.Hour)
	require.NoError(t, err)
	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "coach@example.com", claims.Email)

	out = h.graphql(t, "dev.sportspassports.com", `mutation { eventSearch(condition: "WHERE id = 1") { id } }`)
	require.NotNil(t, out["errors"])
	assert.Contains(t, out["errors"].([]interface{})[0].(map[string]interface{})["message"], "Access Denied")
}

func TestNewAppliesRateLimit(t *testing.T) {
	h := newHarness(t, testConfig())

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodGet, "/graphql?query=%7Bhello%7D", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		rec := httptest.NewRecorder()
		h.app.Server.Handler().ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 200, 429}, codes)
}

func TestNewFallsBackWhenRedisUnavailable(t *testing.T) {
	cfg := testConfig()
	cfg.RedisURL = "redis://127.0.0.1:1/0"

	h := newHarness(t, cfg)
	assert.Nil(t, h.app.redis)
}

func TestNewRejectsMissingSecret(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.Secret = ""

	_, err := New(context.Background(), cfg, Options{
		Registerer: prometheus.NewRegistry(),
		Gatherer:   prometheus.NewRegistry(),
		Logger:     logger.NewNop(),
	})
	assert.Error(t, err)
}

func TestRunClosesPoolsOnShutdown(t *testing.T) {
	h := newHarness(t, testConfig())
	h.graphql(t, "dev.sportspassports.com", `mutation { publicBrandList(brandNickname: "grassroots") { id } }`)
	require.Equal(t, 1, h.app.Registry.Count())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.app.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, 0, h.app.Registry.Count())
}
