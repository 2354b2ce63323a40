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

package registry

import (
	"net/http"
	"strings"
)

// Tenant names one of the two fixed database targets.
type Tenant string

const (
	TenantProduction  Tenant = "production"
	TenantDevelopment Tenant = "development"
)

// DefaultProductionMarker is the host substring of the public API domain.
const DefaultProductionMarker = "api."

// RoutingKey is derived from the inbound request URL and nothing else.
type RoutingKey struct {
	Scheme string
	Host   string
	Path   string
}

// String renders the key as a URL.
func (k RoutingKey) String() string {
	return k.Scheme + "://" + k.Host + k.Path
}

// KeyFromRequest builds the routing key from the request's scheme, host and
// original path. A load balancer's X-Forwarded-Proto overrides the scheme;
// the host is always the request's own Host.
func KeyFromRequest(r *http.Request) RoutingKey {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	path := ""
	if r.URL != nil {
		path = r.URL.Path
	}
	return RoutingKey{
		Scheme: scheme,
		Host:   r.Host,
		Path:   path,
	}
}

// Classifier decides the tenant with a single rule: a request is production
// when its host contains ProductionMarker, development otherwise.
type Classifier struct {
	ProductionMarker string
}

// Classify returns the tenant for key.
func (c Classifier) Classify(key RoutingKey) Tenant {
	marker := c.ProductionMarker
	if marker == "" {
		marker = DefaultProductionMarker
	}
	if strings.Contains(strings.ToLower(key.Host), strings.ToLower(marker)) {
		return TenantProduction
	}
	return TenantDevelopment
}
