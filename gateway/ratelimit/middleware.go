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
	"net"
	"net/http"
	"strconv"

	"github.com/ddam2015/spp-app-data-hub/shared/logger"
)

// ClientIP returns the address of the connecting peer.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware rejects requests over the limit with 429 and Message. onReject,
// when set, is called with the client key of every rejected request.
func Middleware(l Limiter, max int, log *logger.Logger, onReject func(key string)) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientIP(r)
			if !l.Allow(r.Context(), key) {
				if onReject != nil {
					onReject(key)
				}
				log.ErrorWithCode("", logger.RequestID(r.Context()), "Rate limit exceeded", http.StatusTooManyRequests, nil, map[string]interface{}{
					"client_ip": key,
					"path":      r.URL.Path,
				})
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.Header().Set("RateLimit-Limit", strconv.Itoa(max))
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(Message))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
