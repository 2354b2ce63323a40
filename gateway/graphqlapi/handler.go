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

package graphqlapi

import (
	"context"
	"net/http"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/handler"

	"github.com/ddam2015/spp-app-data-hub/connectors/registry"
	"github.com/ddam2015/spp-app-data-hub/gateway/resolver"
	"github.com/ddam2015/spp-app-data-hub/shared/logger"
)

// maxBodyBytes bounds a GraphQL request body.
const maxBodyBytes = 1 << 20

// Handler serves the schema over HTTP (POST body, or GET with query
// parameters). Decoding and execution are done by graphql-go/handler; this
// type restricts methods, bounds the body and attaches the pipeline request.
type Handler struct {
	gql    *handler.Handler
	logger *logger.Logger
}

// NewHandler creates the HTTP handler for schema.
func NewHandler(schema graphql.Schema, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	h := &Handler{logger: log.Named("graphql")}
	h.gql = handler.New(&handler.Config{
		Schema:           &schema,
		Pretty:           false,
		GraphiQL:         false,
		Playground:       false,
		ResultCallbackFn: h.logErrors,
	})
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		h.logger.ErrorWithCode(logger.ClientID(r.Context()), logger.RequestID(r.Context()), "GraphQL method rejected", http.StatusMethodNotAllowed, nil, map[string]interface{}{
			"method": r.Method,
		})
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	if r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	}

	ctx := WithRequest(r.Context(), resolver.Request{
		Key:           registry.KeyFromRequest(r),
		Authorization: r.Header.Get("Authorization"),
	})
	h.gql.ServeHTTP(w, r.WithContext(ctx))
}

func (h *Handler) logErrors(ctx context.Context, params *graphql.Params, result *graphql.Result, _ []byte) {
	if !result.HasErrors() {
		return
	}
	messages := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		messages = append(messages, e.Message)
	}
	h.logger.Debug(logger.ClientID(ctx), logger.RequestID(ctx), "GraphQL request returned errors", map[string]interface{}{
		"operation_name": params.OperationName,
		"errors":         messages,
	})
}
