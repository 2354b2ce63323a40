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

package server

import (
	"database/sql"

	"github.com/ddam2015/spp-app-data-hub/connectors/registry"
)

type statsProvider interface {
	Stats() sql.DBStats
}

// PoolStats returns database/sql stats for every live pool that exposes
// them, keyed by tenant. It is the source of metrics.PoolCollector.
func PoolStats(reg *registry.Registry) map[string]sql.DBStats {
	out := make(map[string]sql.DBStats)
	for _, tp := range reg.Pools() {
		if sp, ok := tp.Pool.(statsProvider); ok {
			out[string(tp.Tenant)] = sp.Stats()
		}
	}
	return out
}
