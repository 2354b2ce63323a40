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
	"context"
	"fmt"

	"github.com/ddam2015/spp-app-data-hub/connectors/base"
	"github.com/ddam2015/spp-app-data-hub/connectors/mysql"
	"github.com/ddam2015/spp-app-data-hub/shared/logger"
)

// TenantCredentials is the credential set for one tenant.
type TenantCredentials struct {
	mysql.Credentials
	Prefix string
}

// MySQLFactory returns a PoolFactory that opens go-sql-driver pools from
// the two fixed credential sets.
func MySQLFactory(creds map[Tenant]TenantCredentials, opts mysql.Options, log *logger.Logger) PoolFactory {
	return func(ctx context.Context, tenant Tenant) (base.Pool, error) {
		c, ok := creds[tenant]
		if !ok {
			return nil, fmt.Errorf("no credentials configured for tenant %q", tenant)
		}
		pool, err := mysql.Open(ctx, string(tenant), c.Credentials, opts, log)
		if err != nil {
			return nil, err
		}
		return pool, nil
	}
}

// PrefixesOf extracts the table-namespace prefixes from a credential map.
func PrefixesOf(creds map[Tenant]TenantCredentials) map[Tenant]string {
	out := make(map[Tenant]string, len(creds))
	for tenant, c := range creds {
		out[tenant] = c.Prefix
	}
	return out
}
