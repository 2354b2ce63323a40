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

package executor

import (
	"sync/atomic"

	"github.com/ddam2015/spp-app-data-hub/connectors/base"
)

const (
	leaseHeld int32 = iota
	leaseReleased
	leaseDestroyed
)

// leaseGuard owns a leased connection and lets exactly one of release or
// destroy reach it. Later calls are no-ops.
type leaseGuard struct {
	conn  base.Conn
	state atomic.Int32
}

func newLeaseGuard(conn base.Conn) *leaseGuard {
	return &leaseGuard{conn: conn}
}

// release returns the connection to its pool. It reports whether this
// call settled the lease.
func (g *leaseGuard) release() (bool, error) {
	if !g.state.CompareAndSwap(leaseHeld, leaseReleased) {
		return false, nil
	}
	return true, g.conn.Release()
}

// destroy removes the connection from its pool for good.
func (g *leaseGuard) destroy() (bool, error) {
	if !g.state.CompareAndSwap(leaseHeld, leaseDestroyed) {
		return false, nil
	}
	return true, g.conn.Destroy()
}

func (g *leaseGuard) settled() bool {
	return g.state.Load() != leaseHeld
}
