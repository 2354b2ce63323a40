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

/*
Package base provides the core value types shared by the tenant pools, the
executor and the query builders.

# Pools and leases

A Pool is a tenant's bounded set of live connections. Lease checks out one
Conn for exclusive use; the holder must call exactly one of Release (the
connection is healthy and goes back to the free list) or Destroy (its state
is unknown and it must never be reused).

	conn, err := pool.Lease(ctx)
	if err != nil {
	    return err
	}
	rows, err := conn.Query(ctx, spec.Main())
	if err != nil {
	    _ = conn.Release()
	    return err
	}
	_ = conn.Release()

The executor package wraps this sequence with a deadline and a guard that
enforces the exactly-once rule; callers normally do not lease directly.

# Query specs

A QuerySpec is an ordered list of statements for a single connection plus a
time budget. Statements that configure session state come first and the
row-producing statement is last:

	spec, err := base.NewQuerySpec("publicBoxScore", 5*time.Second,
	    base.Statement{SQL: boxScoreSQL, Args: args},
	    base.Statement{SQL: "SET SESSION group_concat_max_len = 10000000000"},
	)

NewQuerySpec rejects statements whose ? placeholder count differs from the
number of bound arguments.

# Errors

Every failure carries one of the sentinel classes ErrAuthRequired,
ErrAuthInvalid, ErrConnectionUnavailable, ErrQueryTimeout,
ErrQueryExecution or ErrInvalidArgument, matched with errors.Is.
*/
package base
