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

package queries

import (
	"strings"

	"github.com/ddam2015/spp-app-data-hub/connectors/base"
)

// DateRangeDelimiter separates the two bounds of a date-range argument,
// e.g. "2023-09-01 AND 2024-08-31".
const DateRangeDelimiter = " AND "

// DateRange is an inclusive pair of bounds, passed to SQL as two values.
type DateRange struct {
	Start string
	End   string
}

// ParseDateRange splits s on DateRangeDelimiter. A missing delimiter, more
// than one, or an empty bound is ErrInvalidArgument.
func ParseDateRange(s string) (DateRange, error) {
	parts := strings.Split(s, DateRangeDelimiter)
	if len(parts) != 2 {
		return DateRange{}, base.NewConnectorError("queries", "ParseDateRange",
			`date range must look like "<start> AND <end>"`, nil).WithKind(base.ErrInvalidArgument)
	}
	start, end := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if start == "" || end == "" {
		return DateRange{}, base.NewConnectorError("queries", "ParseDateRange",
			"date range bounds must not be empty", nil).WithKind(base.ErrInvalidArgument)
	}
	return DateRange{Start: start, End: end}, nil
}
