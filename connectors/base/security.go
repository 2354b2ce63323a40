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


package base

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// MaxTablePrefixLength leaves room for the longest table suffix
// ("_organizations") inside MySQL's 64 character identifier limit.
const MaxTablePrefixLength = 50

var prefixPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Words MySQL would read as syntax if a bare prefix ever equalled them.
var reservedPrefixes = map[string]bool{
	"SELECT": true, "INSERT": true, "UPDATE": true, "DELETE": true, "DROP": true,
	"CREATE": true, "ALTER": true, "TABLE": true, "DATABASE": true, "FROM": true,
	"WHERE": true, "UNION": true, "JOIN": true, "SET": true, "GRANT": true,
	"TRUNCATE": true, "AND": true, "OR": true, "NOT": true, "NULL": true,
}

// ValidateTablePrefix reports whether prefix can be spliced into statement
// text in front of a table name. Prefixes come from configuration and are
// checked both at startup and at composition.
func ValidateTablePrefix(prefix string) error {
	switch {
	case prefix == "":
		return fmt.Errorf("table prefix cannot be empty")
	case len(prefix) > MaxTablePrefixLength:
		return fmt.Errorf("table prefix longer than %d characters", MaxTablePrefixLength)
	case !prefixPattern.MatchString(prefix):
		return fmt.Errorf("invalid table prefix %q", prefix)
	case reservedPrefixes[strings.ToUpper(prefix)]:
		return fmt.Errorf("table prefix %q is a SQL reserved word", prefix)
	}
	return nil
}

// LogSafe renders caller text on one log line: control characters are
// escaped, ANSI sequences included, and the result is capped at max bytes.
func LogSafe(s string, max int) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			q := strconv.QuoteRune(r)
			b.WriteString(q[1 : len(q)-1])
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	if max > 0 && len(out) > max {
		out = out[:max] + "...[truncated]"
	}
	return out
}
