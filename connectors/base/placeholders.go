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

// CountPlaceholders counts positional ? placeholders in MySQL SQL text,
// skipping quoted strings, quoted identifiers and comments.
func CountPlaceholders(sql string) int {
	count := 0
	n := len(sql)
	for i := 0; i < n; i++ {
		c := sql[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(sql, i, c)
		case c == '-' && i+1 < n && sql[i+1] == '-':
			i = skipLine(sql, i)
		case c == '#':
			i = skipLine(sql, i)
		case c == '/' && i+1 < n && sql[i+1] == '*':
			i = skipBlock(sql, i)
		case c == '?':
			count++
		}
	}
	return count
}

// skipQuoted returns the index of the closing quote. Backslash escapes and
// doubled quotes are honoured.
func skipQuoted(sql string, start int, q byte) int {
	for i := start + 1; i < len(sql); i++ {
		switch sql[i] {
		case '\\':
			if q != '`' {
				i++
			}
		case q:
			if i+1 < len(sql) && sql[i+1] == q {
				i++
				continue
			}
			return i
		}
	}
	return len(sql)
}

func skipLine(sql string, start int) int {
	for i := start; i < len(sql); i++ {
		if sql[i] == '\n' {
			return i
		}
	}
	return len(sql)
}

func skipBlock(sql string, start int) int {
	for i := start + 2; i+1 < len(sql); i++ {
		if sql[i] == '*' && sql[i+1] == '/' {
			return i + 1
		}
	}
	return len(sql)
}
