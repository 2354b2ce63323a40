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

package filterguard

import "regexp"

// Category classifies a suspicious construct.
type Category string

const (
	CategoryUnionBased     Category = "union_based"
	CategoryBooleanBlind   Category = "boolean_blind"
	CategoryTimeBased      Category = "time_based"
	CategoryErrorBased     Category = "error_based"
	CategoryStackedQueries Category = "stacked_queries"
	CategoryComment        Category = "comment_injection"
	CategoryEnumeration    Category = "enumeration"
	CategoryFileAccess     Category = "file_access"
)

// Pattern is one detection rule.
type Pattern struct {
	Name        string
	Category    Category
	Regex       *regexp.Regexp
	Description string
	Severity    int
}

// PatternSet holds the rules applied to filter fragments.
type PatternSet struct {
	patterns []*Pattern
}

// NewPatternSet returns the rules tuned for WHERE/ORDER BY/LIMIT fragments.
// Boolean rules only fire on tautologies between literals, so ordinary
// column comparisons such as "enabled = 1" pass.
func NewPatternSet() *PatternSet {
	return &PatternSet{patterns: defaultPatterns()}
}

// Patterns returns all patterns in the set.
func (ps *PatternSet) Patterns() []*Pattern {
	return ps.patterns
}

func defaultPatterns() []*Pattern {
	return []*Pattern{
		{
			Name:        "union_select",
			Category:    CategoryUnionBased,
			Regex:       regexp.MustCompile(`(?i)\bUNION\s+(ALL\s+)?SELECT\b`),
			Description: "UNION SELECT appended to the filter",
			Severity:    9,
		},
		{
			Name:        "or_true_condition",
			Category:    CategoryBooleanBlind,
			Regex:       regexp.MustCompile(`(?i)\bOR\s+['"]?\d+['"]?\s*=\s*['"]?\d+['"]?`),
			Description: "OR with an always-true literal comparison",
			Severity:    8,
		},
		{
			Name:        "or_string_condition",
			Category:    CategoryBooleanBlind,
			Regex:       regexp.MustCompile(`(?i)\bOR\s+['"][^'"]*['"]\s*=\s*['"][^'"]*['"]`),
			Description: "OR with an always-true string comparison",
			Severity:    8,
		},
		{
			Name:        "sleep_function",
			Category:    CategoryTimeBased,
			Regex:       regexp.MustCompile(`(?i)\bSLEEP\s*\(`),
			Description: "SLEEP() call",
			Severity:    9,
		},
		{
			Name:        "benchmark_function",
			Category:    CategoryTimeBased,
			Regex:       regexp.MustCompile(`(?i)\bBENCHMARK\s*\(`),
			Description: "BENCHMARK() call",
			Severity:    9,
		},
		{
			Name:        "extractvalue",
			Category:    CategoryErrorBased,
			Regex:       regexp.MustCompile(`(?i)\b(EXTRACTVALUE|UPDATEXML)\s*\(`),
			Description: "XML function used to leak data through errors",
			Severity:    8,
		},
		{
			Name:        "stacked_statement",
			Category:    CategoryStackedQueries,
			Regex:       regexp.MustCompile(`;\s*\S`),
			Description: "statement terminator followed by another statement",
			Severity:    10,
		},
		{
			Name:        "comment",
			Category:    CategoryComment,
			Regex:       regexp.MustCompile(`(--|#|/\*)`),
			Description: "SQL comment truncating the statement",
			Severity:    7,
		},
		{
			Name:        "information_schema",
			Category:    CategoryEnumeration,
			Regex:       regexp.MustCompile(`(?i)\b(INFORMATION_SCHEMA|PERFORMANCE_SCHEMA|mysql\.user)\b`),
			Description: "system catalog access",
			Severity:    8,
		},
		{
			Name:        "subquery_select",
			Category:    CategoryEnumeration,
			Regex:       regexp.MustCompile(`(?i)\(\s*SELECT\b`),
			Description: "subquery inside the filter",
			Severity:    6,
		},
		{
			Name:        "load_file",
			Category:    CategoryFileAccess,
			Regex:       regexp.MustCompile(`(?i)\bLOAD_FILE\s*\(|\bINTO\s+(OUT|DUMP)FILE\b`),
			Description: "file read or write",
			Severity:    10,
		},
	}
}
