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

package logger

import "regexp"

const (
	// MaxQueryLogLength caps SQL text written to logs.
	MaxQueryLogLength = 100
	// RedactedText replaces sensitive values.
	RedactedText = "[REDACTED]"
)

var (
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)
	bearerPattern   = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+\.[A-Za-z0-9-_]*`)
	// go-sql-driver DSN form: user:pass@tcp(host:port)/db
	mysqlDSNPattern = regexp.MustCompile(`[^\s:/@]+:[^\s@]*@tcp\(`)
	urlCredPattern  = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@`)
)

// SanitizeError returns the error text with credentials and tokens removed.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error())
}

// SanitizeString redacts passwords, bearer tokens and DSN credentials.
func SanitizeString(s string) string {
	if s == "" {
		return ""
	}
	s = passwordPattern.ReplaceAllString(s, "${1}="+RedactedText)
	s = bearerPattern.ReplaceAllString(s, "Bearer "+RedactedText)
	s = mysqlDSNPattern.ReplaceAllString(s, RedactedText+"@tcp(")
	s = urlCredPattern.ReplaceAllString(s, "://"+RedactedText+"@")
	return s
}

// SanitizeQuery truncates SQL text for logging.
func SanitizeQuery(query string) string {
	if len(query) > MaxQueryLogLength {
		query = query[:MaxQueryLogLength] + "..."
	}
	return passwordPattern.ReplaceAllString(query, "${1}="+RedactedText)
}
