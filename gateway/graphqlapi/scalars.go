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
	"encoding/json"
	"strconv"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

// dateTimeLayout matches what JavaScript clients produce with toISOString.
const dateTimeLayout = "2006-01-02T15:04:05.000Z"

// JSONScalar passes JSON column text through as a string.
var JSONScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "JSON",
	Description: "Arbitrary JSON value serialized as a string.",
	Serialize: func(value interface{}) interface{} {
		switch v := value.(type) {
		case []byte:
			return string(v)
		case string:
			return v
		case nil:
			return nil
		default:
			serialized, err := json.Marshal(v)
			if err != nil {
				return nil
			}
			return string(serialized)
		}
	},
	ParseValue: func(value interface{}) interface{} {
		if s, ok := value.(string); ok {
			return s
		}
		return nil
	},
	ParseLiteral: func(valueAST ast.Value) interface{} {
		if sv, ok := valueAST.(*ast.StringValue); ok {
			return sv.Value
		}
		return nil
	},
})

// DateTimeScalar renders DATETIME columns as UTC ISO-8601 with milliseconds.
var DateTimeScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "DateTime",
	Description: "UTC timestamp in ISO-8601 format.",
	Serialize: func(value interface{}) interface{} {
		switch v := value.(type) {
		case time.Time:
			return v.UTC().Format(dateTimeLayout)
		case *time.Time:
			if v == nil {
				return nil
			}
			return v.UTC().Format(dateTimeLayout)
		case string:
			return v
		case []byte:
			return string(v)
		default:
			return nil
		}
	},
	ParseValue: func(value interface{}) interface{} {
		if s, ok := value.(string); ok {
			return parseDateTime(s)
		}
		return nil
	},
	ParseLiteral: func(valueAST ast.Value) interface{} {
		if sv, ok := valueAST.(*ast.StringValue); ok {
			return parseDateTime(sv.Value)
		}
		return nil
	},
})

func parseDateTime(s string) interface{} {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return t
}

// DecimalScalar keeps DECIMAL columns as exact decimal strings.
var DecimalScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "Decimal",
	Description: "Exact decimal number serialized as a string.",
	Serialize: func(value interface{}) interface{} {
		switch v := value.(type) {
		case string:
			return v
		case []byte:
			return string(v)
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int64:
			return strconv.FormatInt(v, 10)
		case nil:
			return nil
		default:
			return nil
		}
	},
	ParseValue: func(value interface{}) interface{} {
		if s, ok := value.(string); ok {
			if _, err := strconv.ParseFloat(s, 64); err == nil {
				return s
			}
		}
		return nil
	},
	ParseLiteral: func(valueAST ast.Value) interface{} {
		switch v := valueAST.(type) {
		case *ast.StringValue:
			return v.Value
		case *ast.FloatValue:
			return v.Value
		case *ast.IntValue:
			return v.Value
		}
		return nil
	},
})
