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

// Package graphqlapi exposes the gateway operations as a GraphQL schema:
// two static queries, the event lookup by id, and one mutation per report.
package graphqlapi

import (
	"context"
	"strconv"

	"github.com/graphql-go/graphql"

	"github.com/ddam2015/spp-app-data-hub/connectors/base"
	"github.com/ddam2015/spp-app-data-hub/gateway/queries"
	"github.com/ddam2015/spp-app-data-hub/gateway/resolver"
)

type requestKey struct{}

// WithRequest attaches the pipeline request to ctx.
func WithRequest(ctx context.Context, req resolver.Request) context.Context {
	return context.WithValue(ctx, requestKey{}, req)
}

func requestFrom(ctx context.Context) resolver.Request {
	if ctx == nil {
		return resolver.Request{}
	}
	req, _ := ctx.Value(requestKey{}).(resolver.Request)
	return req
}

func nonNull(t graphql.Input) *graphql.ArgumentConfig {
	return &graphql.ArgumentConfig{Type: graphql.NewNonNull(t)}
}

func toMaps(rows []base.Row) []map[string]interface{} {
	out := make([]map[string]interface{}, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}

func rowsOrErr(rows []base.Row, err error) (interface{}, error) {
	if err != nil {
		return nil, err
	}
	return toMaps(rows), nil
}

func conditionField(typ graphql.Output, op func(ctx context.Context, req resolver.Request, condition string) (interface{}, error)) *graphql.Field {
	return &graphql.Field{
		Type: typ,
		Args: graphql.FieldConfigArgument{"condition": nonNull(graphql.String)},
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			condition, _ := p.Args["condition"].(string)
			return op(p.Context, requestFrom(p.Context), condition)
		},
	}
}

// NewSchema builds the schema bound to svc.
func NewSchema(svc *resolver.Service) (graphql.Schema, error) {
	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"hello": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return svc.Hello(), nil
				},
			},
			"welcome": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return svc.Welcome(), nil
				},
			},
			"eventById": &graphql.Field{
				Type: eventType,
				Args: graphql.FieldConfigArgument{"id": nonNull(graphql.ID)},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					raw, _ := p.Args["id"].(string)
					id, err := strconv.ParseInt(raw, 10, 64)
					if err != nil {
						return nil, &resolver.Error{Operation: queries.OpEventByID, Message: "Invalid argument: id must be numeric", Kind: base.ErrInvalidArgument}
					}
					row, err := svc.EventByID(p.Context, requestFrom(p.Context), id)
					if err != nil || row == nil {
						return nil, err
					}
					return map[string]interface{}(row), nil
				},
			},
		},
	})

	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"eventSearch": conditionField(graphql.NewList(eventType), func(ctx context.Context, req resolver.Request, c string) (interface{}, error) {
				return rowsOrErr(svc.EventSearch(ctx, req, c))
			}),
			"eventPublic": conditionField(graphql.NewList(eventType), func(ctx context.Context, req resolver.Request, c string) (interface{}, error) {
				return rowsOrErr(svc.EventPublic(ctx, req, c))
			}),
			"eventCalendar": conditionField(graphql.NewList(eventType), func(ctx context.Context, req resolver.Request, c string) (interface{}, error) {
				return rowsOrErr(svc.EventCalendar(ctx, req, c))
			}),
			"playerDirectory": conditionField(compressedDataType, func(ctx context.Context, req resolver.Request, c string) (interface{}, error) {
				out, err := svc.PlayerDirectory(ctx, req, c)
				if err != nil {
					return nil, err
				}
				return out, nil
			}),
			"organizationDirectory": conditionField(compressedDataType, func(ctx context.Context, req resolver.Request, c string) (interface{}, error) {
				out, err := svc.OrganizationDirectory(ctx, req, c)
				if err != nil {
					return nil, err
				}
				return out, nil
			}),
			"publicTeamStanding": &graphql.Field{
				Type: graphql.NewList(teamStandingType),
				Args: graphql.FieldConfigArgument{
					"brand":                    nonNull(graphql.Int),
					"select_year":              nonNull(graphql.String),
					"level_of_play":            nonNull(graphql.String),
					"division":                 nonNull(graphql.String),
					"win_loss_percent_cutoff":  nonNull(graphql.Float),
					"show_girls":               nonNull(graphql.Boolean),
					"max_results_per_division": nonNull(graphql.Int),
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					args := queries.TeamStandingArgs{
						Brand:                 intArg(p, "brand"),
						SelectYear:            stringArg(p, "select_year"),
						LevelOfPlay:           stringArg(p, "level_of_play"),
						Division:              stringArg(p, "division"),
						WinLossPercentCutoff:  floatArg(p, "win_loss_percent_cutoff"),
						ShowGirls:             boolArg(p, "show_girls"),
						MaxResultsPerDivision: intArg(p, "max_results_per_division"),
					}
					return rowsOrErr(svc.PublicTeamStanding(p.Context, requestFrom(p.Context), args))
				},
			},
			"publicTeamStandingGameResult": &graphql.Field{
				Type: graphql.NewList(teamStandingGameResultType),
				Args: graphql.FieldConfigArgument{
					"brand":       nonNull(graphql.Int),
					"select_year": nonNull(graphql.String),
					"teamOrg":     nonNull(graphql.Int),
					"teamId":      nonNull(graphql.Int),
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					args := queries.TeamStandingGameResultArgs{
						Brand:      intArg(p, "brand"),
						SelectYear: stringArg(p, "select_year"),
						TeamOrg:    intArg(p, "teamOrg"),
						TeamID:     intArg(p, "teamId"),
					}
					return rowsOrErr(svc.PublicTeamStandingGameResult(p.Context, requestFrom(p.Context), args))
				},
			},
			"publicBoxScore": &graphql.Field{
				Type: graphql.NewList(boxScoreType),
				Args: graphql.FieldConfigArgument{
					"teamId":                nonNull(graphql.Int),
					"selectYear":            nonNull(graphql.String),
					"gameId":                nonNull(graphql.Int),
					"maxResultsPerDivision": nonNull(graphql.Int),
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					args := queries.BoxScoreArgs{
						TeamID:                intArg(p, "teamId"),
						SelectYear:            stringArg(p, "selectYear"),
						GameID:                intArg(p, "gameId"),
						MaxResultsPerDivision: intArg(p, "maxResultsPerDivision"),
					}
					return rowsOrErr(svc.PublicBoxScore(p.Context, requestFrom(p.Context), args))
				},
			},
			"publicBrandList": &graphql.Field{
				Type: graphql.NewList(brandListType),
				Args: graphql.FieldConfigArgument{"brandNickname": nonNull(graphql.String)},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return rowsOrErr(svc.PublicBrandList(p.Context, requestFrom(p.Context), stringArg(p, "brandNickname")))
				},
			},
			"publicTSLevelDivision": &graphql.Field{
				Type: graphql.NewList(levelDivisionType),
				Args: graphql.FieldConfigArgument{"brand": nonNull(graphql.Int)},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return rowsOrErr(svc.PublicTSLevelDivision(p.Context, requestFrom(p.Context), intArg(p, "brand")))
				},
			},
			"signIn": &graphql.Field{
				Type: graphql.String,
				Args: graphql.FieldConfigArgument{"idToken": nonNull(graphql.String)},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					token, err := svc.SignIn(p.Context, stringArg(p, "idToken"))
					if err != nil {
						return nil, err
					}
					return token, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    query,
		Mutation: mutation,
		Types:    []graphql.Type{playerType, DecimalScalar},
	})
}

func stringArg(p graphql.ResolveParams, name string) string {
	v, _ := p.Args[name].(string)
	return v
}

func intArg(p graphql.ResolveParams, name string) int {
	v, _ := p.Args[name].(int)
	return v
}

func floatArg(p graphql.ResolveParams, name string) float64 {
	switch v := p.Args[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func boolArg(p graphql.ResolveParams, name string) bool {
	v, _ := p.Args[name].(bool)
	return v
}
