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

import "github.com/graphql-go/graphql"

func fields(specs ...fieldSpec) graphql.Fields {
	out := graphql.Fields{}
	for _, s := range specs {
		out[s.name] = &graphql.Field{Type: s.typ}
	}
	return out
}

type fieldSpec struct {
	name string
	typ  graphql.Output
}

func str(name string) fieldSpec { return fieldSpec{name, graphql.String} }
func num(name string) fieldSpec { return fieldSpec{name, graphql.Int} }
func flt(name string) fieldSpec { return fieldSpec{name, graphql.Float} }
func idf(name string) fieldSpec { return fieldSpec{name, graphql.ID} }
func js(name string) fieldSpec { return fieldSpec{name, JSONScalar} }
func dt(name string) fieldSpec { return fieldSpec{name, DateTimeScalar} }

var eventType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Event",
	Fields: fields(
		idf("id"), str("name"), str("short_name"), dt("dates"), str("logo_img"),
		str("link"), dt("eventtime"), dt("updatetime"), num("account_level"),
		num("enabled"), num("org"), num("type"), str("hashtag"), str("description"),
		str("times"), js("divisions"), str("locations"), str("short_locations"),
		js("social"), str("video"), js("schedule_link"), js("stats"), js("trends"),
		str("contact_name"), str("email"), str("phone"), str("nickname"),
	),
})

var playerType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Player",
	Fields: fields(
		idf("id"), dt("createtime"), dt("updatetime"), num("account_level"), num("enabled"),
		str("first_name"), str("last_name"), str("email"), str("phone"), str("profile_img"),
		str("address"), str("city"), str("state"), str("zip"), str("country"),
		dt("birthday"), num("verified"), str("tagline"), num("grad_year"),
		num("height_ft"), num("height_in"), num("weight"), num("position"),
		js("social"), js("videos"), js("notes"), num("club_team"), str("school"),
		fieldSpec{"gpa", DecimalScalar}, num("sat"), num("act"), str("nickname"),
		js("access"), str("name"), js("attendant"),
	),
})

var compressedDataType = graphql.NewObject(graphql.ObjectConfig{
	Name:   "CompressedData",
	Fields: fields(str("data")),
})

var teamStandingType = graphql.NewObject(graphql.ObjectConfig{
	Name: "TeamStanding",
	Fields: fields(
		num("org_id"), num("team_id"), str("level_of_play"), num("division"),
		str("full_team_name"), str("org_logo"), num("total_wins"), num("total_losses"),
		flt("win_percentage"), flt("ppg"), flt("opp_ppg"),
	),
})

var teamStandingGameResultType = graphql.NewObject(graphql.ObjectConfig{
	Name: "TeamStandingGameResult",
	Fields: fields(
		num("team_id"), num("event_id"), num("game_id"), str("event_name"), num("org"),
		num("roster_id"), num("score"), num("opp_org_id"), num("opp_roster_id"),
		num("opp_score"), str("outcome"), num("level"), str("full_team_name"),
		str("org_logo"), str("opp_full_team_name"), str("opp_org_logo"),
	),
})

var boxScoreType = graphql.NewObject(graphql.ObjectConfig{
	Name:   "BoxScore",
	Fields: fields(js("box_score")),
})

var brandListType = graphql.NewObject(graphql.ObjectConfig{
	Name:   "BrandList",
	Fields: fields(num("id"), str("nickname")),
})

var levelDivisionType = graphql.NewObject(graphql.ObjectConfig{
	Name:   "LevelDivision",
	Fields: fields(js("lv_dv")),
})
