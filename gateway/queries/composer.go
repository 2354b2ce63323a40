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

// Package queries builds the parameterized statements behind each report.
//
// Caller-supplied scalars are always bound as ? parameters. Two things are
// spliced into statement text: the tenant's table-namespace prefix, which
// is validated as an identifier, and the raw filter clause accepted by the
// event and directory operations, which callers must vet with filterguard.
package queries

import (
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/ddam2015/spp-app-data-hub/connectors/base"
)

//go:embed sql/*.sql
var sqlFS embed.FS

const (
	prefixToken         = "{{prefix}}"
	divisionFilterToken = "{{division_filter}}"

	// Girls divisions are dropped from standings unless show_girls is set.
	excludeGirlsDivisions = "division NOT IN (39, 40, 41, 42, 43, 44, 45, 46, 47)"
	includeAllDivisions   = "1=1"

	// GroupConcatSessionSQL raises the GROUP_CONCAT limit for the box score
	// aggregate. It is session-scoped and must run on the same connection.
	GroupConcatSessionSQL = "SET SESSION group_concat_max_len = 10000000000"
)

// Operation names, used for logs, metrics and error messages.
const (
	OpEventByID                    = "eventById"
	OpEventSearch                  = "eventSearch"
	OpEventPublic                  = "eventPublic"
	OpEventCalendar                = "eventCalendar"
	OpPlayerDirectory              = "playerDirectory"
	OpOrganizationDirectory        = "organizationDirectory"
	OpPublicTeamStanding           = "publicTeamStanding"
	OpPublicTeamStandingGameResult = "publicTeamStandingGameResult"
	OpPublicBoxScore               = "publicBoxScore"
	OpPublicBrandList              = "publicBrandList"
	OpPublicTSLevelDivision        = "publicTSLevelDivision"
)

var (
	teamStandingSQL           = mustLoad("team_standing.sql")
	teamStandingGameResultSQL = mustLoad("team_standing_game_result.sql")
	boxScoreSQL               = mustLoad("box_score.sql")
	brandListSQL              = mustLoad("brand_list.sql")
	levelDivisionSQL          = mustLoad("level_division.sql")
)

func mustLoad(name string) string {
	b, err := sqlFS.ReadFile("sql/" + name)
	if err != nil {
		panic(fmt.Sprintf("queries: missing embedded %s: %v", name, err))
	}
	return strings.TrimSpace(string(b))
}

// Composer turns typed report arguments into QuerySpecs.
type Composer struct {
	timeout time.Duration
}

// DefaultTimeout is the per-query budget used when none is configured.
const DefaultTimeout = 5 * time.Second

// NewComposer creates a Composer whose specs carry timeout.
func NewComposer(timeout time.Duration) *Composer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Composer{timeout: timeout}
}

// Timeout returns the per-query budget.
func (c *Composer) Timeout() time.Duration {
	return c.timeout
}

func (c *Composer) spec(op, prefix, sql string, args []interface{}, pre ...base.Statement) (base.QuerySpec, error) {
	if err := base.ValidateTablePrefix(prefix); err != nil {
		return base.QuerySpec{}, base.NewConnectorError(op, "Compose", "invalid table prefix", err).WithKind(base.ErrInvalidArgument)
	}
	sql = strings.ReplaceAll(sql, prefixToken, prefix)
	return base.NewQuerySpec(op, c.timeout, base.Statement{SQL: sql, Args: args}, pre...)
}

// EventByID looks up one event by id.
func (c *Composer) EventByID(prefix string, id int64) (base.QuerySpec, error) {
	return c.spec(OpEventByID, prefix, "SELECT * FROM {{prefix}}_events WHERE id = ?", []interface{}{id})
}

// Events selects every event column followed by a caller-supplied filter
// clause (WHERE/ORDER BY/LIMIT). Used by eventSearch, eventPublic and
// eventCalendar.
func (c *Composer) Events(op, prefix, filter string) (base.QuerySpec, error) {
	return c.rawFilter(op, prefix, "SELECT * FROM {{prefix}}_events", filter)
}

// PlayerDirectory selects the player directory columns with a raw filter.
func (c *Composer) PlayerDirectory(prefix, filter string) (base.QuerySpec, error) {
	return c.rawFilter(OpPlayerDirectory, prefix, "SELECT id, name, city, state FROM {{prefix}}_players", filter)
}

// OrganizationDirectory selects the organization directory columns with a
// raw filter.
func (c *Composer) OrganizationDirectory(prefix, filter string) (base.QuerySpec, error) {
	return c.rawFilter(OpOrganizationDirectory, prefix, "SELECT id, name, profile_img FROM {{prefix}}_players", filter)
}

func (c *Composer) rawFilter(op, prefix, head, filter string) (base.QuerySpec, error) {
	sql := head
	if f := strings.TrimSpace(filter); f != "" {
		sql += " " + f
	}
	// The filter is statement text; any ? in it has no bound value.
	if base.CountPlaceholders(sql) != 0 {
		return base.QuerySpec{}, base.NewConnectorError(op, "Compose", "filter must not contain placeholders", nil).WithKind(base.ErrInvalidArgument)
	}
	return c.spec(op, prefix, sql, nil)
}

// TeamStandingArgs are the publicTeamStanding inputs.
type TeamStandingArgs struct {
	Brand                 int
	SelectYear            string
	LevelOfPlay           string
	Division              string
	WinLossPercentCutoff  float64
	ShowGirls             bool
	MaxResultsPerDivision int
}

// TeamStanding ranks teams per division by win percentage.
func (c *Composer) TeamStanding(prefix string, a TeamStandingArgs) (base.QuerySpec, error) {
	dr, err := ParseDateRange(a.SelectYear)
	if err != nil {
		return base.QuerySpec{}, err
	}

	divisionFilter := excludeGirlsDivisions
	if a.ShowGirls {
		divisionFilter = includeAllDivisions
	}
	sql := strings.Replace(teamStandingSQL, divisionFilterToken, divisionFilter, 1)

	args := []interface{}{
		a.Brand,
		dr.Start, dr.End,
		dr.Start, dr.End,
		a.LevelOfPlay,
		a.Division, a.Division,
		a.WinLossPercentCutoff,
		dr.End,
		a.LevelOfPlay,
		a.MaxResultsPerDivision,
	}
	return c.spec(OpPublicTeamStanding, prefix, sql, args)
}

// TeamStandingGameResultArgs are the publicTeamStandingGameResult inputs.
type TeamStandingGameResultArgs struct {
	Brand      int
	SelectYear string
	TeamOrg    int
	TeamID     int
}

// TeamStandingGameResult lists a team's games with outcomes and opponents.
func (c *Composer) TeamStandingGameResult(prefix string, a TeamStandingGameResultArgs) (base.QuerySpec, error) {
	dr, err := ParseDateRange(a.SelectYear)
	if err != nil {
		return base.QuerySpec{}, err
	}
	args := []interface{}{a.Brand, dr.Start, dr.End, a.TeamOrg, a.TeamID}
	return c.spec(OpPublicTeamStandingGameResult, prefix, teamStandingGameResultSQL, args)
}

// BoxScoreArgs are the publicBoxScore inputs.
type BoxScoreArgs struct {
	TeamID                int
	SelectYear            string
	GameID                int
	MaxResultsPerDivision int
}

// BoxScore aggregates per-game player stats into JSON. The aggregate needs
// a raised GROUP_CONCAT limit, so the spec carries the session statement
// ahead of the main one.
func (c *Composer) BoxScore(prefix string, a BoxScoreArgs) (base.QuerySpec, error) {
	dr, err := ParseDateRange(a.SelectYear)
	if err != nil {
		return base.QuerySpec{}, err
	}
	args := []interface{}{
		a.TeamID, a.GameID, dr.Start, dr.End,
		a.TeamID, a.GameID, dr.Start, dr.End,
		a.MaxResultsPerDivision,
	}
	return c.spec(OpPublicBoxScore, prefix, boxScoreSQL, args, base.Statement{SQL: GroupConcatSessionSQL})
}

// BrandList resolves a brand nickname against the fixed brand allow-list.
func (c *Composer) BrandList(prefix, nickname string) (base.QuerySpec, error) {
	return c.spec(OpPublicBrandList, prefix, brandListSQL, []interface{}{nickname})
}

// LevelDivision lists the distinct divisions of a brand's league events.
func (c *Composer) LevelDivision(prefix string, brand int) (base.QuerySpec, error) {
	return c.spec(OpPublicTSLevelDivision, prefix, levelDivisionSQL, []interface{}{brand})
}
