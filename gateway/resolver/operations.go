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

package resolver

import (
	"context"

	"github.com/ddam2015/spp-app-data-hub/connectors/base"
	"github.com/ddam2015/spp-app-data-hub/gateway/queries"
	"github.com/ddam2015/spp-app-data-hub/shared/logger"
)

// Hello is a static liveness query.
func (s *Service) Hello() string { return "Hello 3001" }

// Welcome is a static liveness query.
func (s *Service) Welcome() string { return "Welcome SPP" }

// EventByID returns the event with id, or nil when there is none.
func (s *Service) EventByID(ctx context.Context, req Request, id int64) (base.Row, error) {
	rows, err := s.run(ctx, queries.OpEventByID, req, func(prefix string) (base.QuerySpec, error) {
		return s.composer.EventByID(prefix, id)
	})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// EventSearch is the access-restricted event lookup with a raw filter.
func (s *Service) EventSearch(ctx context.Context, req Request, condition string) ([]base.Row, error) {
	if err := s.authorize(ctx, queries.OpEventSearch, req); err != nil {
		return nil, err
	}
	return s.events(ctx, queries.OpEventSearch, req, condition)
}

// EventPublic is the public event lookup with a raw filter.
func (s *Service) EventPublic(ctx context.Context, req Request, condition string) ([]base.Row, error) {
	return s.events(ctx, queries.OpEventPublic, req, condition)
}

// EventCalendar is the calendar view of the public event lookup.
func (s *Service) EventCalendar(ctx context.Context, req Request, condition string) ([]base.Row, error) {
	return s.events(ctx, queries.OpEventCalendar, req, condition)
}

func (s *Service) events(ctx context.Context, op string, req Request, condition string) ([]base.Row, error) {
	if err := s.inspect(ctx, op, req, condition); err != nil {
		return nil, err
	}
	return s.run(ctx, op, req, func(prefix string) (base.QuerySpec, error) {
		return s.composer.Events(op, prefix, condition)
	})
}

// PlayerDirectory returns the player directory as a compressed envelope.
func (s *Service) PlayerDirectory(ctx context.Context, req Request, condition string) (*Compressed, error) {
	op := queries.OpPlayerDirectory
	if err := s.inspect(ctx, op, req, condition); err != nil {
		return nil, err
	}
	rows, err := s.run(ctx, op, req, func(prefix string) (base.QuerySpec, error) {
		return s.composer.PlayerDirectory(prefix, condition)
	})
	if err != nil {
		return nil, err
	}
	return s.compress(ctx, op, req, rows)
}

// OrganizationDirectory returns the organization directory as a
// compressed envelope.
func (s *Service) OrganizationDirectory(ctx context.Context, req Request, condition string) (*Compressed, error) {
	op := queries.OpOrganizationDirectory
	if err := s.inspect(ctx, op, req, condition); err != nil {
		return nil, err
	}
	rows, err := s.run(ctx, op, req, func(prefix string) (base.QuerySpec, error) {
		return s.composer.OrganizationDirectory(prefix, condition)
	})
	if err != nil {
		return nil, err
	}
	return s.compress(ctx, op, req, rows)
}

func (s *Service) compress(ctx context.Context, op string, req Request, rows []base.Row) (*Compressed, error) {
	c, err := CompressRows(rows)
	if err != nil {
		return nil, s.publicError(ctx, op, req, err)
	}
	return c, nil
}

// PublicTeamStanding ranks teams for the standings page.
func (s *Service) PublicTeamStanding(ctx context.Context, req Request, args queries.TeamStandingArgs) ([]base.Row, error) {
	op := queries.OpPublicTeamStanding
	if _, err := queries.ParseDateRange(args.SelectYear); err != nil {
		return nil, s.publicError(ctx, op, req, err)
	}
	return s.run(ctx, op, req, func(prefix string) (base.QuerySpec, error) {
		return s.composer.TeamStanding(prefix, args)
	})
}

// PublicTeamStandingGameResult lists one team's games.
func (s *Service) PublicTeamStandingGameResult(ctx context.Context, req Request, args queries.TeamStandingGameResultArgs) ([]base.Row, error) {
	op := queries.OpPublicTeamStandingGameResult
	if _, err := queries.ParseDateRange(args.SelectYear); err != nil {
		return nil, s.publicError(ctx, op, req, err)
	}
	return s.run(ctx, op, req, func(prefix string) (base.QuerySpec, error) {
		return s.composer.TeamStandingGameResult(prefix, args)
	})
}

// PublicBoxScore returns the aggregated box score of a game.
func (s *Service) PublicBoxScore(ctx context.Context, req Request, args queries.BoxScoreArgs) ([]base.Row, error) {
	op := queries.OpPublicBoxScore
	if _, err := queries.ParseDateRange(args.SelectYear); err != nil {
		return nil, s.publicError(ctx, op, req, err)
	}
	return s.run(ctx, op, req, func(prefix string) (base.QuerySpec, error) {
		return s.composer.BoxScore(prefix, args)
	})
}

// PublicBrandList resolves a brand nickname.
func (s *Service) PublicBrandList(ctx context.Context, req Request, nickname string) ([]base.Row, error) {
	return s.run(ctx, queries.OpPublicBrandList, req, func(prefix string) (base.QuerySpec, error) {
		return s.composer.BrandList(prefix, nickname)
	})
}

// PublicTSLevelDivision lists a brand's levels and divisions.
func (s *Service) PublicTSLevelDivision(ctx context.Context, req Request, brand int) ([]base.Row, error) {
	return s.run(ctx, queries.OpPublicTSLevelDivision, req, func(prefix string) (base.QuerySpec, error) {
		return s.composer.LevelDivision(prefix, brand)
	})
}

// SignIn exchanges a Firebase ID token for a gateway credential.
func (s *Service) SignIn(ctx context.Context, idToken string) (string, error) {
	if s.signIn == nil {
		return "", &Error{Operation: "signIn", Message: MsgSignInFailed, Kind: base.ErrAuthInvalid}
	}
	token, err := s.signIn.Exchange(ctx, idToken)
	if err != nil {
		s.logger.Warn(logger.ClientID(ctx), logger.RequestID(ctx), "Sign-in failed", map[string]interface{}{
			"error": logger.SanitizeError(err),
		})
		return "", &Error{Operation: "signIn", Message: MsgSignInFailed, Kind: base.ErrAuthInvalid}
	}
	return token, nil
}
