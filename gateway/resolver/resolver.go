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

// Package resolver runs each gateway operation through the same pipeline:
// access check, argument validation, tenant pool lookup, statement
// composition, bounded execution and result shaping.
package resolver

import (
	"context"
	"errors"

	"github.com/ddam2015/spp-app-data-hub/connectors/base"
	"github.com/ddam2015/spp-app-data-hub/connectors/registry"
	"github.com/ddam2015/spp-app-data-hub/gateway/auth"
	"github.com/ddam2015/spp-app-data-hub/gateway/executor"
	"github.com/ddam2015/spp-app-data-hub/gateway/filterguard"
	"github.com/ddam2015/spp-app-data-hub/gateway/queries"
	"github.com/ddam2015/spp-app-data-hub/shared/logger"
)

// Public error messages.
const (
	MsgAccessDenied       = "Access Denied. No token provided."
	MsgInvalidToken       = "Invalid token."
	MsgSignInFailed       = "Invalid token"
	MsgFetchData          = "Failed to fetch data"
	MsgFetchStandings     = "Failed to fetch team standings"
	MsgFetchGameResults   = "Failed to fetch team game results"
	MsgFetchBoxScores     = "Failed to fetch boxscores results"
	MsgFetchBrands        = "Failed to fetch brand results"
	MsgFetchLevelDivision = "Failed to fetch levels and divisions results"
)

var failureMessages = map[string]string{
	queries.OpPublicTeamStanding:           MsgFetchStandings,
	queries.OpPublicTeamStandingGameResult: MsgFetchGameResults,
	queries.OpPublicBoxScore:               MsgFetchBoxScores,
	queries.OpPublicBrandList:              MsgFetchBrands,
	queries.OpPublicTSLevelDivision:        MsgFetchLevelDivision,
}

// Error is what callers see when an operation fails. Kind is one of the
// base failure classes; Message never carries database or SQL text.
type Error struct {
	Operation string
	Message   string
	Kind      error
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches the failure class.
func (e *Error) Is(target error) bool {
	return e.Kind != nil && e.Kind == target
}

// Extensions carries a machine-readable code alongside the message.
func (e *Error) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": Code(e.Kind)}
}

// Code names a failure class for clients.
func Code(kind error) string {
	switch kind {
	case base.ErrAuthRequired:
		return "AUTH_REQUIRED"
	case base.ErrAuthInvalid:
		return "AUTH_INVALID"
	case base.ErrInvalidArgument:
		return "INVALID_ARGUMENT"
	case base.ErrConnectionUnavailable:
		return "CONNECTION_UNAVAILABLE"
	case base.ErrQueryTimeout:
		return "QUERY_TIMEOUT"
	default:
		return "QUERY_EXECUTION"
	}
}

// Request carries what the pipeline needs from the inbound HTTP request.
type Request struct {
	Key           registry.RoutingKey
	Authorization string
}

// Service resolves gateway operations.
type Service struct {
	registry *registry.Registry
	composer *queries.Composer
	executor *executor.Executor
	gate     *auth.Gate
	guard    *filterguard.Guard
	signIn   *auth.SignIn
	logger   *logger.Logger
}

// Options configures a Service. Guard defaults to monitor mode; SignIn may
// be nil when identity verification is not configured.
type Options struct {
	Registry *registry.Registry
	Composer *queries.Composer
	Executor *executor.Executor
	Gate     *auth.Gate
	Guard    *filterguard.Guard
	SignIn   *auth.SignIn
	Logger   *logger.Logger
}

// New creates a Service.
func New(opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	composer := opts.Composer
	if composer == nil {
		composer = queries.NewComposer(0)
	}
	exec := opts.Executor
	if exec == nil {
		exec = executor.New(log, nil)
	}
	guard := opts.Guard
	if guard == nil {
		guard = filterguard.New(filterguard.DefaultMode, filterguard.WithLogger(log))
	}
	return &Service{
		registry: opts.Registry,
		composer: composer,
		executor: exec,
		gate:     opts.Gate,
		guard:    guard,
		signIn:   opts.SignIn,
		logger:   log.Named("resolver"),
	}
}

// composeFunc builds the query spec once the tenant prefix is known.
type composeFunc func(prefix string) (base.QuerySpec, error)

// run is the shared pipeline tail: composition, pool lookup, execution.
// Composition only needs the tenant prefix, so a malformed argument fails
// before the registry creates or touches a pool.
func (s *Service) run(ctx context.Context, op string, req Request, compose composeFunc) ([]base.Row, error) {
	_, prefix := s.registry.Prefix(req.Key)
	spec, err := compose(prefix)
	if err != nil {
		return nil, s.publicError(ctx, op, req, err)
	}

	tp, err := s.registry.GetPool(ctx, req.Key)
	if err != nil {
		return nil, s.publicError(ctx, op, req, err)
	}

	rows, err := s.executor.Execute(ctx, executor.Target{
		Pool:       tp.Pool,
		Tenant:     string(tp.Tenant),
		RoutingKey: req.Key.String(),
	}, spec)
	if err != nil {
		return nil, s.publicError(ctx, op, req, err)
	}
	return rows, nil
}

// authorize checks the bearer credential of access-restricted operations.
func (s *Service) authorize(ctx context.Context, op string, req Request) error {
	if s.gate == nil {
		return &Error{Operation: op, Message: MsgInvalidToken, Kind: base.ErrAuthInvalid}
	}
	if _, err := s.gate.Check(req.Authorization); err != nil {
		return s.publicError(ctx, op, req, err)
	}
	return nil
}

// inspect runs the raw filter guard over a caller-supplied clause.
func (s *Service) inspect(ctx context.Context, op string, req Request, filter string) error {
	if _, err := s.guard.Inspect(ctx, op, filter); err != nil {
		return s.publicError(ctx, op, req, err)
	}
	return nil
}

// publicError maps an internal failure to the operation's error contract.
func (s *Service) publicError(ctx context.Context, op string, req Request, err error) error {
	var pub *Error
	if errors.As(err, &pub) {
		return pub
	}

	kind := base.Kind(err)
	switch kind {
	case base.ErrAuthRequired:
		return &Error{Operation: op, Message: MsgAccessDenied, Kind: kind}
	case base.ErrAuthInvalid:
		return &Error{Operation: op, Message: MsgInvalidToken, Kind: kind}
	case base.ErrInvalidArgument:
		var ce *base.ConnectorError
		msg := "Invalid argument"
		if errors.As(err, &ce) {
			msg = "Invalid argument: " + ce.Message
		}
		return &Error{Operation: op, Message: msg, Kind: kind}
	}

	if kind == nil {
		kind = base.ErrQueryExecution
	}
	// The executor has already logged query failures with timing; this
	// covers pool creation and composition failures.
	if !errors.Is(err, base.ErrQueryTimeout) && !errors.Is(err, base.ErrQueryExecution) {
		s.logger.Error(logger.ClientID(ctx), logger.RequestID(ctx), "Operation failed", map[string]interface{}{
			"operation":   op,
			"routing_key": req.Key.String(),
			"error":       logger.SanitizeError(err),
		})
	}

	msg, ok := failureMessages[op]
	if !ok {
		msg = MsgFetchData
	}
	return &Error{Operation: op, Message: msg, Kind: kind}
}
