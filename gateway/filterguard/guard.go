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

// Package filterguard inspects the raw filter clauses that the event and
// directory operations splice into their statements.
//
// Those operations exist for the internal dashboard and accept arbitrary
// WHERE/ORDER BY/LIMIT text. The guard keeps that contract visible: in
// monitor mode a suspicious filter is logged and counted and still runs,
// in block mode it is refused before any connection is leased, and off
// skips inspection. The MySQL DSN never enables multi-statements, so a
// stacked statement is rejected by the server in every mode.
package filterguard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ddam2015/spp-app-data-hub/connectors/base"
	"github.com/ddam2015/spp-app-data-hub/shared/logger"
)

// Mode selects what happens when a filter matches a pattern.
type Mode string

const (
	ModeOff     Mode = "off"
	ModeMonitor Mode = "monitor"
	ModeBlock   Mode = "block"
)

// DefaultMode preserves the historical behaviour of running every filter.
const DefaultMode = ModeMonitor

// ParseMode parses a string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeOff, ModeMonitor, ModeBlock:
		return m, nil
	case "":
		return DefaultMode, nil
	default:
		return "", fmt.Errorf("invalid raw filter mode %q (valid: off, monitor, block)", s)
	}
}

// MaxFilterLength caps the filter text accepted in block mode.
const MaxFilterLength = 4096

// Result is the outcome of inspecting one filter.
type Result struct {
	Detected bool          `json:"detected"`
	Blocked  bool          `json:"blocked"`
	Pattern  string        `json:"pattern,omitempty"`
	Category Category      `json:"category,omitempty"`
	Severity int           `json:"severity,omitempty"`
	Snippet  string        `json:"snippet,omitempty"`
	Mode     Mode          `json:"mode"`
	Duration time.Duration `json:"duration_ns"`
}

// Guard is safe for concurrent use.
type Guard struct {
	mode       Mode
	patterns   *PatternSet
	snippetLen int
	logger     *logger.Logger
	onDetect   func(operation, pattern string, blocked bool)
}

// Option configures a Guard.
type Option func(*Guard)

// WithPatternSet replaces the default rules.
func WithPatternSet(ps *PatternSet) Option {
	return func(g *Guard) { g.patterns = ps }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(g *Guard) { g.logger = l }
}

// WithDetectionHook is called for every detection, e.g. to count metrics.
func WithDetectionHook(fn func(operation, pattern string, blocked bool)) Option {
	return func(g *Guard) { g.onDetect = fn }
}

// New creates a Guard in mode.
func New(mode Mode, opts ...Option) *Guard {
	g := &Guard{
		mode:       mode,
		patterns:   NewPatternSet(),
		snippetLen: 100,
		logger:     logger.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.Named("filterguard")
	return g
}

// Mode returns the configured mode.
func (g *Guard) Mode() Mode {
	return g.mode
}

// Inspect checks filter for operation. It returns ErrInvalidArgument when
// the filter is refused, and the scan result otherwise.
func (g *Guard) Inspect(ctx context.Context, operation, filter string) (*Result, error) {
	start := time.Now()

	if g.mode == ModeOff {
		return &Result{Mode: ModeOff, Duration: time.Since(start)}, nil
	}

	if g.mode == ModeBlock && len(filter) > MaxFilterLength {
		return nil, base.NewConnectorError(operation, "Inspect",
			fmt.Sprintf("filter exceeds %d bytes", MaxFilterLength), nil).WithKind(base.ErrInvalidArgument)
	}

	for _, p := range g.patterns.Patterns() {
		if !p.Regex.MatchString(filter) {
			continue
		}

		res := &Result{
			Detected: true,
			Blocked:  g.mode == ModeBlock,
			Pattern:  p.Name,
			Category: p.Category,
			Severity: p.Severity,
			Snippet:  g.snippet(filter),
			Mode:     g.mode,
			Duration: time.Since(start),
		}

		g.logger.Warn(logger.ClientID(ctx), logger.RequestID(ctx), "Suspicious raw filter", map[string]interface{}{
			"operation": operation,
			"pattern":   p.Name,
			"category":  string(p.Category),
			"severity":  p.Severity,
			"blocked":   res.Blocked,
			"snippet":   res.Snippet,
		})
		if g.onDetect != nil {
			g.onDetect(operation, p.Name, res.Blocked)
		}

		if res.Blocked {
			return res, base.NewConnectorError(operation, "Inspect",
				"filter rejected: "+p.Description, nil).WithKind(base.ErrInvalidArgument)
		}
		return res, nil
	}

	return &Result{Mode: g.mode, Duration: time.Since(start)}, nil
}

func (g *Guard) snippet(s string) string {
	return base.LogSafe(s, g.snippetLen)
}
