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

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ddam2015/spp-app-data-hub/connectors/base"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeMonitor, false},
		{"off", ModeOff, false},
		{"MONITOR", ModeMonitor, false},
		{" block ", ModeBlock, false},
		{"enforce", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestInspectCleanFilters(t *testing.T) {
	g := New(ModeBlock)
	clean := []string{
		"",
		"WHERE enabled = 1 ORDER BY eventtime DESC LIMIT 20",
		"WHERE org = 3191 AND type = 1 AND eventtime BETWEEN '2023-09-01' AND '2024-08-31'",
		"WHERE state = 'CA' AND name LIKE '%smith%'",
		"WHERE id IN (1, 2, 3)",
	}
	for _, f := range clean {
		res, err := g.Inspect(context.Background(), "eventSearch", f)
		if err != nil {
			t.Errorf("Inspect(%q) unexpected error: %v", f, err)
			continue
		}
		if res.Detected {
			t.Errorf("Inspect(%q) flagged by %s", f, res.Pattern)
		}
	}
}

func TestInspectDetects(t *testing.T) {
	tests := []struct {
		filter  string
		pattern string
	}{
		{"WHERE 1=1 UNION SELECT user, authentication_string FROM mysql.user", "union_select"},
		{"WHERE id = 1 OR 1=1", "or_true_condition"},
		{"WHERE name = '' OR 'a'='a'", "or_string_condition"},
		{"WHERE id = 1 AND SLEEP(5)", "sleep_function"},
		{"WHERE id = 1; DROP TABLE spp_events", "stacked_statement"},
		{"WHERE id = 1 -- ", "comment"},
		{"WHERE id IN (SELECT id FROM spp_players)", "subquery_select"},
		{"WHERE x = LOAD_FILE('/etc/passwd')", "load_file"},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			var hooked string
			g := New(ModeMonitor, WithDetectionHook(func(op, pattern string, blocked bool) {
				hooked = pattern
				if blocked {
					t.Error("monitor mode must not block")
				}
			}))
			res, err := g.Inspect(context.Background(), "eventPublic", tt.filter)
			if err != nil {
				t.Fatalf("monitor mode returned error: %v", err)
			}
			if !res.Detected || res.Pattern != tt.pattern {
				t.Errorf("Inspect(%q) = %+v, want pattern %s", tt.filter, res, tt.pattern)
			}
			if hooked != tt.pattern {
				t.Errorf("hook saw %q, want %q", hooked, tt.pattern)
			}
		})
	}
}

func TestInspectBlockMode(t *testing.T) {
	g := New(ModeBlock)
	res, err := g.Inspect(context.Background(), "playerDirectory", "WHERE 1=1 UNION SELECT 1,2,3,4")
	if !errors.Is(err, base.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if res == nil || !res.Blocked {
		t.Errorf("expected blocked result, got %+v", res)
	}
}

func TestInspectOffModeSkips(t *testing.T) {
	g := New(ModeOff)
	res, err := g.Inspect(context.Background(), "eventPublic", "WHERE 1=1 UNION SELECT 1")
	if err != nil || res.Detected {
		t.Errorf("off mode should skip inspection, got %+v, %v", res, err)
	}
}

func TestOversizedFilterRejectedOnlyInBlockMode(t *testing.T) {
	filter := "WHERE name = '" + strings.Repeat("x", MaxFilterLength) + "'"

	_, err := New(ModeBlock).Inspect(context.Background(), "eventPublic", filter)
	if !errors.Is(err, base.ErrInvalidArgument) {
		t.Errorf("block: expected ErrInvalidArgument, got %v", err)
	}

	for _, mode := range []Mode{ModeOff, ModeMonitor} {
		res, err := New(mode).Inspect(context.Background(), "eventPublic", filter)
		if err != nil {
			t.Errorf("%s: oversized filter refused: %v", mode, err)
			continue
		}
		if res.Blocked {
			t.Errorf("%s: oversized filter marked blocked", mode)
		}
	}
}
