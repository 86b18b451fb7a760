// Copyright 2015 The Govisor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cron

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{"every second", "* * * * * *", false},
		{"every minute", "0 * * * * *", false},
		{"step seconds", "*/15 * * * * *", false},
		{"list", "0,15,30,45 * * * * *", false},
		{"range with step", "0 0-30/5 * * * *", false},
		{"weekday 9am", "0 0 9 * * 1-5", false},
		{"too few fields", "* * * * *", true},
		{"too many fields", "* * * * * * *", true},
		{"bad second", "60 * * * * *", true},
		{"bad hour", "0 0 25 * * *", true},
		{"bad step", "*/0 * * * * *", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
		})
	}
}

func TestNext(t *testing.T) {
	ref := time.Date(2026, 8, 6, 10, 30, 15, 0, time.UTC)

	tests := []struct {
		name string
		expr string
		from time.Time
		want time.Time
	}{
		{
			"every second",
			"* * * * * *",
			ref,
			ref.Add(time.Second),
		},
		{
			"every minute on the minute",
			"0 * * * * *",
			ref,
			time.Date(2026, 8, 6, 10, 31, 0, 0, time.UTC),
		},
		{
			"top of next hour",
			"0 0 * * * *",
			ref,
			time.Date(2026, 8, 6, 11, 0, 0, 0, time.UTC),
		},
		{
			"midnight tomorrow",
			"0 0 0 * * *",
			ref,
			time.Date(2026, 8, 7, 0, 0, 0, 0, time.UTC),
		},
		{
			"every 5 seconds",
			"*/5 * * * * *",
			ref,
			time.Date(2026, 8, 6, 10, 30, 20, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Parse(tt.expr)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.expr, err)
			}
			got, ok := Next(e, tt.from)
			if !ok {
				t.Fatalf("Next(%q, %v): no result", tt.expr, tt.from)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Next(%q, %v) = %v, want %v", tt.expr, tt.from, got, tt.want)
			}
			if !got.After(tt.from) {
				t.Errorf("Next(%q, %v) = %v, not strictly after from", tt.expr, tt.from, got)
			}
		})
	}
}

func TestNextUnsatisfiable(t *testing.T) {
	// February 30th never exists.
	e, err := Parse("0 0 0 30 2 *")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, ok := Next(e, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if ok {
		t.Errorf("expected no satisfying instant within a year")
	}
}

func TestNextNoSkippedInstant(t *testing.T) {
	// Walk second-by-second for a window and confirm Next never skips a
	// satisfying instant between from and the returned instant.
	e, err := Parse("*/7 * * * * *")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	from := time.Date(2026, 8, 6, 0, 0, 0, 0, time.UTC)
	next, ok := Next(e, from)
	if !ok {
		t.Fatal("expected a result")
	}
	for cur := from.Add(time.Second); cur.Before(next); cur = cur.Add(time.Second) {
		if cur.Second()%7 == 0 {
			t.Fatalf("instant %v satisfies expr but lies before Next's result %v", cur, next)
		}
	}
}
