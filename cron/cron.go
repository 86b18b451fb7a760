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

// Package cron evaluates 6-field cron expressions (second, minute, hour,
// day-of-month, month, day-of-week). Next is pure and carries no timing
// dependency of its own; a ticking task elsewhere is a thin wrapper that
// sleeps until the instant it returns.
package cron

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Expr is a parsed cron expression.
type Expr struct {
	second, minute, hour, month [64]bool
	dom                         [32]bool
	dow                         [8]bool
	domStar, dowStar            bool
	src                         string
}

func (e *Expr) String() string { return e.src }

// Parse parses a 6-field cron expression. Fields are second, minute,
// hour, day-of-month, month, day-of-week, each accepting "*", "a-b",
// "*/n", "a-b/n", or a comma-separated list of any of those.
func Parse(expr string) (*Expr, error) {
	fields := strings.Fields(expr)
	if len(fields) != 6 {
		return nil, fmt.Errorf("cron: expected 6 fields, got %d in %q", len(fields), expr)
	}
	e := &Expr{src: expr}

	if err := fillField(fields[0], 0, 59, e.second[:]); err != nil {
		return nil, fmt.Errorf("cron: second field: %w", err)
	}
	if err := fillField(fields[1], 0, 59, e.minute[:]); err != nil {
		return nil, fmt.Errorf("cron: minute field: %w", err)
	}
	if err := fillField(fields[2], 0, 23, e.hour[:]); err != nil {
		return nil, fmt.Errorf("cron: hour field: %w", err)
	}
	if err := fillField(fields[3], 1, 31, e.dom[:]); err != nil {
		return nil, fmt.Errorf("cron: day-of-month field: %w", err)
	}
	if err := fillField(fields[4], 1, 12, e.month[:]); err != nil {
		return nil, fmt.Errorf("cron: month field: %w", err)
	}
	if err := fillField(fields[5], 0, 6, e.dow[:]); err != nil {
		return nil, fmt.Errorf("cron: day-of-week field: %w", err)
	}
	e.domStar = fields[3] == "*"
	e.dowStar = fields[5] == "*"
	return e, nil
}

// fillField sets dst[v] = true for every value v in lo..hi matched by
// field, which may be a comma-separated list of "*", "a-b", "*/n", or
// "a-b/n" terms.
func fillField(field string, lo, hi int, dst []bool) error {
	for _, term := range strings.Split(field, ",") {
		if err := fillTerm(term, lo, hi, dst); err != nil {
			return err
		}
	}
	return nil
}

func fillTerm(term string, lo, hi int, dst []bool) error {
	rangePart := term
	step := 1
	if idx := strings.IndexByte(term, '/'); idx >= 0 {
		rangePart = term[:idx]
		n, err := strconv.Atoi(term[idx+1:])
		if err != nil || n <= 0 {
			return fmt.Errorf("bad step in %q", term)
		}
		step = n
	}

	start, end := lo, hi
	switch {
	case rangePart == "*":
		// full range, already set above
	case strings.Contains(rangePart, "-"):
		parts := strings.SplitN(rangePart, "-", 2)
		a, err1 := strconv.Atoi(parts[0])
		b, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			return fmt.Errorf("bad range in %q", term)
		}
		start, end = a, b
	default:
		n, err := strconv.Atoi(rangePart)
		if err != nil {
			return fmt.Errorf("bad value %q", term)
		}
		start, end = n, n
	}

	if start < lo || end > hi || start > end {
		return fmt.Errorf("value out of range in %q (want %d-%d)", term, lo, hi)
	}
	for v := start; v <= end; v += step {
		dst[v] = true
	}
	return nil
}

// maxSearch bounds Next's search horizon: an expression unsatisfiable
// within a year of from is treated as permanently inactive.
const maxSearch = 366 * 24 * time.Hour

// Next returns the smallest instant strictly greater than from that
// satisfies expr, or ok=false if no such instant exists within one year
// of from.
func Next(e *Expr, from time.Time) (next time.Time, ok bool) {
	t := from.Add(time.Second).Truncate(time.Second)
	deadline := from.Add(maxSearch)
	loc := from.Location()

	for i := 0; ; i++ {
		if t.After(deadline) {
			return time.Time{}, false
		}
		if i > 4*366*24*60*60 {
			// Defensive backstop; fillField guarantees forward progress,
			// but a malformed Expr should never spin forever.
			return time.Time{}, false
		}

		if !e.month[int(t.Month())] {
			t = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, 1, 0)
			continue
		}
		if !dayMatches(e, t) {
			t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
			continue
		}
		if !e.hour[t.Hour()] {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc).Add(time.Hour)
			continue
		}
		if !e.minute[t.Minute()] {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, loc).Add(time.Minute)
			continue
		}
		if !e.second[t.Second()] {
			t = t.Add(time.Second)
			continue
		}
		return t, true
	}
}

// dayMatches implements the standard cron OR rule: if both
// day-of-month and day-of-week are restricted, a day matching either
// field qualifies; if one is "*" the other is used exclusively.
func dayMatches(e *Expr, t time.Time) bool {
	domOK := e.dom[t.Day()]
	dowOK := e.dow[int(t.Weekday())]
	switch {
	case e.domStar && e.dowStar:
		return true
	case e.domStar:
		return dowOK
	case e.dowStar:
		return domOK
	default:
		return domOK || dowOK
	}
}
