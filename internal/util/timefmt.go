// SPDX-FileCopyrightText: 2025 The weighbridge authors
// SPDX-License-Identifier: Apache-2.0

package util

import (
	"fmt"
	"time"
)

// CompactTimeFormat is the timestamp layout used on query parameters and in
// report payloads. The station hardware and the legacy clients both produce
// and expect exactly this layout in server-local time, so it must not change.
const CompactTimeFormat = "20060102150405"

// ParseCompactTime parses a compact timestamp. An empty input yields the
// given default.
func ParseCompactTime(input string, defaultValue time.Time) (time.Time, error) {
	if input == "" {
		return defaultValue, nil
	}
	t, err := time.ParseInLocation(CompactTimeFormat, input, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q (expected format yyyymmddhhmmss)", input)
	}
	return t, nil
}

// FormatCompactTime renders a timestamp in the compact layout.
func FormatCompactTime(t time.Time) string {
	return t.In(time.Local).Format(CompactTimeFormat)
}

// StartOfToday returns midnight of the current day in server-local time.
func StartOfToday(now time.Time) time.Time {
	now = now.In(time.Local)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
}

// StartOfMonth returns the first of the current month at midnight in
// server-local time.
func StartOfMonth(now time.Time) time.Time {
	now = now.In(time.Local)
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.Local)
}
