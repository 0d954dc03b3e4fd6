// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package epoch holds the calendar every component accounts in. All times
// are unix seconds.
package epoch

const (
	Day  uint64 = 86400
	Week uint64 = 7 * Day
	Year uint64 = 365 * Day

	// MaxLockTime is the longest voting escrow lock.
	MaxLockTime uint64 = 4 * Year
)

// FloorWeek rounds t down to the start of its week.
func FloorWeek(t uint64) uint64 {
	return t / Week * Week
}

// NextWeek returns the start of the week following t.
func NextWeek(t uint64) uint64 {
	return FloorWeek(t) + Week
}
