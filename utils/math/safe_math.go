// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package math provides checked arithmetic. Every overflow, underflow or
// division by zero is reported as an error and never saturated.
package math

import "errors"

var (
	ErrOverflow     = errors.New("overflow")
	ErrUnderflow    = errors.New("underflow")
	ErrDivideByZero = errors.New("division by zero")

	ErrInvalidAmount = errors.New("invalid amount")
)

// Timestamp is any unsigned integer used for times and block heights.
type Timestamp interface {
	~uint32 | ~uint64
}

// Add returns a + b, or ErrOverflow if the sum wraps.
func Add[T Timestamp](a, b T) (T, error) {
	sum := a + b
	if sum < a {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a - b, or ErrUnderflow if b > a.
func Sub[T Timestamp](a, b T) (T, error) {
	if a < b {
		return 0, ErrUnderflow
	}
	return a - b, nil
}
