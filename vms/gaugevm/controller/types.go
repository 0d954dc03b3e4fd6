// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package controller

import (
	"github.com/holiman/uint256"

	"github.com/luxfi/vegauge/utils/wrappers"
)

// Point is a weight decaying by Slope per second.
type Point struct {
	Bias  *uint256.Int `json:"bias"`
	Slope *uint256.Int `json:"slope"`
}

func newPoint() Point {
	return Point{Bias: new(uint256.Int), Slope: new(uint256.Int)}
}

func (p *Point) Pack(pk *wrappers.Packer) {
	pk.PackU256(p.Bias)
	pk.PackU256(p.Slope)
}

func (p *Point) Unpack(pk *wrappers.Packer) {
	p.Bias = pk.UnpackU256()
	p.Slope = pk.UnpackU256()
}

// VotedSlope is one account's vote for one gauge.
type VotedSlope struct {
	Slope *uint256.Int `json:"slope"`
	// Power is the share of the account's voting power in basis points.
	Power uint64 `json:"power"`
	End   uint64 `json:"end"`
}

func (v *VotedSlope) Pack(pk *wrappers.Packer) {
	pk.PackU256(v.Slope)
	pk.PackLong(v.Power)
	pk.PackLong(v.End)
}

func (v *VotedSlope) Unpack(pk *wrappers.Packer) {
	v.Slope = pk.UnpackU256()
	v.Power = pk.UnpackLong()
	v.End = pk.UnpackLong()
}
