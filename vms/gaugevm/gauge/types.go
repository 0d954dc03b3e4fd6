// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gauge

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	"github.com/luxfi/vegauge/utils/wrappers"
)

// RewardData is the stream of one reward token.
type RewardData struct {
	Distributor  ids.ShortID  `json:"distributor"`
	PeriodFinish uint64       `json:"periodFinish"`
	Rate         *uint256.Int `json:"rate"`
	LastUpdate   uint64       `json:"lastUpdate"`
	// Integral is the cumulative reward per share, scaled by 1e18.
	Integral *uint256.Int `json:"integral"`
}

func newRewardData() RewardData {
	return RewardData{Rate: new(uint256.Int), Integral: new(uint256.Int)}
}

func (r *RewardData) Pack(p *wrappers.Packer) {
	p.PackShortID(r.Distributor)
	p.PackLong(r.PeriodFinish)
	p.PackU256(r.Rate)
	p.PackLong(r.LastUpdate)
	p.PackU256(r.Integral)
}

func (r *RewardData) Unpack(p *wrappers.Packer) {
	r.Distributor = p.UnpackShortID()
	r.PeriodFinish = p.UnpackLong()
	r.Rate = p.UnpackU256()
	r.LastUpdate = p.UnpackLong()
	r.Integral = p.UnpackU256()
}

// ClaimData is what one account is owed and has received of one reward
// token.
type ClaimData struct {
	Claimable *uint256.Int `json:"claimable"`
	Claimed   *uint256.Int `json:"claimed"`
}

func newClaimData() ClaimData {
	return ClaimData{Claimable: new(uint256.Int), Claimed: new(uint256.Int)}
}

func (c *ClaimData) Pack(p *wrappers.Packer) {
	p.PackU256(c.Claimable)
	p.PackU256(c.Claimed)
}

func (c *ClaimData) Unpack(p *wrappers.Packer) {
	c.Claimable = p.UnpackU256()
	c.Claimed = p.UnpackU256()
}
