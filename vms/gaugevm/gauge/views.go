// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gauge

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
)

func (g *Gauge) BalanceOf(addr ids.ShortID) (*uint256.Int, error) {
	return g.store.U256(keyBalanceOf.Addr(addr))
}

func (g *Gauge) TotalSupply() (*uint256.Int, error) {
	return g.store.U256(keyTotalSupply)
}

func (g *Gauge) Allowance(owner, spender ids.ShortID) (*uint256.Int, error) {
	return g.store.U256(keyAllowance.Addr(owner).Addr(spender))
}

// Period returns the index of the last checkpoint.
func (g *Gauge) Period() (uint64, error) {
	return g.store.Uint64(keyPeriod)
}

func (g *Gauge) PeriodTimestamp(period uint64) (uint64, error) {
	return g.store.Uint64(keyPeriodTimestamp.Uint(period))
}

// IntegrateInvSupply returns the emission per unit of working supply
// accrued up to period, scaled by 1e18.
func (g *Gauge) IntegrateInvSupply(period uint64) (*uint256.Int, error) {
	return g.store.U256(keyIntegrateInvSupply.Uint(period))
}

func (g *Gauge) IntegrateInvSupplyOf(addr ids.ShortID) (*uint256.Int, error) {
	return g.store.U256(keyIntegrateInvSupplyOf.Addr(addr))
}

func (g *Gauge) IntegrateCheckpointOf(addr ids.ShortID) (uint64, error) {
	return g.store.Uint64(keyIntegrateCheckpointOf.Addr(addr))
}

// IntegrateFraction returns the governance tokens addr has accrued in
// total, minted or not.
func (g *Gauge) IntegrateFraction(addr ids.ShortID) (*uint256.Int, error) {
	return g.store.U256(keyIntegrateFraction.Addr(addr))
}

func (g *Gauge) InflationRate() (*uint256.Int, error) {
	return g.store.U256(keyInflationRate)
}

func (g *Gauge) FutureEpochTime() (uint64, error) {
	return g.store.Uint64(keyFutureEpochTime)
}

func (g *Gauge) WorkingBalance(addr ids.ShortID) (*uint256.Int, error) {
	return g.store.U256(keyWorkingBalances.Addr(addr))
}

func (g *Gauge) WorkingSupply() (*uint256.Int, error) {
	return g.store.U256(keyWorkingSupply)
}

func (g *Gauge) IsKilled() (bool, error) {
	return g.store.Bool(keyIsKilled)
}

func (g *Gauge) RewardCount() (uint64, error) {
	return g.store.Uint64(keyRewardCount)
}

func (g *Gauge) RewardTokens(i uint64) (ids.ShortID, error) {
	return g.store.Addr(keyRewardTokens.Uint(i))
}

func (g *Gauge) RewardData(token ids.ShortID) (RewardData, error) {
	data := newRewardData()
	_, err := g.store.Record(keyRewardData.Addr(token), &data)
	return data, err
}

func (g *Gauge) RewardIntegralFor(token, user ids.ShortID) (*uint256.Int, error) {
	return g.store.U256(keyRewardIntegralFor.Addr(token).Addr(user))
}

func (g *Gauge) ClaimData(user, token ids.ShortID) (ClaimData, error) {
	data := newClaimData()
	_, err := g.store.Record(keyClaimData.Addr(user).Addr(token), &data)
	return data, err
}

func (g *Gauge) RewardsReceiver(user ids.ShortID) (ids.ShortID, error) {
	return g.store.Addr(keyRewardsReceiver.Addr(user))
}
