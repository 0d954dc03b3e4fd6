// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package feedistributor

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
)

func (f *FeeDistributor) StartTime() (uint64, error) {
	return f.store.Uint64(keyStartTime)
}

// TimeCursor is the first week without a recorded total supply.
func (f *FeeDistributor) TimeCursor() (uint64, error) {
	return f.store.Uint64(keyTimeCursor)
}

// TimeCursorOf is the first week addr has not claimed.
func (f *FeeDistributor) TimeCursorOf(addr ids.ShortID) (uint64, error) {
	return f.store.Uint64(keyTimeCursorOf.Addr(addr))
}

func (f *FeeDistributor) UserEpochOf(addr ids.ShortID) (uint64, error) {
	return f.store.Uint64(keyUserEpochOf.Addr(addr))
}

func (f *FeeDistributor) LastTokenTime() (uint64, error) {
	return f.store.Uint64(keyLastTokenTime)
}

func (f *FeeDistributor) TokensPerWeek(week uint64) (*uint256.Int, error) {
	return f.store.U256(keyTokensPerWeek.Uint(week))
}

func (f *FeeDistributor) TokenLastBalance() (*uint256.Int, error) {
	return f.store.U256(keyTokenLastBalance)
}

// VESupply is the total voting power at the start of week.
func (f *FeeDistributor) VESupply(week uint64) (*uint256.Int, error) {
	return f.store.U256(keyVESupply.Uint(week))
}

func (f *FeeDistributor) CanCheckpointToken() (bool, error) {
	return f.store.Bool(keyCanCheckpointToken)
}

func (f *FeeDistributor) IsKilled() (bool, error) {
	return f.store.Bool(keyIsKilled)
}
