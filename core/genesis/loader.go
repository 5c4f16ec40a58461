package genesis

import (
	"fmt"
	"math/big"

	"pollchain/core/events"
)

type ledgerState interface {
	SetNativeBalance(addr [20]byte, amount *big.Int) error
	MintAsset(id uint32, to [20]byte, amount *big.Int) error
}

// Apply writes the genesis ledger into state in a deterministic order and
// reports every credit through the emitter.
func Apply(spec *GenesisSpec, state ledgerState, emitter events.Emitter) error {
	if spec == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	if state == nil {
		return fmt.Errorf("state must not be nil")
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	native, err := spec.NativeAllocations()
	if err != nil {
		return fmt.Errorf("alloc: %w", err)
	}
	for _, alloc := range native {
		if err := state.SetNativeBalance(alloc.Account, alloc.Amount); err != nil {
			return fmt.Errorf("alloc native balance: %w", err)
		}
		emitter.Emit(events.Transfer{Currency: "native", To: alloc.Account, Amount: alloc.Amount})
	}
	for _, asset := range spec.Assets {
		holders, err := asset.AssetAllocations()
		if err != nil {
			return fmt.Errorf("assets[%d]: %w", asset.ID, err)
		}
		for _, holder := range holders {
			if err := state.MintAsset(asset.ID, holder.Account, holder.Amount); err != nil {
				return fmt.Errorf("mint asset %d: %w", asset.ID, err)
			}
			emitter.Emit(events.AssetIssued{AssetID: asset.ID, To: holder.Account, Amount: holder.Amount})
		}
	}
	return nil
}
