package state

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrInsufficientBalance is returned when a debit exceeds the available balance.
var ErrInsufficientBalance = errors.New("ledger: insufficient balance")

const ledgerPrefix = "ledger"

func nativeBalanceKey(addr [20]byte) []byte {
	return []byte(fmt.Sprintf("%s/native/%x", ledgerPrefix, addr))
}

func assetIssuanceKey(id uint32) []byte {
	return []byte(fmt.Sprintf("%s/asset/%d/issuance", ledgerPrefix, id))
}

func assetBalanceKey(id uint32, addr [20]byte) []byte {
	return []byte(fmt.Sprintf("%s/asset/%d/%x", ledgerPrefix, id, addr))
}

func (m *Manager) loadAmount(key []byte) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.KVGet(key, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (m *Manager) storeAmount(key []byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("ledger: negative balance not allowed")
	}
	return m.KVPut(key, amount)
}

// NativeBalance returns the free native balance of the account.
func (m *Manager) NativeBalance(addr [20]byte) (*big.Int, error) {
	return m.loadAmount(nativeBalanceKey(addr))
}

// SetNativeBalance overwrites the native balance of the account.
func (m *Manager) SetNativeBalance(addr [20]byte, amount *big.Int) error {
	return m.storeAmount(nativeBalanceKey(addr), amount)
}

// AssetTotalIssuance returns the outstanding supply of the asset. A zero
// issuance means the asset does not exist.
func (m *Manager) AssetTotalIssuance(id uint32) (*big.Int, error) {
	return m.loadAmount(assetIssuanceKey(id))
}

// AssetBalance returns the account's balance of the asset.
func (m *Manager) AssetBalance(id uint32, addr [20]byte) (*big.Int, error) {
	return m.loadAmount(assetBalanceKey(id, addr))
}

// MintAsset credits amount of the asset to the account and grows issuance.
func (m *Manager) MintAsset(id uint32, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("ledger: mint amount must be positive")
	}
	issuance, err := m.AssetTotalIssuance(id)
	if err != nil {
		return err
	}
	balance, err := m.AssetBalance(id, to)
	if err != nil {
		return err
	}
	if err := m.storeAmount(assetIssuanceKey(id), new(big.Int).Add(issuance, amount)); err != nil {
		return err
	}
	return m.storeAmount(assetBalanceKey(id, to), new(big.Int).Add(balance, amount))
}

// TransferNative moves native balance between accounts.
func (m *Manager) TransferNative(from, to [20]byte, amount *big.Int) error {
	return m.transfer(nativeBalanceKey(from), nativeBalanceKey(to), amount)
}

// TransferAsset moves asset balance between accounts.
func (m *Manager) TransferAsset(id uint32, from, to [20]byte, amount *big.Int) error {
	return m.transfer(assetBalanceKey(id, from), assetBalanceKey(id, to), amount)
}

func (m *Manager) transfer(fromKey, toKey []byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("ledger: transfer amount must be positive")
	}
	fromBalance, err := m.loadAmount(fromKey)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if err := m.storeAmount(fromKey, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	toBalance, err := m.loadAmount(toKey)
	if err != nil {
		return err
	}
	return m.storeAmount(toKey, new(big.Int).Add(toBalance, amount))
}
