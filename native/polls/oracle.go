package polls

import (
	"fmt"
	"math/big"
)

// BalanceOracle resolves voter weight and asset existence. Implementations
// must not mutate the ledger.
type BalanceOracle interface {
	BalanceOf(account [20]byte, currency Currency) (*big.Int, error)
	AssetExists(id AssetID) (bool, error)
}

type ledgerState interface {
	NativeBalance(addr [20]byte) (*big.Int, error)
	AssetBalance(id uint32, addr [20]byte) (*big.Int, error)
	AssetTotalIssuance(id uint32) (*big.Int, error)
}

// LedgerOracle reads spot balances straight from the node ledger.
type LedgerOracle struct {
	ledger ledgerState
}

// NewLedgerOracle wraps the ledger for read-only balance lookups.
func NewLedgerOracle(ledger ledgerState) *LedgerOracle {
	return &LedgerOracle{ledger: ledger}
}

// BalanceOf returns the free native balance or the asset balance of account.
func (o *LedgerOracle) BalanceOf(account [20]byte, currency Currency) (*big.Int, error) {
	if o == nil || o.ledger == nil {
		return nil, fmt.Errorf("polls: balance oracle not configured")
	}
	switch cur := currency.(type) {
	case Native:
		return o.ledger.NativeBalance(account)
	case Asset:
		return o.ledger.AssetBalance(uint32(cur.ID), account)
	default:
		return nil, ErrInvalidPollCurrency
	}
}

// AssetExists treats a non-zero total issuance as proof of existence.
func (o *LedgerOracle) AssetExists(id AssetID) (bool, error) {
	if o == nil || o.ledger == nil {
		return false, fmt.Errorf("polls: balance oracle not configured")
	}
	issuance, err := o.ledger.AssetTotalIssuance(uint32(id))
	if err != nil {
		return false, err
	}
	return issuance != nil && issuance.Sign() > 0, nil
}
