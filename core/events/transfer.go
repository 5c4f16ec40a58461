package events

import (
	"math/big"

	"pollchain/core/types"
	"pollchain/crypto"
)

const (
	// TypeTransfer is emitted for native and asset balance movements.
	TypeTransfer = "ledger.transfer"
	// TypeAssetIssued is emitted when genesis or an operator mints asset supply.
	TypeAssetIssued = "ledger.assetIssued"
)

type Transfer struct {
	Currency string
	From     [20]byte
	To       [20]byte
	Amount   *big.Int
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	attrs := map[string]string{}
	if currency := normalizeCurrency(e.Currency); currency != "" {
		attrs["currency"] = currency
	}
	attrs["from"] = crypto.AccountAddress(e.From).String()
	attrs["to"] = crypto.AccountAddress(e.To).String()
	attrs["amount"] = formatAmount(e.Amount)
	return &types.Event{Type: TypeTransfer, Attributes: attrs}
}

type AssetIssued struct {
	AssetID uint32
	To      [20]byte
	Amount  *big.Int
}

func (AssetIssued) EventType() string { return TypeAssetIssued }

func (e AssetIssued) Event() *types.Event {
	attrs := map[string]string{
		"asset":  formatUint(uint64(e.AssetID)),
		"to":     crypto.AccountAddress(e.To).String(),
		"amount": formatAmount(e.Amount),
	}
	return &types.Event{Type: TypeAssetIssued, Attributes: attrs}
}
