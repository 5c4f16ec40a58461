package polls

import (
	"fmt"
	"strconv"
	"strings"
)

// AssetID identifies a fungible asset on the ledger.
type AssetID uint32

// Currency selects the denomination of a poll: either the native balance or a
// single fungible asset. The set of implementations is closed.
type Currency interface {
	isCurrency()
	String() string
}

// Native selects the chain's native balance.
type Native struct{}

// Asset selects the balance of one fungible asset.
type Asset struct {
	ID AssetID
}

func (Native) isCurrency() {}
func (Asset) isCurrency()  {}

func (Native) String() string  { return "native" }
func (a Asset) String() string { return fmt.Sprintf("asset:%d", a.ID) }

const (
	currencyKindNative uint8 = iota
	currencyKindAsset
)

// ParseCurrency decodes the textual form produced by Currency.String.
func ParseCurrency(raw string) (Currency, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "native" {
		return Native{}, nil
	}
	if rest, ok := strings.CutPrefix(trimmed, "asset:"); ok {
		id, err := strconv.ParseUint(rest, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: asset id %q", ErrInvalidPollCurrency, rest)
		}
		return Asset{ID: AssetID(id)}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidPollCurrency, raw)
}

func encodeCurrency(c Currency) (uint8, uint32, error) {
	switch cur := c.(type) {
	case Native:
		return currencyKindNative, 0, nil
	case Asset:
		return currencyKindAsset, uint32(cur.ID), nil
	default:
		return 0, 0, ErrInvalidPollCurrency
	}
}

func decodeCurrency(kind uint8, id uint32) (Currency, error) {
	switch kind {
	case currencyKindNative:
		return Native{}, nil
	case currencyKindAsset:
		return Asset{ID: AssetID(id)}, nil
	default:
		return nil, fmt.Errorf("%w: kind %d", ErrInvalidPollCurrency, kind)
	}
}

// Key addresses a poll within its currency partition.
type Key struct {
	Currency Currency
	ID       PollID
}

func (k Key) String() string {
	if k.Currency == nil {
		return fmt.Sprintf("?/%d", k.ID)
	}
	return fmt.Sprintf("%s/%d", k.Currency, k.ID)
}
