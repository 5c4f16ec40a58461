package events

import (
	"math/big"
	"strconv"
	"strings"
)

func normalizeCurrency(currency string) string {
	trimmed := strings.TrimSpace(currency)
	if trimmed == "" {
		return ""
	}
	return strings.ToLower(trimmed)
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}
