package main

import (
	"fmt"
	"io"
	"math/big"
	"strings"
)

func normalizeAmount(value string) (string, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(value), "_", "")
	if trimmed == "" {
		return "", fmt.Errorf("amount is required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return "", fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() <= 0 {
		return "", fmt.Errorf("amount must be positive")
	}
	return amount.String(), nil
}

func runBalance(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("balance", stderr)
	var address, currency string
	fs.StringVar(&address, "address", "", "account bech32 address")
	fs.StringVar(&currency, "currency", "native", "currency (native or asset:<id>)")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if !requireFlag(stderr, "address", address) {
		return 1
	}
	return invoke("ledger_balance", map[string]interface{}{"address": address, "currency": currency}, false, stdout, stderr)
}

func runTransfer(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("transfer", stderr)
	var from, to, currency, amount string
	fs.StringVar(&from, "from", "", "sender bech32 address")
	fs.StringVar(&to, "to", "", "recipient bech32 address")
	fs.StringVar(&currency, "currency", "native", "currency (native or asset:<id>)")
	fs.StringVar(&amount, "amount", "", "amount to move")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if !requireFlag(stderr, "from", from) || !requireFlag(stderr, "to", to) {
		return 1
	}
	normalized, err := normalizeAmount(amount)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	params := map[string]interface{}{
		"from":     from,
		"to":       to,
		"currency": currency,
		"amount":   normalized,
	}
	return invoke("ledger_transfer", params, true, stdout, stderr)
}

func runHeight(stdout, stderr io.Writer) int {
	return invoke("chain_height", nil, false, stdout, stderr)
}
