package genesis

import (
	"bytes"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// GenesisSpec describes the initial ledger of a poll chain.
type GenesisSpec struct {
	NetworkName string            `yaml:"networkName"`
	Alloc       map[string]string `yaml:"alloc"` // addr -> native amount
	Assets      []AssetSpec       `yaml:"assets"`
}

// AssetSpec issues a fungible asset to its initial holders.
type AssetSpec struct {
	ID      uint32            `yaml:"id"`
	Name    string            `yaml:"name"`
	Holders map[string]string `yaml:"holders"` // addr -> amount
}

// Allocation is a validated balance assignment.
type Allocation struct {
	Account [20]byte
	Amount  *big.Int
}

func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	return ParseGenesisSpec(raw)
}

// ParseGenesisSpec decodes and validates a YAML genesis document.
func ParseGenesisSpec(raw []byte) (*GenesisSpec, error) {
	var spec GenesisSpec
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode genesis spec: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Validate checks addresses, amounts and asset ids.
func (s *GenesisSpec) Validate() error {
	if s == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	if _, err := parseAllocations(s.Alloc); err != nil {
		return fmt.Errorf("alloc: %w", err)
	}
	seen := make(map[uint32]struct{}, len(s.Assets))
	for _, asset := range s.Assets {
		if _, dup := seen[asset.ID]; dup {
			return fmt.Errorf("assets: duplicate asset id %d", asset.ID)
		}
		seen[asset.ID] = struct{}{}
		holders, err := parseAllocations(asset.Holders)
		if err != nil {
			return fmt.Errorf("assets[%d]: %w", asset.ID, err)
		}
		if len(holders) == 0 {
			return fmt.Errorf("assets[%d]: at least one holder required", asset.ID)
		}
	}
	return nil
}

// NativeAllocations returns the native balances sorted by account.
func (s *GenesisSpec) NativeAllocations() ([]Allocation, error) {
	return parseAllocations(s.Alloc)
}

// AssetAllocations returns the holders of the asset sorted by account.
func (a AssetSpec) AssetAllocations() ([]Allocation, error) {
	return parseAllocations(a.Holders)
}

func parseAllocations(raw map[string]string) ([]Allocation, error) {
	out := make([]Allocation, 0, len(raw))
	for addr, amountStr := range raw {
		account, err := ParseBech32Account(strings.TrimSpace(addr))
		if err != nil {
			return nil, err
		}
		amount, err := parseAmountString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", addr, err)
		}
		out = append(out, Allocation{Account: account, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Account[:], out[j].Account[:]) < 0
	})
	return out, nil
}

func parseAmountString(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount must not be empty")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}
