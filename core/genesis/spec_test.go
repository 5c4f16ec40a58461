package genesis

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"pollchain/core/events"
	"pollchain/core/state"
	"pollchain/crypto"
	"pollchain/storage"
)

func TestLoadGenesisSpecAndApply(t *testing.T) {
	addr1 := crypto.MustNewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{0x01}, 20))
	addr2 := crypto.MustNewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{0x02}, 20))

	doc := fmt.Sprintf(`networkName: unit-local
alloc:
  %s: "1000"
  %s: "20"
assets:
  - id: 7
    name: governance
    holders:
      %s: "300"
`, addr1, addr2, addr2)
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	spec, err := LoadGenesisSpec(path)
	require.NoError(t, err)
	require.Equal(t, "unit-local", spec.NetworkName)

	mgr := state.NewManager(storage.NewMemDB())
	buf := &events.Buffer{}
	require.NoError(t, Apply(spec, mgr, buf))
	require.Equal(t, 3, buf.Len())

	balance, err := mgr.NativeBalance(addr1.Raw())
	require.NoError(t, err)
	require.Equal(t, int64(1000), balance.Int64())

	issuance, err := mgr.AssetTotalIssuance(7)
	require.NoError(t, err)
	require.Equal(t, int64(300), issuance.Int64())
	held, err := mgr.AssetBalance(7, addr2.Raw())
	require.NoError(t, err)
	require.Equal(t, int64(300), held.Int64())
}

func TestParseGenesisSpecRejectsInvalidInput(t *testing.T) {
	addr := crypto.MustNewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{0x03}, 20))
	cases := map[string]string{
		"unknown field":  "bogus: true\n",
		"bad address":    "alloc:\n  nope: \"1\"\n",
		"zero amount":    fmt.Sprintf("alloc:\n  %s: \"0\"\n", addr),
		"no holders":     "assets:\n  - id: 1\n",
		"duplicate id":   fmt.Sprintf("assets:\n  - id: 1\n    holders: {%s: \"1\"}\n  - id: 1\n    holders: {%s: \"1\"}\n", addr, addr),
		"non-number amt": fmt.Sprintf("alloc:\n  %s: \"ten\"\n", addr),
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseGenesisSpec([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestParseBech32AccountRejectsForeignPrefix(t *testing.T) {
	foreign := crypto.MustNewAddress(crypto.AddressPrefix("poll"), bytes.Repeat([]byte{0x04}, 20))
	_, err := ParseBech32Account(foreign.String())
	require.Error(t, err)
}
