package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8545", cfg.ListenAddress)
	require.Equal(t, uint64(1_500), cfg.Vault.BufferBps)
	require.Equal(t, uint64(2), cfg.Governance.ApprovalThreshold)
	require.Equal(t, int64(2*86_400), cfg.Governance.DelaySeconds)

	_, err = os.Stat(path)
	require.NoError(t, err)

	// The written file round-trips.
	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.ListenAddress, again.ListenAddress)
	require.Equal(t, cfg.Vault, again.Vault)
}

func TestLoadAppliesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
ListenAddress = ":9000"
ModuleAddress = "0x00000000000000000000000000000000000000ff"

[vault]
BufferBps = 2000
DailyRedemptionCapBps = 300

[genesis]
Owner = "0x0000000000000000000000000000000000000001"

[[genesis.Balances]]
Address = "0x0000000000000000000000000000000000000002"
Settle = "1000000"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.ListenAddress)
	require.Equal(t, uint64(2_000), cfg.Vault.BufferBps)
	require.Equal(t, uint64(300), cfg.Vault.DailyRedemptionCapBps)
	require.Len(t, cfg.Genesis.Balances, 1)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen address", func(c *Config) { c.ListenAddress = " " }},
		{"bad module address", func(c *Config) { c.ModuleAddress = "zz" }},
		{"buffer over 10000", func(c *Config) { c.Vault.BufferBps = 10_001 }},
		{"cap over 10000", func(c *Config) { c.Vault.DailyRedemptionCapBps = 10_001 }},
		{"zero threshold", func(c *Config) { c.Governance.ApprovalThreshold = 0 }},
		{"zero delay", func(c *Config) { c.Governance.DelaySeconds = 0 }},
		{"bad genesis owner", func(c *Config) { c.Genesis.Owner = "0x01" }},
		{"bad genesis balance", func(c *Config) {
			c.Genesis.Balances = []GenesisBalance{{Address: "0x00", Settle: "1"}}
		}},
		{"negative burst", func(c *Config) { c.RateLimit.Burst = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestParseAddress(t *testing.T) {
	want := [20]byte{}
	want[19] = 0x01

	got, err := ParseAddress("0x0000000000000000000000000000000000000001")
	require.NoError(t, err)
	require.Equal(t, want, got)

	got, err = ParseAddress("0000000000000000000000000000000000000001")
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = ParseAddress("0x01")
	require.Error(t, err)
	_, err = ParseAddress("not hex")
	require.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	amount, err := ParseAmount(" 1000000 ")
	require.NoError(t, err)
	require.Equal(t, int64(1_000_000), amount.Int64())

	_, err = ParseAmount("-5")
	require.Error(t, err)
	_, err = ParseAmount("1.5")
	require.Error(t, err)
	_, err = ParseAmount("")
	require.Error(t, err)
}
