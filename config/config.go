package config

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the vaultd service configuration.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	ModuleAddress string `toml:"ModuleAddress"`

	Vault      VaultConfig      `toml:"vault"`
	Governance GovernanceConfig `toml:"governance"`
	Genesis    GenesisConfig    `toml:"genesis"`
	Auth       AuthConfig       `toml:"auth"`
	RateLimit  RateLimitConfig  `toml:"ratelimit"`
	Log        LogConfig        `toml:"log"`
	Telemetry  TelemetryConfig  `toml:"telemetry"`
}

// VaultConfig carries the liquidity policy knobs.
type VaultConfig struct {
	BufferBps             uint64 `toml:"BufferBps"`
	DailyRedemptionCapBps uint64 `toml:"DailyRedemptionCapBps"`
}

// GovernanceConfig carries the governed-approval policy.
type GovernanceConfig struct {
	ApprovalThreshold uint64 `toml:"ApprovalThreshold"`
	DelaySeconds      int64  `toml:"DelaySeconds"`
}

// GenesisConfig seeds roles and balances on first start.
type GenesisConfig struct {
	Owner     string           `toml:"Owner"`
	Admins    []string         `toml:"Admins"`
	Governors []string         `toml:"Governors"`
	Balances  []GenesisBalance `toml:"Balances"`
}

// GenesisBalance seeds one account. Amounts are decimal strings in the
// smallest unit of each asset.
type GenesisBalance struct {
	Address string `toml:"Address"`
	Settle  string `toml:"Settle"`
	Reward  string `toml:"Reward"`
}

// AuthConfig gates the admin RPC surface.
type AuthConfig struct {
	AdminJWTSecret string `toml:"AdminJWTSecret"`
	TokenTTLSecs   int64  `toml:"TokenTTLSecs"`
}

// RateLimitConfig bounds request throughput per server.
type RateLimitConfig struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond"`
	Burst             int     `toml:"Burst"`
}

// LogConfig controls structured log output and rotation.
type LogConfig struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// TelemetryConfig controls trace export.
type TelemetryConfig struct {
	Enabled      bool   `toml:"Enabled"`
	OTLPEndpoint string `toml:"OTLPEndpoint"`
	ServiceName  string `toml:"ServiceName"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		ListenAddress: ":8545",
		DataDir:       "./vaultd-data",
		ModuleAddress: "00000000000000000000000000000000000000ff",
		Vault: VaultConfig{
			BufferBps:             1_500,
			DailyRedemptionCapBps: 500,
		},
		Governance: GovernanceConfig{
			ApprovalThreshold: 2,
			DelaySeconds:      2 * 86_400,
		},
		Auth: AuthConfig{
			TokenTTLSecs: 3_600,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  64,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "vaultd",
		},
	}
}

// Load reads the configuration from path, creating a default file when
// none exists.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := persist(path, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot safely run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("config: ListenAddress must not be empty")
	}
	if _, err := ParseAddress(c.ModuleAddress); err != nil {
		return fmt.Errorf("config: ModuleAddress: %w", err)
	}
	if c.Vault.BufferBps > 10_000 {
		return fmt.Errorf("config: vault.BufferBps %d exceeds 10000", c.Vault.BufferBps)
	}
	if c.Vault.DailyRedemptionCapBps > 10_000 {
		return fmt.Errorf("config: vault.DailyRedemptionCapBps %d exceeds 10000", c.Vault.DailyRedemptionCapBps)
	}
	if c.Governance.ApprovalThreshold == 0 {
		return fmt.Errorf("config: governance.ApprovalThreshold must be at least 1")
	}
	if c.Governance.DelaySeconds <= 0 {
		return fmt.Errorf("config: governance.DelaySeconds must be positive")
	}
	if c.Genesis.Owner != "" {
		if _, err := ParseAddress(c.Genesis.Owner); err != nil {
			return fmt.Errorf("config: genesis.Owner: %w", err)
		}
	}
	for _, raw := range append(append([]string{}, c.Genesis.Admins...), c.Genesis.Governors...) {
		if _, err := ParseAddress(raw); err != nil {
			return fmt.Errorf("config: genesis role address %q: %w", raw, err)
		}
	}
	for _, bal := range c.Genesis.Balances {
		if _, err := ParseAddress(bal.Address); err != nil {
			return fmt.Errorf("config: genesis balance address %q: %w", bal.Address, err)
		}
		for _, amount := range []string{bal.Settle, bal.Reward} {
			if amount == "" {
				continue
			}
			if _, err := ParseAmount(amount); err != nil {
				return fmt.Errorf("config: genesis balance for %q: %w", bal.Address, err)
			}
		}
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("config: rate limit values must not be negative")
	}
	return nil
}

// ParseAddress decodes a 20-byte hex address, with or without 0x prefix.
func ParseAddress(raw string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid hex address %q", raw)
	}
	if len(decoded) != 20 {
		return addr, fmt.Errorf("address %q is %d bytes, want 20", raw, len(decoded))
	}
	copy(addr[:], decoded)
	return addr, nil
}

// ParseAmount decodes a non-negative decimal amount string.
func ParseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}

func persist(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
