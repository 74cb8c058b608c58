package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the daemon configuration surface. Addresses are hex-encoded
// 20-byte accounts; factors follow the 1e6 emission factor scale.
type Config struct {
	RPCAddress     string `toml:"RPCAddress"`
	GatewayAddress string `toml:"GatewayAddress"`
	DataDir        string `toml:"DataDir"`
	NetworkName    string `toml:"NetworkName"`
	Environment    string `toml:"Environment"`
	AccessLogPath  string `toml:"AccessLogPath"`

	ChallengeWindowSeconds int64             `toml:"ChallengeWindowSeconds"`
	MinParticipants        uint32            `toml:"MinParticipants"`
	EmissionFactor         int64             `toml:"EmissionFactor"`
	LocaleFactors          map[string]int64  `toml:"LocaleFactors"`
	OperatorShareBps       uint32            `toml:"OperatorShareBps"`
	ImmediateSettlement    bool              `toml:"ImmediateSettlement"`
	RewardRatePerSecond    int64             `toml:"RewardRatePerSecond"`
	ExchangeFeeBps         uint32            `toml:"ExchangeFeeBps"`
	ExchangePoolShareBps   uint32            `toml:"ExchangePoolShareBps"`

	TreasuryAddress string   `toml:"TreasuryAddress"`
	Submitters      []string `toml:"Submitters"`
	Arbiters        []string `toml:"Arbiters"`
	Admins          []string `toml:"Admins"`
}

// Load reads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	for _, undecoded := range meta.Undecoded() {
		if len(undecoded) == 1 && undecoded[0] == "SettlementDelaySeconds" {
			return nil, fmt.Errorf("config file %s uses deprecated SettlementDelaySeconds field; rename it to ChallengeWindowSeconds", path)
		}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8645"
	}
	if strings.TrimSpace(c.GatewayAddress) == "" {
		c.GatewayAddress = ":8080"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./data"
	}
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = "carbon-local"
	}
	if c.ChallengeWindowSeconds == 0 && !c.ImmediateSettlement {
		c.ChallengeWindowSeconds = 24 * 60 * 60
	}
	if c.MinParticipants == 0 {
		c.MinParticipants = 1
	}
	if c.LocaleFactors == nil {
		c.LocaleFactors = map[string]int64{}
	}
	if c.Submitters == nil {
		c.Submitters = []string{}
	}
	if c.Arbiters == nil {
		c.Arbiters = []string{}
	}
	if c.Admins == nil {
		c.Admins = []string{}
	}
}

// Validate ensures the configured values fall within acceptable bounds.
func (c *Config) Validate() error {
	if !c.ImmediateSettlement && c.ChallengeWindowSeconds <= 0 {
		return fmt.Errorf("config: ChallengeWindowSeconds must be positive in delayed mode")
	}
	if c.MinParticipants == 0 {
		return fmt.Errorf("config: MinParticipants must be positive")
	}
	if c.EmissionFactor < 0 {
		return fmt.Errorf("config: EmissionFactor cannot be negative")
	}
	if c.EmissionFactor == 0 && len(c.LocaleFactors) == 0 {
		return fmt.Errorf("config: either EmissionFactor or LocaleFactors must be configured")
	}
	for locale, factor := range c.LocaleFactors {
		if factor <= 0 {
			return fmt.Errorf("config: invalid factor for locale %q", locale)
		}
	}
	if c.OperatorShareBps > 10_000 {
		return fmt.Errorf("config: OperatorShareBps out of range")
	}
	if c.ExchangeFeeBps > 10_000 || c.ExchangePoolShareBps > 10_000 {
		return fmt.Errorf("config: exchange fee bps out of range")
	}
	if c.RewardRatePerSecond < 0 {
		return fmt.Errorf("config: RewardRatePerSecond cannot be negative")
	}
	if strings.TrimSpace(c.TreasuryAddress) == "" {
		return fmt.Errorf("config: TreasuryAddress must be configured")
	}
	return nil
}

// EmissionFactorBig returns the global emission factor as a big integer.
func (c *Config) EmissionFactorBig() *big.Int {
	return big.NewInt(c.EmissionFactor)
}

// LocaleFactorsBig converts the per-locale factor table.
func (c *Config) LocaleFactorsBig() map[string]*big.Int {
	out := make(map[string]*big.Int, len(c.LocaleFactors))
	for locale, factor := range c.LocaleFactors {
		out[locale] = big.NewInt(factor)
	}
	return out
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		EmissionFactor:  512_000_000,
		TreasuryAddress: strings.Repeat("00", 19) + "01",
	}
	cfg.applyDefaults()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
