package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config carries the daemon settings. Principal addresses are 20-byte hex
// strings; the admin doubles as the initial holder of the minter role unless
// a dedicated minter is configured.
type Config struct {
	RPCAddress     string `toml:"RPCAddress"`
	DataDir        string `toml:"DataDir"`
	StorageBackend string `toml:"StorageBackend"`
	Environment    string `toml:"Environment"`
	AdminAddress   string `toml:"AdminAddress"`
	MinterAddress  string `toml:"MinterAddress"`
	InterestRate   uint64 `toml:"InterestRate"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./deedchain-data"
	}
	if strings.TrimSpace(cfg.StorageBackend) == "" {
		cfg.StorageBackend = "bolt"
	}
	if strings.TrimSpace(cfg.MinterAddress) == "" {
		cfg.MinterAddress = cfg.AdminAddress
	}
	if cfg.InterestRate == 0 {
		cfg.InterestRate = 10
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the daemon cannot start with.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case "memory", "leveldb", "bolt":
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.StorageBackend)
	}
	if c.InterestRate > 100 {
		return fmt.Errorf("config: interest rate %d out of range (0, 100]", c.InterestRate)
	}
	if _, err := c.Admin(); err != nil {
		return err
	}
	if _, err := c.Minter(); err != nil {
		return err
	}
	return nil
}

// Admin returns the configured admin principal.
func (c *Config) Admin() ([20]byte, error) {
	return parseAddress("AdminAddress", c.AdminAddress)
}

// Minter returns the configured minter principal.
func (c *Config) Minter() ([20]byte, error) {
	return parseAddress("MinterAddress", c.MinterAddress)
}

func parseAddress(field, value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if trimmed == "" {
		return addr, fmt.Errorf("config: %s is required", field)
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil || len(raw) != len(addr) {
		return addr, fmt.Errorf("config: %s must be a 20-byte hex address", field)
	}
	copy(addr[:], raw)
	return addr, nil
}

// createDefault creates and saves a default configuration file. The admin
// address is intentionally left empty so a fresh deployment fails loudly
// until an operator fills it in.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:     ":8080",
		DataDir:        "./deedchain-data",
		StorageBackend: "bolt",
		Environment:    "local",
		InterestRate:   10,
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
