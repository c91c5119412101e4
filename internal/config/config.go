// Package config loads per-daemon YAML configuration, following the same
// default-then-overlay pattern for each of the three daemons (login, ship,
// shipgate).
package config

import (
	"fmt"
	"os"
	"strings"
)

// DatabaseConfig holds PostgreSQL connection parameters shared by every
// daemon that touches the store.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`

	MaxConns int32 `yaml:"max_conns"`
	MinConns int32 `yaml:"min_conns"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	base := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)

	var params []string
	if d.MaxConns > 0 {
		params = append(params, fmt.Sprintf("pool_max_conns=%d", d.MaxConns))
	}
	if d.MinConns > 0 {
		params = append(params, fmt.Sprintf("pool_min_conns=%d", d.MinConns))
	}
	if len(params) > 0 {
		return base + "&" + strings.Join(params, "&")
	}
	return base
}

func defaultDatabase() DatabaseConfig {
	return DatabaseConfig{
		Host:    "127.0.0.1",
		Port:    5432,
		User:    "shipfabric",
		Password: "shipfabric",
		DBName:  "shipfabric",
		SSLMode: "disable",
	}
}

// Login holds configuration for the login server daemon.
type Login struct {
	BindAddress string         `yaml:"bind_address"`
	WebInfoPort int            `yaml:"web_info_port"`
	Database    DatabaseConfig `yaml:"database"`
	LogLevel    string         `yaml:"log_level"`

	AutoCreateAccounts bool `yaml:"auto_create_accounts"`

	FloodProtection     bool `yaml:"flood_protection"`
	MaxConnectionPerIP  int  `yaml:"max_connection_per_ip"`

	// LocalAddress/LocalMask/Override feed the address-selection rule of
	// spec.md §4.5, shared by the login server's redirect and the
	// shipgate's own ship-list queries.
	LocalAddress string `yaml:"local_address"`
	LocalMask    string `yaml:"local_mask"`
	Override     string `yaml:"override"`

	// PacketLogDir holds per-connection packet log files when the
	// daemon is started with --verbose. Not loaded from YAML: it keeps
	// DefaultLogin's value. Verbose is set by cmd/loginserver/main.go
	// after CLI flags are parsed.
	PacketLogDir string `yaml:"-"`
	Verbose      bool   `yaml:"-"`
}

// DefaultLogin returns Login config with sensible defaults.
func DefaultLogin() Login {
	return Login{
		BindAddress:         "0.0.0.0",
		WebInfoPort:         10003,
		Database:            defaultDatabase(),
		LogLevel:            "info",
		AutoCreateAccounts:  false,
		FloodProtection:     true,
		MaxConnectionPerIP:  5,
		LocalAddress:        "127.0.0.1",
		LocalMask:           "255.255.255.0",
		Override:            "",
		PacketLogDir:        "logs/login-packets",
	}
}

// Ship holds configuration for one ship server daemon.
type Ship struct {
	Name          string `yaml:"name"`
	Variant       string `yaml:"variant"`
	KeyIndex      int    `yaml:"key_index"`
	ExternalIP    string `yaml:"external_ip"`
	InternalIP    string `yaml:"internal_ip"`
	PortBase      int    `yaml:"port_base"`
	MenuCode      string `yaml:"menu_code"`
	NumBlocks     int    `yaml:"num_blocks"`
	GMOnly        bool   `yaml:"gm_only"`
	ProtocolVersion uint32 `yaml:"protocol_version"`

	ShipgateHost string `yaml:"shipgate_host"`
	ShipgatePort int    `yaml:"shipgate_port"`

	// ShipgateKeyPath points at the 128-byte shared key file this ship
	// and the shipgate both hold for the ship's KeyIndex, used to seed
	// the RC4 session keys of spec.md §4.5's handshake. Provisioning
	// that file is out of this fabric's scope; it is expected to be
	// written by whatever admin tooling registers a new ship row.
	ShipgateKeyPath string `yaml:"shipgate_key_path"`

	Database DatabaseConfig `yaml:"database"`
	LogLevel string         `yaml:"log_level"`

	// PacketLogDir and Verbose mirror Login's: not loaded from YAML;
	// PacketLogDir keeps DefaultShip's value and Verbose is set from CLI flags.
	PacketLogDir string `yaml:"-"`
	Verbose      bool   `yaml:"-"`
}

// DefaultShip returns Ship config with sensible defaults.
func DefaultShip() Ship {
	return Ship{
		Name:            "Alpha",
		Variant:         "GC-US",
		KeyIndex:        0,
		ExternalIP:      "127.0.0.1",
		InternalIP:      "127.0.0.1",
		PortBase:        5900,
		MenuCode:        "",
		NumBlocks:       2,
		ProtocolVersion: 1,
		ShipgateHost:    "127.0.0.1",
		ShipgatePort:    15000,
		ShipgateKeyPath: "config/shipgate.key",
		Database:        defaultDatabase(),
		LogLevel:        "info",
		PacketLogDir:    "logs/ship-packets",
	}
}

// Shipgate holds configuration for the shipgate hub daemon.
type Shipgate struct {
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	// LocalAddress/LocalMask and Override implement the address-selection
	// rule of spec.md §4.5.
	LocalAddress string `yaml:"local_address"`
	LocalMask    string `yaml:"local_mask"`
	Override     string `yaml:"override"`

	MinProtocolVersion uint32 `yaml:"min_protocol_version"`
	MaxProtocolVersion uint32 `yaml:"max_protocol_version"`

	Database DatabaseConfig `yaml:"database"`
	LogLevel string         `yaml:"log_level"`
}

// DefaultShipgate returns Shipgate config with sensible defaults.
func DefaultShipgate() Shipgate {
	return Shipgate{
		BindAddress:        "0.0.0.0",
		Port:               15000,
		LocalAddress:       "127.0.0.1",
		LocalMask:          "255.255.255.0",
		Override:           "",
		MinProtocolVersion: 1,
		MaxProtocolVersion: 1,
		Database:           defaultDatabase(),
		LogLevel:           "info",
	}
}

// readOverlay reads path's raw bytes, returning ok=false (keep defaults)
// if the file does not exist.
func readOverlay(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading config %s: %w", path, err)
	}
	return data, true, nil
}
