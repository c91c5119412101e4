package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// LoadLogin loads login-server config from a YAML file, falling back to
// defaults when the file does not exist.
func LoadLogin(path string) (Login, error) {
	cfg := DefaultLogin()
	data, ok, err := readOverlay(path)
	if err != nil || !ok {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadShip loads ship-server config from a YAML file, falling back to
// defaults when the file does not exist.
func LoadShip(path string) (Ship, error) {
	cfg := DefaultShip()
	data, ok, err := readOverlay(path)
	if err != nil || !ok {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadShipgate loads shipgate config from a YAML file, falling back to
// defaults when the file does not exist.
func LoadShipgate(path string) (Shipgate, error) {
	cfg := DefaultShipgate()
	data, ok, err := readOverlay(path)
	if err != nil || !ok {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
