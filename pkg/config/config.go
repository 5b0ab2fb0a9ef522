// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads ipmctl settings from a YAML file.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/ipmctl/pkg/ipm"
)

// Defaults
const (
	DefaultPort = "/dev/ttyS0"
	DefaultBaud = 57600
	DefaultHost = "127.0.0.1"
)

// Config is the complete ipmctl configuration.
type Config struct {
	Device    DeviceConfig  `yaml:"device"`
	Polling   PollingConfig `yaml:"polling"`
	Output    OutputConfig  `yaml:"output"`
	Addresses []string      `yaml:"addresses"`
}

// DeviceConfig describes the serial link and the unit on it.
type DeviceConfig struct {
	Port            string `yaml:"port"`
	Baud            int    `yaml:"baud"`
	FirmwareVersion string `yaml:"firmware_version"`
	Emulate         bool   `yaml:"emulate"`
}

// PollingConfig sets the query cadence.
type PollingConfig struct {
	// Rate is the MEASURE/STATUS rate in Hz.
	Rate int `yaml:"rate"`
	// Period is the RECORD period in minutes.
	Period int `yaml:"period"`
	// NumAddresses, when set, must equal len(Addresses).
	NumAddresses int `yaml:"num_addresses"`
}

// OutputConfig sets where and how lines are sent.
type OutputConfig struct {
	Host string `yaml:"host"`
	Hex  bool   `yaml:"hex"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Port:            DefaultPort,
			Baud:            DefaultBaud,
			FirmwareVersion: ipm.DefaultFirmwareVersion,
		},
		Output: OutputConfig{
			Host: DefaultHost,
		},
	}
}

// Load reads path over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// Slots parses the configured addresses in order.
func (c *Config) Slots() (*ipm.SlotList, error) {
	list := &ipm.SlotList{}
	for _, a := range c.Addresses {
		slot, err := ipm.ParseAddressSlot(a)
		if err != nil {
			return nil, err
		}
		if err := list.Add(slot); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// Validate checks the settings needed for polling.
func (c *Config) Validate() error {
	if c.Device.Port == "" {
		return errors.New("device port is required")
	}
	if c.Device.Baud <= 0 {
		return errors.Errorf("invalid baud rate %d", c.Device.Baud)
	}
	if c.Polling.Rate <= 0 {
		return errors.Errorf("measure rate must be positive, got %d", c.Polling.Rate)
	}
	if c.Polling.Period <= 0 {
		return errors.Errorf("record period must be positive, got %d", c.Polling.Period)
	}
	if len(c.Addresses) == 0 {
		return errors.New("at least one address is required")
	}
	if len(c.Addresses) > ipm.MaxAddresses {
		return errors.Errorf("at most %d addresses may be configured, got %d", ipm.MaxAddresses, len(c.Addresses))
	}
	if c.Polling.NumAddresses != 0 && c.Polling.NumAddresses != len(c.Addresses) {
		return errors.Errorf("num_addresses is %d but %d addresses are listed", c.Polling.NumAddresses, len(c.Addresses))
	}
	if _, err := c.Slots(); err != nil {
		return err
	}
	return nil
}
