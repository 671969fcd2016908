// Copyright 2021 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config describes the device to acquire from.
type Config struct {
	Device string `yaml:"device"` // afe4410, afe4420, sim4410 or sim4420

	I2C struct {
		Bus  int   `yaml:"bus"`
		Addr uint8 `yaml:"addr"`
	} `yaml:"i2c"`

	SPI struct {
		Device string `yaml:"device"`
		Speed  uint32 `yaml:"speed"`
	} `yaml:"spi"`

	IRQ   string `yaml:"irq"`
	Reset string `yaml:"reset"`

	// Mask is the active channel mask of an AFE4420.
	Mask uint16 `yaml:"mask"`

	// LEDs lists per-transmitter drive current codes.
	LEDs []uint32 `yaml:"leds"`
}

func loadConfig(path string) (Config, error) {
	var cfg Config

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("could not decode YAML: %w", err)
	}

	switch cfg.Device {
	case "afe4410", "afe4420", "sim4410", "sim4420":
		// ok
	case "":
		return cfg, fmt.Errorf("missing device name")
	default:
		return cfg, fmt.Errorf("unknown device %q", cfg.Device)
	}
	return cfg, nil
}
