/*
 * Copyright (c) DNS TAPIR
 */

// Package config loads and validates the rpzindex daemon/CLI
// configuration, following dnstapir-pop/config.go's
// ValidateConfig/ValidateBySection pattern: unmarshal through viper,
// then validate section by section with go-playground/validator so a
// missing required key names the offending section instead of a single
// opaque message for the whole file.
package config

import (
	"fmt"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the root configuration document, normally loaded from YAML.
type Config struct {
	Log struct {
		File    string `validate:"required"`
		Verbose *bool  `validate:"required"`
		Debug   *bool  `validate:"required"`
	}
	Server    ServerConf
	Api       ApiConf
	Zones     map[string]ZoneConf
	Wellknown WellknownConf
}

// ServerConf is the DNS NOTIFY listener cmd/rpzindex serve runs,
// grounded on dnstapir-pop/config.go's DnsengineConf.
type ServerConf struct {
	Active    *bool    `validate:"required"`
	Addresses []string `validate:"required"`
}

// ApiConf is the HTTP query API cmd/rpzindex serve runs, grounded on
// dnstapir-pop/config.go's ApiserverConf.
type ApiConf struct {
	Active    *bool    `validate:"required"`
	Addresses []string `validate:"required"`
}

// ZoneConf describes one policy zone to register with the index at
// startup, per rpz §3.
type ZoneConf struct {
	// Ordinal has no "required" validation tag: 0 is zone 0, the
	// highest-priority zone, and a legitimate configured value — the
	// validator's "required" treats a zero int as absent, which would
	// wrongly reject it.
	Ordinal       int
	Origin        string `validate:"required"`
	Policy        string `validate:"required"`
	RecursiveOnly bool
	File          string // path to a YAML trigger-list file (see cmd/rpzindex's triggerFile), fed to rpz.LoadSession at startup
}

// WellknownConf configures the DAWG-backed allowlist guard consulted by
// the loader, per SPEC_FULL.md §11.
type WellknownConf struct {
	DawgFile string
}

// Load reads cfgfile through v (which must already have its config file
// path set, e.g. via v.SetConfigFile), unmarshals it, and validates it
// section by section.
func Load(v *viper.Viper, cfgfile string) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading %q: %w", cfgfile, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %q: %w", cfgfile, err)
	}

	if err := validateBySection(&cfg, cfgfile); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ZoneByName returns the configured zone keyed by name, per the Zones map.
func (cfg *Config) ZoneByName(name string) (ZoneConf, bool) {
	z, ok := cfg.Zones[name]
	return z, ok
}

func validateBySection(cfg *Config, cfgfile string) error {
	validate := validator.New()

	sections := map[string]interface{}{
		"log":       cfg.Log,
		"server":    cfg.Server,
		"api":       cfg.Api,
		"wellknown": cfg.Wellknown,
	}
	for name, z := range cfg.Zones {
		sections["zones."+name] = z
	}

	for name, data := range sections {
		if err := validate.Struct(data); err != nil {
			log.Printf("config: %q section %q failed validation: %v", cfgfile, name, data)
			return fmt.Errorf("config %q: section %q: missing required attributes: %w", cfgfile, name, err)
		}
	}
	return nil
}
