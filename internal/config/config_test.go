/*
 * Copyright (c) DNS TAPIR
 */

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

const validYAML = `
log:
  file: /var/log/rpzindex.log
  verbose: false
  debug: false
server:
  active: true
  addresses: ["127.0.0.1:5353"]
api:
  active: true
  addresses: ["127.0.0.1:8080"]
zones:
  blocklist:
    ordinal: 0
    origin: rpz.example.
    policy: nxdomain
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "rpzindex.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return path
}

func TestLoadValid(t *testing.T) {
	path := writeConfig(t, validYAML)
	v := viper.New()
	v.SetConfigFile(path)

	cfg, err := Load(v, path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.File != "/var/log/rpzindex.log" {
		t.Errorf("Log.File = %q", cfg.Log.File)
	}
	zone, ok := cfg.ZoneByName("blocklist")
	if !ok {
		t.Fatalf("zone %q not found", "blocklist")
	}
	if zone.Ordinal != 0 || zone.Origin != "rpz.example." {
		t.Errorf("zone = %+v", zone)
	}
}

func TestLoadMissingRequiredField(t *testing.T) {
	const missingLogFile = `
log:
  verbose: false
  debug: false
server:
  active: true
  addresses: ["127.0.0.1:5353"]
api:
  active: true
  addresses: ["127.0.0.1:8080"]
`
	path := writeConfig(t, missingLogFile)
	v := viper.New()
	v.SetConfigFile(path)

	if _, err := Load(v, path); err == nil {
		t.Fatalf("Load accepted a config missing log.file")
	}
}

func TestLoadMissingFile(t *testing.T) {
	v := viper.New()
	v.SetConfigFile("/nonexistent/rpzindex.yaml")
	if _, err := Load(v, "/nonexistent/rpzindex.yaml"); err == nil {
		t.Fatalf("Load accepted a missing config file")
	}
}
