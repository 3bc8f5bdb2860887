/*
 * Copyright (c) DNS TAPIR
 */

package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dnstapir/rpzindex/internal/config"
	"github.com/dnstapir/rpzindex/internal/logging"
	"github.com/dnstapir/rpzindex/internal/wellknown"
	"github.com/dnstapir/rpzindex/rpz"
)

// daemon is the long-running process state, built once by serveCmd and
// shared by the HTTP API and the DNS NOTIFY listener.
type daemon struct {
	idx *rpz.Index
	cfg *config.Config
	log *log.Logger

	mu     sync.Mutex // serializes reloads; the index itself is independently safe for concurrent queries
	guard  *wellknown.Guard
	byName map[string]int // zone name (config key) -> ordinal, for NOTIFY/reload lookups
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the trigger index as a daemon, serving HTTP queries and DNS NOTIFY reloads",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfigOrDie()
		logger := logging.New(cfg.Log.File)
		d, err := newDaemon(cfg, logger)
		if err != nil {
			logger.Fatalf("rpzindex: %v", err)
		}
		d.run()
	},
}

func newDaemon(cfg *config.Config, logger *log.Logger) (*daemon, error) {
	idx := rpz.NewIndex(logging.Sink(logger))
	d := &daemon{idx: idx, cfg: cfg, log: logger, byName: make(map[string]int)}

	if cfg.Wellknown.DawgFile != "" {
		guard, err := wellknown.New(cfg.Wellknown.DawgFile)
		if err != nil {
			return nil, fmt.Errorf("wellknown: %w", err)
		}
		d.guard = guard
	}

	for name, z := range cfg.Zones {
		d.byName[name] = z.Ordinal
		rec := idx.RegisterZone(z.Ordinal, z.Origin)
		rec.RecursiveOnly = z.RecursiveOnly
		if rpz.Str2Policy(z.Policy) == rpz.PolicyError {
			return nil, fmt.Errorf("zone %q: unrecognized policy %q", name, z.Policy)
		}
		if _, err := d.loadZoneFile(name, z); err != nil {
			return nil, fmt.Errorf("zone %q: initial load: %w", name, err)
		}
	}
	return d, nil
}

// triggerFile is the on-disk shape of a zone's trigger-list file: a
// bare YAML document naming the owner names (names or rpz-ip/rpz-nsip
// encoded addresses) to load into the zone, grounded on
// dnstapir-pop/policy.go's yaml.Unmarshal(cfgdata, &oconf) pattern.
type triggerFile struct {
	Triggers []string `yaml:"triggers"`
}

// loadZoneFile runs a full Begin/Add/Ready bracket against zone z's
// configured file, parsed as a triggerFile. This is the file-fed
// stand-in for the MQTT-driven loader dropped per DESIGN.md. It
// returns the load session's ID so callers can report it (the reload
// HTTP endpoint surfaces it as the X-Load-Id response header).
func (d *daemon) loadZoneFile(name string, z config.ZoneConf) (uuid.UUID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	session := d.idx.Begin(z.Ordinal)
	if z.File != "" {
		data, err := os.ReadFile(z.File)
		if err != nil {
			return session.ID, fmt.Errorf("reading %q: %w", z.File, err)
		}

		var tf triggerFile
		if err := yaml.Unmarshal(data, &tf); err != nil {
			return session.ID, fmt.Errorf("parsing %q: %w", z.File, err)
		}

		for _, owner := range tf.Triggers {
			if d.guard != nil {
				if shadowed, first := d.guard.Check(owner); shadowed && first {
					d.log.Printf("rpzindex: load %s: zone %q: owner name %q is on the well-known domains list", session.ID, name, owner)
				}
			}
			if err := session.Add(owner); err != nil {
				return session.ID, fmt.Errorf("adding %q: %w", owner, err)
			}
		}
	}
	return session.ID, session.Ready()
}

func (d *daemon) run() {
	var wg sync.WaitGroup

	if d.cfg.Api.Active == nil || *d.cfg.Api.Active {
		for _, addr := range d.cfg.Api.Addresses {
			addr := addr
			wg.Add(1)
			go func() {
				defer wg.Done()
				d.log.Printf("rpzindex: api listening on %s", addr)
				srv := &http.Server{Addr: addr, Handler: d.router()}
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					d.log.Printf("rpzindex: api on %s: %v", addr, err)
				}
			}()
		}
	}

	if d.cfg.Server.Active == nil || *d.cfg.Server.Active {
		for _, addr := range d.cfg.Server.Addresses {
			addr := addr
			wg.Add(1)
			go func() {
				defer wg.Done()
				d.log.Printf("rpzindex: notify listener on %s", addr)
				if err := d.serveNotify(addr); err != nil {
					d.log.Printf("rpzindex: notify listener on %s: %v", addr, err)
				}
			}()
		}
	}

	wg.Wait()
}
