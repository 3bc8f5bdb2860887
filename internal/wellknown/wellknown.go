/*
 * Copyright (c) DNS TAPIR
 */

// Package wellknown is a DAWG-backed guard the loader consults before
// registering a qname/nsdname trigger: triggers on extremely common
// domains are usually a mistake in the feed that produced them, worth a
// warning but not a rejection. Grounded on
// dnstapir-pop/tapir/dawg_utils.go's wellKnownDomainsTracker, repurposed
// from telemetry bucketing to loader sanity-checking per SPEC_FULL.md §11.
package wellknown

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"

	"github.com/miekg/dns"
	"github.com/smhanov/dawg"
	"github.com/spaolacci/murmur3"
)

// maxSeen bounds the recent-warnings dedup set; once full it is reset,
// trading a handful of possible duplicate log lines after a reset for
// never growing unbounded across a long-running process.
const maxSeen = 100_000

// Guard checks owner names against a well-known-domains list.
type Guard struct {
	finder dawg.Finder
	seed   uint32

	mu   sync.Mutex
	seen map[uint64]struct{}
}

// New loads the DAWG-encoded well-known domains list from dawgFile.
func New(dawgFile string) (*Guard, error) {
	finder, err := dawg.Load(dawgFile)
	if err != nil {
		return nil, fmt.Errorf("wellknown: loading %q: %w", dawgFile, err)
	}

	randInt, err := rand.Int(rand.Reader, big.NewInt(1<<32))
	if err != nil {
		return nil, fmt.Errorf("wellknown: seeding hasher: %w", err)
	}

	return &Guard{
		finder: finder,
		seed:   uint32(randInt.Uint64()),
		seen:   make(map[uint64]struct{}),
	}, nil
}

// Check reports whether name is on the well-known list and, if so,
// whether this is the first time this process has seen it shadowed
// (the caller should only log on the first occurrence).
func (g *Guard) Check(name string) (shadowed bool, firstWarning bool) {
	if g.finder.IndexOf(dns.Fqdn(name)) == -1 {
		return false, false
	}

	h := murmur3.Sum64WithSeed([]byte(name), g.seed)

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.seen[h]; ok {
		return true, false
	}
	if len(g.seen) >= maxSeen {
		g.seen = make(map[uint64]struct{})
	}
	g.seen[h] = struct{}{}
	return true, true
}
