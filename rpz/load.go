/*
 * Copyright (c) DNS TAPIR
 */

package rpz

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/miekg/dns"
)

// Index is the live trigger index: the two search trees (C3, C4) plus
// the shared zone registry (C5). The zero value is not usable; build one
// with NewIndex.
type Index struct {
	mu    sync.RWMutex // guards cidr/names: held exclusively for every mutation and for the Ready swap, shared for queries
	cidr  *cidrTree
	names *nameTree
	reg   *registry
	codec *codec

	loadBegun ZBits // zones for which Begin has been called at least once
	logf      LogFunc
}

// NewIndex builds an empty index. logf may be nil, in which case log
// lines are discarded.
func NewIndex(logf LogFunc) *Index {
	if logf == nil {
		logf = noopLog
	}
	return &Index{
		cidr:  &cidrTree{},
		names: &nameTree{},
		reg:   newRegistry(),
		codec: newCodec(),
		logf:  logf,
	}
}

// RegisterZone records a new policy zone at ordinal num, or returns the
// existing record if num is already registered, per §3.
func (idx *Index) RegisterZone(num int, origin string) *ZoneRecord {
	return idx.reg.register(num, origin)
}

// ZoneRecursiveOnly reports the SPEC_FULL.md recursive_only flag for a
// registered zone; unregistered zones report false.
func (idx *Index) ZoneRecursiveOnly(num int) bool {
	z, ok := idx.reg.zone(num)
	return ok && z.RecursiveOnly
}

// LoadSession is an in-progress Begin/Add/Delete/Ready bracket for one
// zone, per §4.6. A session is not safe for concurrent use by more than
// one goroutine.
type LoadSession struct {
	ID   uuid.UUID
	idx  *Index
	zone int

	// shadow is false for the "first load" fast path (§4.6's alias
	// optimization): Add/Delete mutate the live trees directly, under
	// idx.mu, and Ready is a cheap no-op besides a final counter fix.
	// shadow is true for a reload: Add/Delete populate private trees
	// that Ready later cross-copies the other zones into and swaps in.
	shadow bool
	cidr   *cidrTree
	names  *nameTree
}

// Begin starts a load bracket for zone, per §4.6. The very first Begin
// for a given zone ordinal aliases the live index directly, since there
// is nothing yet to preserve by copying; every subsequent Begin builds a
// private shadow pair of trees so concurrent readers keep seeing the old
// data until Ready swaps it in.
func (idx *Index) Begin(zone int) *LoadSession {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	s := &LoadSession{ID: uuid.New(), idx: idx, zone: zone}
	if idx.loadBegun.Test(zone) {
		s.shadow = true
		s.cidr = &cidrTree{}
		s.names = &nameTree{}
	} else {
		idx.loadBegun.Set(ZBit(zone))
		s.cidr = idx.cidr
		s.names = idx.names
	}
	return s
}

// triggerType classifies an owner name's relation to its zone's
// conventional subnames, per §4.1/type_from_name.
type triggerType int

const (
	triggerBad triggerType = iota
	triggerQName
	triggerNSDName
	triggerIPv4
	triggerIPv6
	triggerNSIPv4
	triggerNSIPv6
)

// relativeLabels reports whether name is suffix or equal to name under
// suffix and, if so, the labels of name with suffix removed, in
// left-to-right (most-significant-label-first, as from
// dns.SplitDomainName) order.
func relativeLabels(name, suffix string) ([]string, bool) {
	name, suffix = dns.Fqdn(name), dns.Fqdn(suffix)
	if !dns.IsSubDomain(suffix, name) {
		return nil, false
	}
	nameLabels := dns.SplitDomainName(name)
	suffixLabels := dns.SplitDomainName(suffix)
	n := len(nameLabels) - len(suffixLabels)
	if n < 0 {
		return nil, false
	}
	return nameLabels[:n], true
}

// classifyOwner implements type_from_name (§4.1): decide which trigger
// kind an owner name under zone encodes, and the labels relative to that
// kind's subname, left-to-right.
func classifyOwner(zone *ZoneRecord, ownerName string) (triggerType, []string) {
	if rel, ok := relativeLabels(ownerName, zone.IPSub+"."+zone.Origin); ok {
		key, err := DecodeOwnerLabels(rel)
		if err != nil {
			return triggerBad, nil
		}
		if key.IsV4() {
			return triggerIPv4, rel
		}
		return triggerIPv6, rel
	}
	if rel, ok := relativeLabels(ownerName, zone.NSIPSub+"."+zone.Origin); ok {
		key, err := DecodeOwnerLabels(rel)
		if err != nil {
			return triggerBad, nil
		}
		if key.IsV4() {
			return triggerNSIPv4, rel
		}
		return triggerNSIPv6, rel
	}
	if rel, ok := relativeLabels(ownerName, zone.NSDNameSub+"."+zone.Origin); ok {
		return triggerNSDName, rel
	}
	if rel, ok := relativeLabels(ownerName, zone.Origin); ok {
		return triggerQName, rel
	}
	return triggerBad, nil
}

func reverseLower(labels []string) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[len(labels)-1-i] = strings.ToLower(l)
	}
	return out
}

// lock takes the index's search lock exclusively. A shadow session's
// own trees have no concurrent readers yet, but every session — shadow
// or not — shares idx.reg with live queries (FindIP/FindName read it
// under idx.mu.RLock), so the lock is always required here.
func (s *LoadSession) lock() {
	s.idx.mu.Lock()
}

func (s *LoadSession) unlock() {
	s.idx.mu.Unlock()
}

// Add registers ownerName as a trigger for this session's zone, per
// §4.1/§7. A malformed owner name is logged and otherwise ignored:
// Add never fails a whole load over one bad record.
func (s *LoadSession) Add(ownerName string) error {
	const op = "Add"
	zone, ok := s.idx.reg.zone(s.zone)
	if !ok {
		return newErr(op, KindNotFound, fmt.Sprintf("zone %d not registered", s.zone))
	}

	kind, rel := classifyOwner(zone, ownerName)
	switch kind {
	case triggerIPv4, triggerIPv6, triggerNSIPv4, triggerNSIPv6:
		key, err := DecodeOwnerLabels(rel)
		if err != nil {
			s.idx.logf(LevelWarn, "rpz", fmt.Sprintf("load %s: zone %d: invalid IP owner name %q: %v", s.ID, s.zone, ownerName, err))
			return nil
		}
		cat := CategoryDirect
		tkind := TriggerIPv4
		switch kind {
		case triggerIPv4:
			tkind = TriggerIPv4
		case triggerIPv6:
			tkind = TriggerIPv6
		case triggerNSIPv4:
			cat, tkind = CategoryNS, TriggerNSIPv4
		case triggerNSIPv6:
			cat, tkind = CategoryNS, TriggerNSIPv6
		}
		s.lock()
		_, added := s.cidr.insert(key, s.zone, cat)
		if added {
			s.idx.reg.adjustTrigger(s.zone, tkind, true)
		}
		s.unlock()
		return nil

	case triggerQName, triggerNSDName:
		labels := reverseLower(rel)
		isWildcard, parent := SplitWildcard(labels)
		cat := CategoryDirect
		tkind := TriggerQName
		if kind == triggerNSDName {
			cat, tkind = CategoryNS, TriggerNSDName
		}
		s.lock()
		added := s.names.insert(parent, isWildcard, s.zone, cat)
		if added {
			s.idx.reg.adjustTrigger(s.zone, tkind, true)
		}
		s.unlock()
		return nil

	default:
		s.idx.logf(LevelWarn, "rpz", fmt.Sprintf("load %s: zone %d: owner name %q does not match any trigger subname", s.ID, s.zone, ownerName))
		return nil
	}
}

// Delete removes ownerName as a trigger for this session's zone. Per
// §7, deleting a name that is not present is silently ignored.
func (s *LoadSession) Delete(ownerName string) {
	zone, ok := s.idx.reg.zone(s.zone)
	if !ok {
		return
	}

	kind, rel := classifyOwner(zone, ownerName)
	switch kind {
	case triggerIPv4, triggerIPv6, triggerNSIPv4, triggerNSIPv6:
		key, err := DecodeOwnerLabels(rel)
		if err != nil {
			return
		}
		cat := CategoryDirect
		tkind := TriggerIPv4
		switch kind {
		case triggerIPv4:
			tkind = TriggerIPv4
		case triggerIPv6:
			tkind = TriggerIPv6
		case triggerNSIPv4:
			cat, tkind = CategoryNS, TriggerNSIPv4
		case triggerNSIPv6:
			cat, tkind = CategoryNS, TriggerNSIPv6
		}
		s.lock()
		removed := s.cidr.remove(key, s.zone, cat)
		if removed {
			s.idx.reg.adjustTrigger(s.zone, tkind, false)
		}
		s.unlock()

	case triggerQName, triggerNSDName:
		labels := reverseLower(rel)
		isWildcard, parent := SplitWildcard(labels)
		cat := CategoryDirect
		tkind := TriggerQName
		if kind == triggerNSDName {
			cat, tkind = CategoryNS, TriggerNSDName
		}
		s.lock()
		removed := s.names.delete(parent, isWildcard, s.zone, cat)
		if removed {
			s.idx.reg.adjustTrigger(s.zone, tkind, false)
		}
		s.unlock()
	}
}

// Ready commits this session's load, per §4.6. For the aliased first
// load this is a cheap counter/have-bitmap recompute. For a reload, it
// cross-copies every other zone's current trigger data into the
// session's shadow trees, then atomically swaps the shadow trees in as
// the live ones under the search lock.
//
// The counter/have-bitmap recompute is a full rebuild from the
// post-swap tree contents rather than a carry-forward of the
// adjustTrigger calls made during the session: a reload's Delete calls
// against an as-yet-empty shadow tree are unconditionally no-ops (there
// is nothing there yet to find and remove), so trusting their call
// count would silently accumulate stale counters across repeated
// reloads of the same zone. Rebuilding from the final trees is
// self-correcting and was judged worth the one full tree walk per
// Ready; see DESIGN.md.
func (s *LoadSession) Ready() error {
	if !s.shadow {
		s.idx.mu.Lock()
		s.idx.rebuildCounters()
		s.idx.mu.Unlock()
		s.idx.logf(LevelInfo, "rpz", fmt.Sprintf("load %s: zone %d: first load ready", s.ID, s.zone))
		return nil
	}

	mask := ZBit(s.zone).Complement()
	s.idx.mu.Lock()
	defer s.idx.mu.Unlock()

	s.idx.cidr.walk(func(ip IPKey, pair Pair) {
		other := Pair{D: pair.D & mask, NS: pair.NS & mask}
		s.cidr.mergeAt(ip, other)
	})
	s.idx.names.walk(func(labels []string, pair, wild Pair) {
		other := Pair{D: pair.D & mask, NS: pair.NS & mask}
		otherWild := Pair{D: wild.D & mask, NS: wild.NS & mask}
		s.names.mergeAt(labels, other, otherWild)
	})

	s.idx.cidr = s.cidr
	s.idx.names = s.names
	s.idx.loadBegun.Set(ZBit(s.zone))
	s.idx.rebuildCounters()
	s.idx.logf(LevelInfo, "rpz", fmt.Sprintf("load %s: zone %d: reload ready", s.ID, s.zone))
	return nil
}

// rebuildCounters recomputes every zone's trigger counters and the
// registry's have-bitmaps from scratch by walking the current trees.
// idx.mu must be held (in either mode need not matter for callers, but
// every call site here takes it exclusively since this always follows a
// mutation).
func (idx *Index) rebuildCounters() {
	idx.reg.resetCounters()
	idx.cidr.walk(func(ip IPKey, pair Pair) {
		isV4 := ip.IsV4()
		for z := 0; z < Zmax; z++ {
			if pair.D.Test(z) {
				if isV4 {
					idx.reg.adjustTrigger(z, TriggerIPv4, true)
				} else {
					idx.reg.adjustTrigger(z, TriggerIPv6, true)
				}
			}
			if pair.NS.Test(z) {
				if isV4 {
					idx.reg.adjustTrigger(z, TriggerNSIPv4, true)
				} else {
					idx.reg.adjustTrigger(z, TriggerNSIPv6, true)
				}
			}
		}
	})
	idx.names.walk(func(_ []string, pair, wild Pair) {
		merged := pair.Union(wild)
		for z := 0; z < Zmax; z++ {
			if merged.D.Test(z) {
				idx.reg.adjustTrigger(z, TriggerQName, true)
			}
			if merged.NS.Test(z) {
				idx.reg.adjustTrigger(z, TriggerNSDName, true)
			}
		}
	})
	idx.reg.fixQNameSkipRecurse()
}
