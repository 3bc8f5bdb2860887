/*
 * Copyright (c) DNS TAPIR
 */

package rpz

import "testing"

func TestRegistryRegisterIsIdempotent(t *testing.T) {
	r := newRegistry()
	a := r.register(0, "zone-a.example.")
	b := r.register(0, "zone-b.example.")
	if a != b {
		t.Fatalf("register(0, ...) a second time returned a different record")
	}
	if a.Origin != "zone-a.example." {
		t.Errorf("second register() call overwrote the origin: got %q", a.Origin)
	}
}

func TestRegistryAdjustTriggerCountsAndHaveBitmap(t *testing.T) {
	r := newRegistry()
	r.register(0, "zone.example.")

	r.adjustTrigger(0, TriggerQName, true)
	r.adjustTrigger(0, TriggerQName, true)
	zone, _ := r.zone(0)
	if zone.triggers.qname != 2 {
		t.Fatalf("qname counter = %d; want 2", zone.triggers.qname)
	}
	if !r.have.qname.Test(0) {
		t.Errorf("have.qname does not have zone 0 set after first increment")
	}

	r.adjustTrigger(0, TriggerQName, false)
	if !r.have.qname.Test(0) {
		t.Errorf("have.qname cleared zone 0 while the counter was still > 0")
	}
	r.adjustTrigger(0, TriggerQName, false)
	if r.have.qname.Test(0) {
		t.Errorf("have.qname still has zone 0 set after the counter reached 0")
	}
}

func TestRegistryAdjustTriggerNeverGoesNegative(t *testing.T) {
	r := newRegistry()
	r.register(0, "zone.example.")
	r.adjustTrigger(0, TriggerQName, false) // decrement below zero must be a no-op
	zone, _ := r.zone(0)
	if zone.triggers.qname != 0 {
		t.Errorf("qname counter = %d; want 0 (decrement below zero ignored)", zone.triggers.qname)
	}
}

func TestRegistryFixQNameSkipRecurse(t *testing.T) {
	r := newRegistry()
	r.register(0, "zone.example.")
	r.register(1, "other.example.")

	// No triggers of any qname-affecting kind: skip-recurse for everyone.
	r.fixQNameSkipRecurse()
	if r.have.qnameSkipRecurse != AllZBits {
		t.Errorf("qnameSkipRecurse = %b; want AllZBits with no ip/nsip/nsdname triggers", r.have.qnameSkipRecurse)
	}

	// Zone 1 has an IP trigger: only zones with an ordinal below 1 may skip.
	r.adjustTrigger(1, TriggerIPv4, true)
	want := MaskBelow(1)
	if r.have.qnameSkipRecurse != want {
		t.Errorf("qnameSkipRecurse = %b; want %b", r.have.qnameSkipRecurse, want)
	}
}

func TestRegistryResetCounters(t *testing.T) {
	r := newRegistry()
	r.register(0, "zone.example.")
	r.adjustTrigger(0, TriggerQName, true)
	r.adjustTrigger(0, TriggerIPv4, true)

	r.resetCounters()

	zone, _ := r.zone(0)
	if zone.triggers != (triggerCounters{}) {
		t.Errorf("resetCounters left non-zero counters: %+v", zone.triggers)
	}
	if r.have != (haveBitmaps{}) {
		t.Errorf("resetCounters left non-zero have-bitmaps: %+v", r.have)
	}
}
