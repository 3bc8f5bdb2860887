/*
 * Copyright (c) DNS TAPIR
 */

package rpz

import (
	"net"
	"testing"
)

func mustKey(t *testing.T, addr string, prefix int) IPKey {
	t.Helper()
	ip := net.ParseIP(addr)
	if ip == nil {
		t.Fatalf("bad test address %q", addr)
	}
	key, err := FromNetIP(ip, prefix)
	if err != nil {
		t.Fatalf("FromNetIP(%q, %d): %v", addr, prefix, err)
	}
	return key
}

func TestCIDRTreeLongestMatch(t *testing.T) {
	// spec.md §8 scenario 1.
	tree := &cidrTree{}
	net24 := mustKey(t, "10.0.0.0", 24)
	host32 := mustKey(t, "10.1.1.1", 32)

	tree.insert(net24, 0, CategoryDirect)
	tree.insert(host32, 0, CategoryDirect)

	live := MakePair(0, CategoryDirect)

	res, ok := tree.lookup(mustKey(t, "10.1.1.1", 32), live)
	if !ok || res.Prefix != 32 {
		t.Fatalf("lookup(10.1.1.1) = %+v, %t; want prefix 32", res, ok)
	}

	res, ok = tree.lookup(mustKey(t, "10.0.0.5", 32), live)
	if !ok || res.Prefix != 24 {
		t.Fatalf("lookup(10.0.0.5) = %+v, %t; want prefix 24", res, ok)
	}
}

func TestCIDRTreeZonePriority(t *testing.T) {
	// spec.md §8 scenario 2: lower ordinal wins regardless of insert order.
	tree := &cidrTree{}
	host := mustKey(t, "10.1.1.1", 32)

	tree.insert(host, 1, CategoryDirect)
	tree.insert(host, 0, CategoryDirect)

	live := MakePair(0, CategoryDirect).Union(MakePair(1, CategoryDirect))
	res, ok := tree.lookup(host, live)
	if !ok {
		t.Fatalf("lookup did not find a match")
	}
	zone, ok := res.Match.D.Intersect(live.D).Lowest()
	if !ok || zone != 0 {
		t.Errorf("winning zone = %d; want 0", zone)
	}
}

func TestCIDRTreeDeleteIsInverse(t *testing.T) {
	tree := &cidrTree{}
	a := mustKey(t, "10.1.1.1", 32)
	b := mustKey(t, "10.1.1.2", 32)

	tree.insert(a, 0, CategoryDirect)
	tree.insert(b, 0, CategoryDirect)
	tree.remove(a, 0, CategoryDirect)

	live := MakePair(0, CategoryDirect)
	if _, ok := tree.lookup(a, live); ok {
		t.Errorf("lookup(a) found a match after delete")
	}
	if _, ok := tree.lookup(b, live); !ok {
		t.Errorf("lookup(b) lost its match after deleting an unrelated key")
	}
}

func TestCIDRTreeSumPropagation(t *testing.T) {
	tree := &cidrTree{}
	tree.insert(mustKey(t, "10.1.1.1", 32), 3, CategoryDirect)
	tree.insert(mustKey(t, "10.1.1.2", 32), 5, CategoryNS)

	var check func(n *cidrNode)
	check = func(n *cidrNode) {
		if n == nil {
			return
		}
		want := n.pair
		if n.child[0] != nil {
			want = want.Union(n.child[0].sum)
		}
		if n.child[1] != nil {
			want = want.Union(n.child[1].sum)
		}
		if want != n.sum {
			t.Errorf("node %+v: sum = %+v; want %+v", n.ip, n.sum, want)
		}
		check(n.child[0])
		check(n.child[1])
	}
	check(tree.root)
}

func TestCIDRTreeInsertIdempotent(t *testing.T) {
	tree := &cidrTree{}
	key := mustKey(t, "10.1.1.1", 32)
	_, added := tree.insert(key, 0, CategoryDirect)
	if !added {
		t.Fatalf("first insert reported not-added")
	}
	_, added = tree.insert(key, 0, CategoryDirect)
	if added {
		t.Errorf("re-adding the same (key, zone, category) reported added")
	}
}

func TestCIDRTreeWalkVisitsOwnDataOnly(t *testing.T) {
	tree := &cidrTree{}
	tree.insert(mustKey(t, "10.0.0.0", 24), 0, CategoryDirect)
	tree.insert(mustKey(t, "10.1.1.1", 32), 0, CategoryDirect)

	count := 0
	tree.walk(func(ip IPKey, pair Pair) {
		count++
		if pair.IsZero() {
			t.Errorf("walk visited a node with an empty pair")
		}
	})
	if count != 2 {
		t.Errorf("walk visited %d nodes; want 2", count)
	}
}

func TestCIDRTreeMergeAtPartialOverlap(t *testing.T) {
	// Exercises the multi-bit merge path used by Ready()'s cross-copy:
	// a node already carrying zone 0 must gain zone 1 without losing
	// zone 0, even though the two bits are merged in one mergeAt call.
	tree := &cidrTree{}
	key := mustKey(t, "10.1.1.1", 32)
	tree.insert(key, 0, CategoryDirect)

	tree.mergeAt(key, Pair{D: ZBit(0).Union(ZBit(1))})

	live := MakePair(0, CategoryDirect).Union(MakePair(1, CategoryDirect))
	res, ok := tree.lookup(key, live)
	if !ok {
		t.Fatalf("lookup found no match after mergeAt")
	}
	if !res.Match.D.Test(0) || !res.Match.D.Test(1) {
		t.Errorf("Match.D = %b; want both zone 0 and zone 1 set", res.Match.D)
	}
}
