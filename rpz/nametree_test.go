/*
 * Copyright (c) DNS TAPIR
 */

package rpz

import "testing"

func TestNameTreeWildcard(t *testing.T) {
	// spec.md §8 scenario 4.
	tree := &nameTree{}
	labels := NameToLabels("*.evil.example")
	isWildcard, parent := SplitWildcard(labels)
	if !isWildcard {
		t.Fatalf("SplitWildcard did not recognize a wildcard owner")
	}
	tree.insert(parent, true, 2, CategoryDirect)

	exact, wild := tree.lookup(NameToLabels("foo.evil.example"))
	if !exact.Union(wild).D.Test(2) {
		t.Errorf("foo.evil.example: zone 2 not found via wildcard")
	}

	exact, wild = tree.lookup(NameToLabels("evil.example"))
	if exact.Union(wild).D.Test(2) {
		t.Errorf("evil.example (bare name) unexpectedly matched the wildcard")
	}
}

func TestNameTreeExactMatch(t *testing.T) {
	tree := &nameTree{}
	tree.insert(NameToLabels("www.example.com"), false, 0, CategoryDirect)

	exact, wild := tree.lookup(NameToLabels("www.example.com"))
	if !exact.Union(wild).D.Test(0) {
		t.Errorf("exact match not found")
	}

	exact, wild = tree.lookup(NameToLabels("other.example.com"))
	if exact.Union(wild).D.Test(0) {
		t.Errorf("unrelated name unexpectedly matched")
	}
}

func TestNameTreeDeleteIsInverse(t *testing.T) {
	tree := &nameTree{}
	a := NameToLabels("a.example.com")
	b := NameToLabels("b.example.com")
	tree.insert(a, false, 0, CategoryDirect)
	tree.insert(b, false, 0, CategoryDirect)

	tree.delete(a, false, 0, CategoryDirect)

	exact, wild := tree.lookup(a)
	if exact.Union(wild).D.Test(0) {
		t.Errorf("a.example.com still matches after delete")
	}
	exact, wild = tree.lookup(b)
	if !exact.Union(wild).D.Test(0) {
		t.Errorf("b.example.com lost its match after an unrelated delete")
	}
}

func TestNameTreeWalkVisitsOwnDataOnly(t *testing.T) {
	tree := &nameTree{}
	tree.insert(NameToLabels("www.example.com"), false, 0, CategoryDirect)
	isWildcard, parent := SplitWildcard(NameToLabels("*.evil.example"))
	tree.insert(parent, isWildcard, 2, CategoryNS)

	count := 0
	tree.walk(func(labels []string, pair, wild Pair) {
		count++
		if pair.IsZero() && wild.IsZero() {
			t.Errorf("walk visited a node with no trigger data")
		}
	})
	if count != 2 {
		t.Errorf("walk visited %d nodes; want 2", count)
	}
}
