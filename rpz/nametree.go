/*
 * Copyright (c) DNS TAPIR
 */

package rpz

import (
	"strings"

	"github.com/miekg/dns"
)

// nameNode is one node of the summary name tree (C4): a domain-name
// keyed trie walked root label first. pair is the trigger set for the
// exact name this node represents; wild is the trigger set contributed
// by a wildcard owner `*.<name>` registered at this node.
type nameNode struct {
	parent   *nameNode
	key      string
	children map[string]*nameNode
	pair     Pair
	wild     Pair
}

func (n *nameNode) empty() bool {
	return n.pair.IsZero() && n.wild.IsZero() && len(n.children) == 0
}

// nameTree is the tree itself. The zero value is an empty tree.
type nameTree struct {
	root *nameNode
}

// NameToLabels splits a DNS name into its labels, lower-cased, in
// root-first order (labels[0] is the label closest to the root,
// labels[len-1] is the leftmost/most specific label) — the order this
// package's trie is walked in.
func NameToLabels(name string) []string {
	parts := dns.SplitDomainName(name)
	out := make([]string, len(parts))
	for i, p := range parts {
		out[len(parts)-1-i] = strings.ToLower(p)
	}
	return out
}

// SplitWildcard reports whether labels (root-first, as from
// NameToLabels) name a wildcard owner (leftmost label "*"), returning
// the parent's labels with the wildcard label stripped.
func SplitWildcard(labels []string) (isWildcard bool, parent []string) {
	if len(labels) == 0 || labels[len(labels)-1] != "*" {
		return false, labels
	}
	return true, labels[:len(labels)-1]
}

func (t *nameTree) findPath(labels []string) *nameNode {
	cur := t.root
	for _, lbl := range labels {
		if cur == nil {
			return nil
		}
		cur = cur.children[lbl]
	}
	return cur
}

func (t *nameTree) insertPath(labels []string) *nameNode {
	if t.root == nil {
		t.root = &nameNode{}
	}
	cur := t.root
	for _, lbl := range labels {
		if cur.children == nil {
			cur.children = make(map[string]*nameNode)
		}
		child := cur.children[lbl]
		if child == nil {
			child = &nameNode{parent: cur, key: lbl}
			cur.children[lbl] = child
		}
		cur = child
	}
	return cur
}

// insert adds z (in category cat) as a trigger at labels, in the pair
// field if isWildcard is false, or the wild field (at the wildcard's
// parent name) if true. labels must already have the wildcard label
// stripped by the caller via SplitWildcard when isWildcard is true.
func (t *nameTree) insert(labels []string, isWildcard bool, z int, cat Category) bool {
	node := t.insertPath(labels)
	p := MakePair(z, cat)
	if isWildcard {
		if !node.wild.Intersect(p).IsZero() {
			return false
		}
		node.wild = node.wild.Union(p)
		return true
	}
	if !node.pair.Intersect(p).IsZero() {
		return false
	}
	node.pair = node.pair.Union(p)
	return true
}

// delete removes z (in category cat) as a trigger at labels, pruning
// any node left with no data and no children, walking back up to the
// root. Returns whether the trigger was actually present to remove.
func (t *nameTree) delete(labels []string, isWildcard bool, z int, cat Category) bool {
	node := t.findPath(labels)
	if node == nil {
		return false
	}
	p := MakePair(z, cat)
	var found bool
	if isWildcard {
		found = !node.wild.Intersect(p).IsZero()
		node.wild = node.wild.Without(p)
	} else {
		found = !node.pair.Intersect(p).IsZero()
		node.pair = node.pair.Without(p)
	}
	if !found {
		return false
	}
	for node != nil && node.empty() {
		parent := node.parent
		if parent == nil {
			t.root = nil
			break
		}
		delete(parent.children, node.key)
		node = parent
	}
	return true
}

// lookupResult is the union of an exact-name match's pair and every
// visited ancestor's wild field, per §4.4 (no priority trimming — the
// caller masks the result by its own live zbits).
func (t *nameTree) lookup(labels []string) (exact Pair, wild Pair) {
	cur := t.root
	for _, lbl := range labels {
		if cur == nil {
			break
		}
		wild = wild.Union(cur.wild)
		cur = cur.children[lbl]
	}
	if cur != nil {
		exact = cur.pair
	}
	return exact, wild
}

// walk calls fn for every node carrying trigger data, passing the
// root-first label path that reaches it.
func (t *nameTree) walk(fn func(labels []string, pair, wild Pair)) {
	var rec func(n *nameNode, path []string)
	rec = func(n *nameNode, path []string) {
		if n == nil {
			return
		}
		if !n.pair.IsZero() || !n.wild.IsZero() {
			cp := make([]string, len(path))
			copy(cp, path)
			fn(cp, n.pair, n.wild)
		}
		for lbl, child := range n.children {
			rec(child, append(path, lbl))
		}
	}
	rec(t.root, nil)
}

// mergeAt ORs pair into the exact-match field and wildPair into the wild
// field of the node at labels (creating it if absent), without touching
// any registry counters. Used by the load/ready cross-copy step of §4.6.
func (t *nameTree) mergeAt(labels []string, pair, wildPair Pair) {
	if pair.IsZero() && wildPair.IsZero() {
		return
	}
	node := t.insertPath(labels)
	node.pair = node.pair.Union(pair)
	node.wild = node.wild.Union(wildPair)
}

func (t *nameTree) clone() *nameTree {
	var rec func(n *nameNode, parent *nameNode) *nameNode
	rec = func(n *nameNode, parent *nameNode) *nameNode {
		if n == nil {
			return nil
		}
		c := &nameNode{parent: parent, key: n.key, pair: n.pair, wild: n.wild}
		if n.children != nil {
			c.children = make(map[string]*nameNode, len(n.children))
			for lbl, child := range n.children {
				c.children[lbl] = rec(child, c)
			}
		}
		return c
	}
	return &nameTree{root: rec(t.root, nil)}
}
