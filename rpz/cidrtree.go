/*
 * Copyright (c) DNS TAPIR
 */

package rpz

// cidrNode is one node of the parallel CIDR radix tree (C3): a
// parent-pointer Patricia trie keyed on masked 128-bit addresses. pair
// holds the zones that have a trigger whose key is exactly this node's
// (ip, prefix); sum is the union of pair over the whole subtree rooted
// here, letting a descent prune a branch with one bitwise AND.
type cidrNode struct {
	parent *cidrNode
	child  [2]*cidrNode
	ip     IPKey
	pair   Pair
	sum    Pair
}

// cidrTree is the radix tree itself. The zero value is an empty tree.
type cidrTree struct {
	root *cidrNode
}

func newCIDRNode(key IPKey, inherit *cidrNode) *cidrNode {
	n := &cidrNode{ip: key.Masked()}
	if inherit != nil {
		n.sum = inherit.sum
	}
	return n
}

// propagateSum recomputes n's sum from its own pair and its children's
// sums, then walks up through parents doing the same, stopping as soon
// as a node's sum does not change.
func (n *cidrNode) propagateSum() {
	for cur := n; cur != nil; {
		sum := cur.pair
		if cur.child[0] != nil {
			sum = sum.Union(cur.child[0].sum)
		}
		if cur.child[1] != nil {
			sum = sum.Union(cur.child[1].sum)
		}
		if sum == cur.sum {
			break
		}
		cur.sum = sum
		cur = cur.parent
	}
}

// branchBit returns the child-slot bit (0 or 1) of k immediately after
// the first commonLen bits, i.e. the bit that two keys sharing a
// commonLen-bit prefix diverge on.
func branchBit(k IPKey, commonLen int) int {
	return k.Bit(commonLen + 1)
}

func keyWithPrefix(k IPKey, prefix int) IPKey {
	k.Prefix = prefix
	return k.Masked()
}

type searchOutcome int

const (
	outcomeNotFound searchOutcome = iota
	outcomePartial
	outcomeSuccess
	outcomeExists
)

// search implements the unified lookup/insert walk of §4.2: a single
// descent that, for a pure lookup (create=false), also performs the
// priority-trimming partial-match accumulation of §4.3, and for an
// insert (create=true) splices, forks, or extends nodes as needed.
//
// tgtPair is never mutated; search works against a local copy so a
// caller's zbits survive the trim.
func (t *cidrTree) search(key IPKey, tgtPair Pair, create bool) (searchOutcome, *cidrNode) {
	result := outcomeNotFound
	var found *cidrNode
	working := tgtPair

	cur := t.root
	var parent *cidrNode
	curIdx := 0

	for {
		if cur == nil {
			if !create {
				return result, found
			}
			child := newCIDRNode(key, nil)
			if parent == nil {
				t.root = child
			} else {
				parent.child[curIdx] = child
			}
			child.parent = parent
			child.pair = child.pair.Union(tgtPair)
			child.propagateSum()
			return outcomeSuccess, child
		}

		if cur.sum.Intersect(working).IsZero() {
			// no relevant data anywhere in this subtree; skip it
			// unless we are inserting, in which case we must
			// still walk into it to place the new node/mark it.
			if !create {
				return result, found
			}
		}

		common := CommonPrefixLen(key, cur.ip, min(key.Prefix, cur.ip.Prefix))

		if common == key.Prefix {
			if key.Prefix == cur.ip.Prefix {
				if create {
					already := tgtPair.Without(cur.pair).IsZero()
					cur.pair = cur.pair.Union(tgtPair)
					cur.propagateSum()
					if already {
						return outcomeExists, cur
					}
					return outcomeSuccess, cur
				}
				if !cur.pair.Intersect(working).IsZero() {
					found = cur
					return outcomeSuccess, found
				}
				return result, found
			}

			// key.Prefix < cur.ip.Prefix: the target is shorter
			// than cur; insert it as cur's new parent.
			if !create {
				return result, found
			}
			newParent := newCIDRNode(key, cur)
			newParent.parent = parent
			if parent == nil {
				t.root = newParent
			} else {
				parent.child[curIdx] = newParent
			}
			idx := branchBit(cur.ip, key.Prefix)
			newParent.child[idx] = cur
			cur.parent = newParent
			newParent.pair = tgtPair
			newParent.propagateSum()
			return outcomeSuccess, newParent
		}

		if common == cur.ip.Prefix {
			if !cur.pair.Intersect(working).IsZero() {
				result = outcomePartial
				found = cur
				working.D = MaskBelowOrEqualLowest(working.D, cur.pair.D)
				working.NS = MaskBelowOrEqualLowest(working.NS, cur.pair.NS)
			}
			parent = cur
			curIdx = branchBit(key, common)
			cur = cur.child[curIdx]
			continue
		}

		// common < key.Prefix and common < cur.ip.Prefix: neither
		// matches the other in full. Fork a new parent above cur
		// and add the target as cur's sibling.
		if !create {
			return result, found
		}
		sibling := newCIDRNode(key, nil)
		newParent := newCIDRNode(keyWithPrefix(key, common), cur)
		newParent.parent = parent
		if parent == nil {
			t.root = newParent
		} else {
			parent.child[curIdx] = newParent
		}
		idx := branchBit(key, common)
		newParent.child[idx] = sibling
		newParent.child[1-idx] = cur
		cur.parent = newParent
		sibling.parent = newParent
		sibling.pair = tgtPair
		sibling.propagateSum()
		return outcomeSuccess, sibling
	}
}

// insert adds z (in category cat) as a trigger for key, returning the
// node that now carries it. Returns (node, false) if the bit was
// already set (mirroring add_cidr's idempotent re-add).
func (t *cidrTree) insert(key IPKey, z int, cat Category) (*cidrNode, bool) {
	p := MakePair(z, cat)
	outcome, node := t.search(key, p, true)
	return node, outcome != outcomeExists
}

// remove deletes z (in category cat) as a trigger for key, collapsing
// any nodes left with no data and at most one child, per §4.4. Returns
// whether the trigger was actually present to remove.
func (t *cidrTree) remove(key IPKey, z int, cat Category) bool {
	p := MakePair(z, cat)
	outcome, tgt := t.search(key, p, false)
	if outcome != outcomeSuccess {
		return false
	}

	p = p.Intersect(tgt.pair)
	if p.IsZero() {
		return false
	}
	tgt.pair = tgt.pair.Without(p)
	tgt.propagateSum()

	for tgt != nil {
		var child *cidrNode
		if tgt.child[0] != nil {
			if tgt.child[1] != nil {
				break
			}
			child = tgt.child[0]
		} else {
			child = tgt.child[1]
		}
		if !tgt.pair.IsZero() {
			break
		}

		parent := tgt.parent
		if parent == nil {
			t.root = child
		} else if parent.child[1] == tgt {
			parent.child[1] = child
		} else {
			parent.child[0] = child
		}
		if child != nil {
			child.parent = parent
		}
		tgt = parent
	}
	return true
}

// LookupResult is the winning trigger found by a CIDR tree descent.
type LookupResult struct {
	IP     IPKey
	Prefix int  // natural units: 0..32 for IPv4, 0..128 for IPv6
	Match  Pair // the matching node's own pair, not filtered to live
}

// lookup finds the longest-prefix, highest-priority match for key
// among the zones in live, per §4.3. The returned Pair is the node's
// own pair (not the running trimmed copy), so callers recover the
// actual winning zone via Pair.Intersect against whatever zbits they
// care about.
func (t *cidrTree) lookup(key IPKey, live Pair) (LookupResult, bool) {
	outcome, found := t.search(key, live, false)
	if outcome == outcomeNotFound || found == nil {
		return LookupResult{}, false
	}
	_, prefix := found.ip.ToNetIP()
	return LookupResult{IP: found.ip, Prefix: prefix, Match: found.pair}, true
}

// walk calls fn for every node that carries its own (non-inherited)
// trigger data, in-order (child 0, the node, child 1). Used by the
// load/ready cross-copy step and by the counter rebuild.
func (t *cidrTree) walk(fn func(ip IPKey, pair Pair)) {
	var rec func(n *cidrNode)
	rec = func(n *cidrNode) {
		if n == nil {
			return
		}
		rec(n.child[0])
		if !n.pair.IsZero() {
			fn(n.ip, n.pair)
		}
		rec(n.child[1])
	}
	rec(t.root)
}

// mergeAt ORs pair into the node at key (creating it if absent), without
// touching any registry counters. Used by the load/ready cross-copy step
// of §4.6, which must not double-count triggers the registry already
// accounts for.
func (t *cidrTree) mergeAt(key IPKey, pair Pair) {
	if pair.IsZero() {
		return
	}
	t.search(key, pair, true)
}

// clone deep-copies the tree. A reload does not use it: Begin gives a
// reload session fresh empty trees instead.
func (t *cidrTree) clone() *cidrTree {
	var rec func(n *cidrNode, parent *cidrNode) *cidrNode
	rec = func(n *cidrNode, parent *cidrNode) *cidrNode {
		if n == nil {
			return nil
		}
		c := &cidrNode{ip: n.ip, pair: n.pair, sum: n.sum, parent: parent}
		c.child[0] = rec(n.child[0], c)
		c.child[1] = rec(n.child[1], c)
		return c
	}
	return &cidrTree{root: rec(t.root, nil)}
}
