/*
 * Copyright (c) DNS TAPIR
 */

// Package rpz implements the in-memory trigger index used by a recursive
// resolver to decide whether a qname, an answer address, a nameserver
// name, or a nameserver address is subject to a Response Policy Zone
// override.
//
// The index is built from two data structures: a CIDR radix tree (see
// cidrtree.go) indexing IP triggers, and a domain-name radix tree (see
// nametree.go) indexing qname/nsdname triggers. Both carry a pair of
// zone bitsets per node so that, across many zones loaded into the same
// index, a lookup can return the single highest-priority match without
// a second pass.
//
// Package rpz performs no I/O and holds no process-wide state: every
// Index is constructed with NewIndex and logs through the sink function
// passed to it, never a package-level logger.
package rpz
