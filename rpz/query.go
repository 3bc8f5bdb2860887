/*
 * Copyright (c) DNS TAPIR
 */

package rpz

import "strings"

// Policy is the action a matched policy-zone record decodes to.
type Policy int

const (
	PolicyGiven Policy = iota
	PolicyDisabled
	PolicyPassthru
	PolicyNXDomain
	PolicyNoData
	PolicyCName
	PolicyWildCName
	PolicyRecord
	// PolicyDrop and PolicyTCPOnly are the SPEC_FULL §1-9 supplements
	// to spec.md §4.7, grounded on rpz.c's rpz-drop/rpz-tcp-only CNAME
	// target sentinels.
	PolicyDrop
	PolicyTCPOnly
	PolicyError
)

func (p Policy) String() string {
	switch p {
	case PolicyGiven:
		return "GIVEN"
	case PolicyDisabled:
		return "DISABLED"
	case PolicyPassthru:
		return "PASSTHRU"
	case PolicyNXDomain:
		return "NXDOMAIN"
	case PolicyNoData:
		return "NODATA"
	case PolicyCName, PolicyWildCName:
		return "CNAME"
	case PolicyRecord:
		return "Local-Data"
	case PolicyDrop:
		return "DROP"
	case PolicyTCPOnly:
		return "TCP-ONLY"
	default:
		return ""
	}
}

// Str2Policy parses the policy action configured for a zone, per
// §4.7, plus the DROP/TCP-ONLY supplement.
func Str2Policy(s string) Policy {
	switch strings.ToLower(s) {
	case "given":
		return PolicyGiven
	case "disabled":
		return PolicyDisabled
	case "passthru":
		return PolicyPassthru
	case "nxdomain":
		return PolicyNXDomain
	case "nodata":
		return PolicyNoData
	case "cname":
		return PolicyCName
	case "drop":
		return PolicyDrop
	case "tcp-only":
		return PolicyTCPOnly
	case "no-op": // obsolete spelling of passthru
		return PolicyPassthru
	default:
		return PolicyError
	}
}

// Policy2Str renders a decoded policy back to its canonical log string.
func Policy2Str(p Policy) string { return p.String() }

// Type2Str names a trigger category for logging, per §6.
func Type2Str(kind TriggerKind) string {
	switch kind {
	case TriggerQName:
		return "QNAME"
	case TriggerIPv4, TriggerIPv6:
		return "IP"
	case TriggerNSIPv4, TriggerNSIPv6:
		return "NSIP"
	case TriggerNSDName:
		return "NSDNAME"
	default:
		return "BAD"
	}
}

// IPMatch is the result of a successful FindIP, per §4.7/§6.
type IPMatch struct {
	Zone      int
	OwnerName string
	Prefix    int
}

// FindIP searches the CIDR tree for the highest-priority, longest
// matching trigger for addr among the zones in zbits, restricted by
// cat (answer-IP uses have.ipv4|ipv6, NS-IP uses have.nsipv4|nsipv6).
// OwnerName is rendered with the winning zone's rpz-ip/rpz-nsip marker
// and origin taken from the registry; Prefix is in natural units.
func (idx *Index) FindIP(cat Category, zbits ZBits, key IPKey) (IPMatch, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var have ZBits
	if key.IsV4() {
		if cat == CategoryNS {
			have = idx.reg.have.nsipv4
		} else {
			have = idx.reg.have.ipv4
		}
	} else {
		if cat == CategoryNS {
			have = idx.reg.have.nsipv6
		} else {
			have = idx.reg.have.ipv6
		}
	}
	zbits = zbits.Intersect(have)
	if zbits.IsZero() {
		return IPMatch{}, false
	}

	live := MakePair(0, cat)
	if cat == CategoryNS {
		live.NS = zbits
	} else {
		live.D = zbits
	}

	res, ok := idx.cidr.lookup(key, live)
	if !ok {
		return IPMatch{}, false
	}

	var winner ZBits
	if cat == CategoryNS {
		winner = res.Match.NS.Intersect(zbits)
	} else {
		winner = res.Match.D.Intersect(zbits)
	}
	zoneNum, ok := winner.Lowest()
	if !ok {
		return IPMatch{}, false
	}

	marker, origin := "", ""
	if zone, ok := idx.reg.zone(zoneNum); ok {
		origin = zone.Origin
		if cat == CategoryNS {
			marker = zone.NSIPSub
		} else {
			marker = zone.IPSub
		}
	}
	owner := idx.codec.RenderOwnerName(res.IP, marker, origin)
	return IPMatch{Zone: zoneNum, OwnerName: owner, Prefix: res.Prefix}, true
}

// FindName searches the name tree for candidate zones matching name,
// per §4.7.
func (idx *Index) FindName(cat Category, zbits ZBits, name string) ZBits {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if zbits.IsZero() {
		return 0
	}
	labels := NameToLabels(name)
	exact, wild := idx.names.lookup(labels)

	var found ZBits
	if cat == CategoryNS {
		found = exact.NS.Union(wild.NS)
	} else {
		found = exact.D.Union(wild.D)
	}
	return zbits.Intersect(found)
}

// DecodeCNAME implements decode-target (§4.7): inspect a CNAME rdata
// target against the zone's passthru/drop/tcp-only sentinels and the
// wildcard-substitution rules, and selfname (the obsolete
// "CNAME <ip-owner-name>" loopback form of PASSTHRU).
func DecodeCNAME(rpz *ZoneRecord, target string, selfname string) Policy {
	target = strings.TrimSuffix(strings.ToLower(target), ".")
	origin := strings.TrimSuffix(strings.ToLower(rpz.Origin), ".")

	if target == "" {
		return PolicyNXDomain
	}

	// target has had its trailing root dot trimmed: "*." is now "*".
	if target == "*" {
		return PolicyNoData
	}
	if strings.HasPrefix(target, "*.") {
		return PolicyWildCName
	}

	if target == rpz.PassthruSub+"."+origin || target == rpz.PassthruSub {
		return PolicyPassthru
	}
	if target == rpz.DropSub+"."+origin || target == rpz.DropSub {
		return PolicyDrop
	}
	if target == rpz.TCPOnlySub+"."+origin || target == rpz.TCPOnlySub {
		return PolicyTCPOnly
	}

	if selfname != "" && target == strings.TrimSuffix(strings.ToLower(selfname), ".") {
		return PolicyPassthru
	}

	return PolicyRecord
}
