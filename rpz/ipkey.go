/*
 * Copyright (c) DNS TAPIR
 */

package rpz

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/miekg/dns"
)

// IPKey is 128 bits of address, host-byte-order, stored big-end-word
// first (words[0] is the most significant 32 bits). IPv4 addresses are
// canonicalized to v4-mapped form: words [0, 0, 0xFFFF, v4].
type IPKey struct {
	Words  [4]uint32
	Prefix int // 1..128
}

// IsV4 reports whether k is the v4-mapped encoding of an IPv4 address.
func (k IPKey) IsV4() bool {
	return k.Prefix >= 96 && k.Words[0] == 0 && k.Words[1] == 0 && k.Words[2] == 0xFFFF
}

// Bit returns the value of bit position p (1-indexed from the most
// significant bit of the 128-bit key, matching the "bit(ip, prefix+1)"
// language of spec.md §4.2).
func (k IPKey) Bit(p int) int {
	if p < 1 || p > 128 {
		return 0
	}
	idx := (p - 1) / 32
	off := 31 - (p-1)%32
	return int(k.Words[idx]>>uint(off)) & 1
}

// Masked returns k with all bits past prefix zeroed, enforcing the
// canonicalization invariant of spec.md §3.
func (k IPKey) Masked() IPKey {
	out := k
	for p := out.Prefix + 1; p <= 128; p++ {
		idx := (p - 1) / 32
		off := 31 - (p-1)%32
		out.Words[idx] &^= 1 << uint(off)
	}
	return out
}

// CommonPrefixLen returns the number of leading bits a and b share, capped at max.
func CommonPrefixLen(a, b IPKey, max int) int {
	for p := 1; p <= max; p++ {
		if a.Bit(p) != b.Bit(p) {
			return p - 1
		}
	}
	return max
}

// FromNetIP builds a canonical IPKey from a net.IP and a prefix length
// given in "natural" units (0..32 for v4, 0..128 for v6); the returned
// key's Prefix is in mapped (96..128) units for v4, matching spec.md §3.
func FromNetIP(ip net.IP, prefixLen int) (IPKey, error) {
	if v4 := ip.To4(); v4 != nil {
		if prefixLen < 0 || prefixLen > 32 {
			return IPKey{}, newErr("FromNetIP", KindInvalidName, "ipv4 prefix out of range")
		}
		var k IPKey
		k.Words[2] = 0xFFFF
		k.Words[3] = uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3])
		k.Prefix = prefixLen + 96
		return k.Masked(), nil
	}
	v6 := ip.To16()
	if v6 == nil {
		return IPKey{}, newErr("FromNetIP", KindInvalidName, "not an IP address")
	}
	if prefixLen < 0 || prefixLen > 128 {
		return IPKey{}, newErr("FromNetIP", KindInvalidName, "ipv6 prefix out of range")
	}
	var k IPKey
	for i := 0; i < 4; i++ {
		k.Words[i] = uint32(v6[i*4])<<24 | uint32(v6[i*4+1])<<16 | uint32(v6[i*4+2])<<8 | uint32(v6[i*4+3])
	}
	k.Prefix = prefixLen
	return k.Masked(), nil
}

// ToNetIP renders k back to a net.IP (16 bytes, v4-mapped for v4 keys)
// plus the prefix length in natural units.
func (k IPKey) ToNetIP() (net.IP, int) {
	buf := make(net.IP, 16)
	for i := 0; i < 4; i++ {
		w := k.Words[i]
		buf[i*4] = byte(w >> 24)
		buf[i*4+1] = byte(w >> 16)
		buf[i*4+2] = byte(w >> 8)
		buf[i*4+3] = byte(w)
	}
	if k.IsV4() {
		return buf, k.Prefix - 96
	}
	return buf, k.Prefix
}

// codec is the stateful half of the IP key <-> owner-name conversion:
// a small LRU of rendered owner names, since FindIP renders the owner
// name of the winning trigger on every hit.
type codec struct {
	cache *lru.Cache[string, string]
}

func newCodec() *codec {
	c, _ := lru.New[string, string](1024)
	return &codec{cache: c}
}

// DecodeOwnerLabels implements Direction A of spec.md §4.1: given the
// labels of an owner name with the zone origin and rpz-ip/rpz-nsip
// marker already stripped, decode (ip, prefix). Labels are in
// registration order, i.e. labels[0] is the leftmost (farthest from the
// root of the owner name, i.e. the prefix-length label).
func DecodeOwnerLabels(labels []string) (IPKey, error) {
	const op = "DecodeOwnerLabels"
	if len(labels) < 2 {
		return IPKey{}, newErr(op, KindInvalidName, "too few labels")
	}
	prefix, err := strconv.Atoi(labels[0])
	if err != nil || prefix < 1 || prefix > 128 {
		return IPKey{}, newErr(op, KindInvalidName, "bad prefix label")
	}

	rest := labels[1:]
	var key IPKey

	if len(rest) == 4 && !hasZZ(rest) {
		if prefix > 32 {
			return IPKey{}, newErr(op, KindInvalidName, "ipv4 prefix too large")
		}
		var octets [4]byte
		for i, lbl := range rest {
			n, err := strconv.Atoi(lbl)
			if err != nil || n < 0 || n > 255 {
				return IPKey{}, newErr(op, KindInvalidName, "bad ipv4 octet label")
			}
			octets[i] = byte(n)
		}
		// label order is prefix.octet0.octet1.octet2.octet3 where
		// octet0 is the LOW byte of the address.
		key.Words[2] = 0xFFFF
		key.Words[3] = uint32(octets[3])<<24 | uint32(octets[2])<<16 | uint32(octets[1])<<8 | uint32(octets[0])
		key.Prefix = prefix + 96
	} else {
		words, err := decodeV6Words(rest)
		if err != nil {
			return IPKey{}, wrapErr(op, KindInvalidName, err)
		}
		// words[0] is the low-order 16-bit word; assemble into the
		// 128-bit big-endian-word key (Words[0] most significant).
		for i := 0; i < 8; i++ {
			w := words[i]
			wordIdx := 3 - i/2
			if i%2 == 0 {
				key.Words[wordIdx] |= uint32(w)
			} else {
				key.Words[wordIdx] |= uint32(w) << 16
			}
		}
		key.Prefix = prefix
	}

	masked := key.Masked()
	if masked != key {
		return IPKey{}, newErr(op, KindInvalidName, "too small prefix length: nonzero bits past prefix")
	}

	// canonical round-trip check (§4.1 step 5): re-encoding masked
	// must reproduce byte-identical labels, catching non-canonical
	// forms like an explicit all-zero run instead of "zz".
	relabels := EncodeOwnerLabels(masked)
	if !labelsEqual(relabels, labels) {
		return IPKey{}, newErr(op, KindInvalidName, "not canonical")
	}

	return masked, nil
}

func hasZZ(labels []string) bool {
	for _, l := range labels {
		if strings.EqualFold(l, "zz") {
			return true
		}
	}
	return false
}

// decodeV6Words decodes the least-significant-first hex-word labels of
// an IPv6 owner name, expanding at most one "zz" run into enough zero
// words to total 8. Returns words with words[0] the low-order word.
func decodeV6Words(labels []string) ([16]uint16, error) {
	var words [16]uint16 // only first 8 used; sized generously to simplify math below
	zzSeen := false
	zzCount := 0
	nonZZCount := 0
	for _, l := range labels {
		if strings.EqualFold(l, "zz") {
			if zzSeen {
				return words, fmt.Errorf("more than one zz run")
			}
			zzSeen = true
			continue
		}
		nonZZCount++
	}
	if zzSeen {
		zzCount = 8 - nonZZCount
		if zzCount < 1 {
			return words, fmt.Errorf("zz run leaves no room")
		}
	} else if nonZZCount != 8 {
		return words, fmt.Errorf("wrong ipv6 label count")
	}

	out := make([]uint16, 0, 8)
	for _, l := range labels {
		if strings.EqualFold(l, "zz") {
			for i := 0; i < zzCount; i++ {
				out = append(out, 0)
			}
			continue
		}
		n, err := strconv.ParseUint(l, 16, 16)
		if err != nil {
			return words, fmt.Errorf("bad ipv6 word label %q", l)
		}
		// labels must have no leading zeros in canonical form, i.e.
		// re-rendering n in hex must equal l (case-insensitively).
		if !strings.EqualFold(strconv.FormatUint(n, 16), l) {
			return words, fmt.Errorf("ipv6 word label %q not canonical", l)
		}
		out = append(out, uint16(n))
	}
	if len(out) != 8 {
		return words, fmt.Errorf("wrong ipv6 word count after zz expansion")
	}
	var result [16]uint16
	copy(result[:8], out)
	return result, nil
}

// EncodeOwnerLabels implements Direction B of spec.md §4.1: render
// (ip, prefix) back to the label sequence, not including the zone
// origin or the rpz-ip/rpz-nsip marker.
func EncodeOwnerLabels(k IPKey) []string {
	if k.IsV4() {
		prefix := k.Prefix - 96
		w := k.Words[3]
		o0 := byte(w)
		o1 := byte(w >> 8)
		o2 := byte(w >> 16)
		o3 := byte(w >> 24)
		return []string{
			strconv.Itoa(prefix),
			strconv.Itoa(int(o0)),
			strconv.Itoa(int(o1)),
			strconv.Itoa(int(o2)),
			strconv.Itoa(int(o3)),
		}
	}

	// Assemble the 8 16-bit words, low-order word first.
	var words [8]uint16
	for i := 0; i < 8; i++ {
		wordIdx := 3 - i/2
		w := k.Words[wordIdx]
		if i%2 == 0 {
			words[i] = uint16(w)
		} else {
			words[i] = uint16(w >> 16)
		}
	}

	// Emit one label per word, low-order word first, substituting
	// "zz" for the first run of at least two consecutive zero words
	// (the run may not start at the final word position) — this is
	// ip2name()'s exact emission order, not merely "first zero word".
	labels := []string{strconv.Itoa(k.Prefix)}
	zzUsed := false
	i := 0
	for i < 8 {
		if words[i] != 0 || zzUsed || i >= 7 || words[i+1] != 0 {
			labels = append(labels, strconv.FormatUint(uint64(words[i]), 16))
			i++
			continue
		}
		zzUsed = true
		labels = append(labels, "zz")
		i += 2
		for i < 8 && words[i] == 0 {
			i++
		}
	}
	return labels
}

// RenderOwnerName renders the full owner name for k: the label
// sequence from EncodeOwnerLabels followed by marker and origin (both
// may be ""), cached by (k, marker, origin).
func (c *codec) RenderOwnerName(k IPKey, marker, origin string) string {
	cacheKey := fmt.Sprintf("%v/%d/%s/%s", k.Words, k.Prefix, marker, origin)
	if c.cache != nil {
		if v, ok := c.cache.Get(cacheKey); ok {
			return v
		}
	}
	labels := EncodeOwnerLabels(k)
	full := strings.Join(labels, ".")
	if marker != "" {
		full = full + "." + marker
	}
	if origin != "" {
		full = dns.Fqdn(full + "." + strings.TrimSuffix(origin, "."))
	}
	if c.cache != nil {
		c.cache.Add(cacheKey, full)
	}
	return full
}

func labelsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}
