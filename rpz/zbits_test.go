/*
 * Copyright (c) DNS TAPIR
 */

package rpz

import "testing"

func TestZBitsSetOps(t *testing.T) {
	a := ZBit(0).Union(ZBit(2))
	b := ZBit(2).Union(ZBit(3))

	t.Run("union", func(t *testing.T) {
		got := a.Union(b)
		want := ZBit(0).Union(ZBit(2)).Union(ZBit(3))
		if got != want {
			t.Errorf("Union() = %b; want %b", got, want)
		}
	})

	t.Run("intersect", func(t *testing.T) {
		if got := a.Intersect(b); got != ZBit(2) {
			t.Errorf("Intersect() = %b; want %b", got, ZBit(2))
		}
	})

	t.Run("without", func(t *testing.T) {
		if got := a.Without(b); got != ZBit(0) {
			t.Errorf("Without() = %b; want %b", got, ZBit(0))
		}
	})

	t.Run("test", func(t *testing.T) {
		if !a.Test(0) || a.Test(1) {
			t.Errorf("Test() disagrees with membership of %b", a)
		}
	})
}

func TestZBitsLowest(t *testing.T) {
	cases := []struct {
		name string
		bits ZBits
		want int
		ok   bool
	}{
		{"empty", 0, 0, false},
		{"single", ZBit(5), 5, true},
		{"picks lowest ordinal", ZBit(3).Union(ZBit(7)), 3, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := c.bits.Lowest()
			if ok != c.ok || (ok && got != c.want) {
				t.Errorf("Lowest() = (%d, %t); want (%d, %t)", got, ok, c.want, c.ok)
			}
		})
	}
}

func TestMaskBelow(t *testing.T) {
	cases := []struct {
		z    int
		want ZBits
	}{
		{0, 0},
		{1, ZBit(0)},
		{3, ZBit(0).Union(ZBit(1)).Union(ZBit(2))},
		{Zmax, AllZBits},
	}
	for _, c := range cases {
		if got := MaskBelow(c.z); got != c.want {
			t.Errorf("MaskBelow(%d) = %b; want %b", c.z, got, c.want)
		}
	}
}

func TestMaskBelowOrEqualLowest(t *testing.T) {
	live := ZBit(0).Union(ZBit(1)).Union(ZBit(2)).Union(ZBit(3))
	found := ZBit(1).Union(ZBit(3))

	got := MaskBelowOrEqualLowest(live, found)
	want := ZBit(0).Union(ZBit(1))
	if got != want {
		t.Errorf("MaskBelowOrEqualLowest() = %b; want %b", got, want)
	}

	t.Run("no overlap keeps live unchanged", func(t *testing.T) {
		got := MaskBelowOrEqualLowest(live, ZBit(10))
		if got != live {
			t.Errorf("MaskBelowOrEqualLowest() = %b; want %b (unchanged)", got, live)
		}
	})
}

func TestPairOps(t *testing.T) {
	p1 := MakePair(0, CategoryDirect)
	p2 := MakePair(1, CategoryNS)

	u := p1.Union(p2)
	if u.D != ZBit(0) || u.NS != ZBit(1) {
		t.Errorf("Union() = %+v; want D=zone0 NS=zone1", u)
	}

	if !p1.Intersect(p2).IsZero() {
		t.Errorf("disjoint pairs intersected non-zero")
	}

	w := u.Without(p1)
	if w.D != 0 || w.NS != ZBit(1) {
		t.Errorf("Without() = %+v; want D=0 NS=zone1", w)
	}
}
