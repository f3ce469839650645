package lhd

import "testing"

func TestCoarseningShiftFor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		optimal float64
		want    uint32
	}{
		{0, 0},
		{1, 0},
		{1.5, 1},
		{2, 1},
		{2.0001, 2},
		{4, 2},
		{5, 3},
		{1000, 10},
	}
	for _, c := range cases {
		if got := coarseningShiftFor(c.optimal); got != c.want {
			t.Errorf("coarseningShiftFor(%v) = %d, want %d", c.optimal, got, c.want)
		}
	}
}

func TestCompressClass_SumsAndZeroesTail(t *testing.T) {
	t.Parallel()

	const maxAge = 8
	cl := newClass(maxAge)
	for a := range cl.hits {
		cl.hits[a] = float64(a + 1)
		cl.evictions[a] = float64(a + 1) * 10
	}

	compressClass(&cl, 2, maxAge) // d=2: fold groups of 4

	// limit = 8>>2 = 2
	wantHits0 := 1.0 + 2 + 3 + 4
	wantHits1 := 5.0 + 6 + 7 + 8
	if cl.hits[0] != wantHits0 {
		t.Fatalf("hits[0] = %v, want %v", cl.hits[0], wantHits0)
	}
	if cl.hits[1] != wantHits1 {
		t.Fatalf("hits[1] = %v, want %v", cl.hits[1], wantHits1)
	}
	// bins [2, maxAge-1) must be zeroed; maxAge-1 (=7) is left untouched
	for a := 2; a < maxAge-1; a++ {
		if cl.hits[a] != 0 || cl.evictions[a] != 0 {
			t.Fatalf("hits[%d]/evictions[%d] must be zeroed, got %v/%v", a, a, cl.hits[a], cl.evictions[a])
		}
	}
	if cl.hits[maxAge-1] != float64(maxAge) {
		t.Fatalf("last bin must be left untouched, got %v", cl.hits[maxAge-1])
	}
}

func TestStretchClass_FoldsTailAndDividesMass(t *testing.T) {
	t.Parallel()

	const maxAge = 8
	cl := newClass(maxAge)
	for a := range cl.hits {
		cl.hits[a] = 8
		cl.evictions[a] = 0
	}

	preTotal := 0.0
	for _, v := range cl.hits {
		preTotal += v
	}

	stretchClass(&cl, 1, maxAge) // d=1: stretch by factor 2

	postTotal := 0.0
	for _, v := range cl.hits {
		postTotal += v
	}

	// Soft bound from spec.md §8 invariant 7: preserved within 10% for a
	// uniform starting distribution.
	if diff := postTotal - preTotal; diff > 0.1*preTotal || diff < -0.1*preTotal {
		t.Fatalf("mass not preserved within 10%%: pre=%v post=%v", preTotal, postTotal)
	}
}

func TestStretchClass_BinZeroEqualsBinZeroHalved(t *testing.T) {
	t.Parallel()

	const maxAge = 8
	cl := newClass(maxAge)
	cl.hits[0] = 10

	stretchClass(&cl, 1, maxAge)

	// a=0 -> src = 0>>1 = 0 -> hits[0] = hits[0]/2 (read before overwrite)
	if cl.hits[0] != 5 {
		t.Fatalf("hits[0] = %v, want 5", cl.hits[0])
	}
}
