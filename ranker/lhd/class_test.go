package lhd

import "testing"

func TestClass_DecayMultipliesEveryBin(t *testing.T) {
	t.Parallel()

	cl := newClass(8)
	for a := range cl.hits {
		cl.hits[a] = 10
		cl.evictions[a] = 4
	}

	cl.decayAndTotals(0.9)

	for a := range cl.hits {
		if got, want := cl.hits[a], 9.0; got != want {
			t.Fatalf("hits[%d] = %v, want %v", a, got, want)
		}
		if got, want := cl.evictions[a], 3.6; got != want {
			t.Fatalf("evictions[%d] = %v, want %v", a, got, want)
		}
	}
	if got, want := cl.totalHits, 9.0*8; got != want {
		t.Fatalf("totalHits = %v, want %v", got, want)
	}
	// totalEvictions is the float64 running sum of the eight decayed bins,
	// which differs from the exact constant 3.6*8 in the last bit.
	var wantEvictions float64
	for range cl.evictions {
		wantEvictions += 3.6
	}
	if got, want := cl.totalEvictions, wantEvictions; got != want {
		t.Fatalf("totalEvictions = %v, want %v", got, want)
	}
}

func TestClass_DecayWithNoActivityStaysZero(t *testing.T) {
	t.Parallel()

	cl := newClass(8)
	cl.decayAndTotals(0.9)
	for a := range cl.hits {
		if cl.hits[a] != 0 || cl.evictions[a] != 0 {
			t.Fatalf("bin %d should remain 0, got hits=%v evictions=%v", a, cl.hits[a], cl.evictions[a])
		}
	}
}

func TestClass_MassConservationAfterDecay(t *testing.T) {
	t.Parallel()

	cl := newClass(16)
	for a := range cl.hits {
		cl.hits[a] = float64(a)
		cl.evictions[a] = float64(a) * 2
	}
	cl.decayAndTotals(0.9)

	var sh, se float64
	for a := range cl.hits {
		sh += cl.hits[a]
		se += cl.evictions[a]
	}
	const tol = 1e-9
	if diff := sh - cl.totalHits; diff > tol || diff < -tol {
		t.Fatalf("totalHits %v != sum of bins %v", cl.totalHits, sh)
	}
	if diff := se - cl.totalEvictions; diff > tol || diff < -tol {
		t.Fatalf("totalEvictions %v != sum of bins %v", cl.totalEvictions, se)
	}
}

func TestClass_DensityBoundedZeroToOne(t *testing.T) {
	t.Parallel()

	cl := newClass(32)
	for a := range cl.hits {
		cl.hits[a] = float64((a%5)+1) * 3
		cl.evictions[a] = float64((a%3)+1) * 2
	}
	cl.modelHitDensity()

	n := len(cl.hitDensities)
	for a := 0; a < n-1; a++ { // hitDensities[n-1] is intentionally never touched
		d := cl.hitDensities[a]
		if d < 0 || d > 1 {
			t.Fatalf("hitDensities[%d] = %v out of [0,1]", a, d)
		}
	}
}

func TestClass_DensityZeroWithNoEvents(t *testing.T) {
	t.Parallel()

	cl := newClass(8)
	cl.modelHitDensity()
	for a := 0; a < len(cl.hitDensities)-1; a++ {
		if cl.hitDensities[a] != 0 {
			t.Fatalf("hitDensities[%d] = %v, want 0 with no hits/evictions", a, cl.hitDensities[a])
		}
	}
}

func TestClass_LastBinUntouchedByModelHitDensity(t *testing.T) {
	t.Parallel()

	cl := newClass(8)
	cl.seedColdStart(2)
	before := cl.hitDensities[len(cl.hitDensities)-1]

	cl.hits[len(cl.hits)-1] = 100
	cl.evictions[len(cl.evictions)-1] = 5
	cl.modelHitDensity()

	if got := cl.hitDensities[len(cl.hitDensities)-1]; got != before {
		t.Fatalf("hitDensities[MaxAge-1] changed from %v to %v; it must stay frozen at its cold-start value", before, got)
	}
}

func TestClass_SeedColdStartGDSFGradient(t *testing.T) {
	t.Parallel()

	cl := newClass(4)
	cl.seedColdStart(3) // classIdx 3 -> (3+1)/(a+1)
	want := []float64{4, 2, 4.0 / 3.0, 1}
	for a, w := range want {
		if cl.hitDensities[a] != w {
			t.Fatalf("hitDensities[%d] = %v, want %v", a, cl.hitDensities[a], w)
		}
	}
}
