package lhd

// class is the statistical bucket described by spec.md §3: per-age
// decaying hit/eviction histograms and the hit-density curve derived
// from them.
type class struct {
	hits         []float64
	evictions    []float64
	hitDensities []float64

	totalHits      float64
	totalEvictions float64
}

func newClass(maxAge uint32) class {
	return class{
		hits:         make([]float64, maxAge),
		evictions:    make([]float64, maxAge),
		hitDensities: make([]float64, maxAge),
	}
}

// decayAndTotals applies the per-reconfiguration EWMA decay to every bin
// and refreshes totalHits/totalEvictions as the bin sums, per spec.md §4.3.
func (cl *class) decayAndTotals(decay float64) {
	var th, te float64
	for a := range cl.hits {
		cl.hits[a] *= decay
		cl.evictions[a] *= decay
		th += cl.hits[a]
		te += cl.evictions[a]
	}
	cl.totalHits = th
	cl.totalEvictions = te
}

// modelHitDensity recomputes hitDensities[0 .. MaxAge-2] via the reverse
// sweep in spec.md §4.3. hitDensities[MaxAge-1] is deliberately left
// untouched: the reference implementation never assigns it past its
// initial cold-start seed, and this module preserves that quirk rather
// than "fixing" it, to stay bit-for-bit aligned with the reference.
func (cl *class) modelHitDensity() {
	n := len(cl.hits)
	if n == 0 {
		return
	}
	h := cl.hits[n-1]
	e := cl.hits[n-1] + cl.evictions[n-1]
	l := e
	for a := n - 2; a >= 0; a-- {
		h += cl.hits[a]
		e += cl.hits[a] + cl.evictions[a]
		l += e
		if e > densityEpsilon {
			cl.hitDensities[a] = h / l
		} else {
			cl.hitDensities[a] = 0
		}
	}
}

// seedColdStart fills hitDensities with the reference implementation's
// GDSF-like starting gradient, (classIdx+1)/(age+1), so that the very
// first rank calls — before any reconfiguration has run — have a
// sane, size- and class-aware order instead of comparing all zeros.
// See SPEC_FULL.md §11.
func (cl *class) seedColdStart(classIdx uint32) {
	for a := range cl.hitDensities {
		cl.hitDensities[a] = float64(classIdx+1) / float64(a+1)
	}
}
