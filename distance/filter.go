// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package distance

// Discard records a genome removed by Filter.
type Discard struct {
	Genome    int // Rank of the discarded genome.
	Reference int // Rank of the genome it was compared with.
	Distance  float64
}

// Filter selects genomes whose distances to every better ranked kept genome
// fall within [min, max]. Genomes are identified by their rank in m, rank 0
// being the best genome.
//
// The best remaining genome is taken as reference and every remaining genome
// whose distance to it is outside the band is discarded. This is repeated
// until at most one genome remains to be used as reference. Kept ranks are
// returned in increasing order.
func Filter(m *Matrix, min, max float64) (keep []int, discarded []Discard, err error) {
	// work holds remaining ranks from worst to best so that the reference
	// is popped from the end.
	work := make([]int, m.Len())
	for i := range work {
		work[i] = m.Len() - 1 - i
	}
	removed := make([]bool, m.Len())
	for len(work) > 1 {
		ref := work[len(work)-1]
		work = work[:len(work)-1]

		remain := work[:0]
		for _, g := range work {
			// The reference is the best ranked remaining genome, so
			// ref < g and the upper triangle holds the pair.
			d, err := m.At(ref, g)
			if err != nil {
				return nil, nil, err
			}
			if d < min || d > max {
				removed[g] = true
				discarded = append(discarded, Discard{Genome: g, Reference: ref, Distance: d})
				continue
			}
			remain = append(remain, g)
		}
		work = remain
	}
	for i, r := range removed {
		if !r {
			keep = append(keep, i)
		}
	}
	return keep, discarded, nil
}
