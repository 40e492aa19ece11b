// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package contig

import "sort"

// Stats holds the assembly metrics used to rank genomes.
type Stats struct {
	Size    int // Total length of all contigs.
	Contigs int
	L90     int // Minimum number of contigs covering 90% of Size.
}

// Summarize returns the assembly metrics of the given contigs.
func Summarize(s Sizes) Stats {
	l := s.Lengths()
	st := Stats{Contigs: len(l), L90: L90(l)}
	for _, n := range l {
		st.Size += n
	}
	return st
}

// L90 returns the smallest number of the largest contigs whose cumulative
// length reaches 90% of the total length. It returns 0 for an empty or
// zero-length assembly. The order of lens is not altered.
func L90(lens []int) int {
	if len(lens) == 0 {
		return 0
	}
	sorted := make([]int, len(lens))
	copy(sorted, lens)
	// Sort in descending order of sequence length.
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))

	var size int
	for _, n := range sorted {
		size += n
	}
	if size == 0 {
		return 0
	}
	// csum stores the cumulative sequence length.
	var csum int
	for i, n := range sorted {
		csum += n
		if 10*csum >= 9*size {
			return i + 1
		}
	}
	panic("cannot reach")
}
