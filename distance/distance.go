// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package distance holds pairwise genome distances and the greedy filter
// removing genomes too close to, or too far from, better ranked genomes.
package distance

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrMissingPair is returned when a distance was never computed.
	ErrMissingPair = errors.New("distance: pair never computed")

	// ErrNoMatrix is returned when no distance source is available.
	ErrNoMatrix = errors.New("distance: no distance matrix")
)

type pair struct{ i, j int }

// Matrix is a sparse upper triangular matrix of distances between n
// genomes identified by their rank. Only pairs i < j are stored.
type Matrix struct {
	n int
	d map[pair]float64
}

// NewMatrix returns an empty matrix for n genomes.
func NewMatrix(n int) *Matrix {
	return &Matrix{n: n, d: make(map[pair]float64)}
}

// Len returns the number of genomes of the matrix.
func (m *Matrix) Len() int { return m.n }

// Pairs returns the number of stored distances.
func (m *Matrix) Pairs() int { return len(m.d) }

// Set stores the distance between genomes i and j in the upper triangle.
// Self distances are ignored.
func (m *Matrix) Set(i, j int, v float64) {
	m.check(i)
	m.check(j)
	if i == j {
		return
	}
	if i > j {
		i, j = j, i
	}
	m.d[pair{i, j}] = v
}

// At returns the distance between genomes i and j. At panics unless i < j:
// the lower triangle is never populated, so asking for it is a programming
// error and not a zero distance.
func (m *Matrix) At(i, j int) (float64, error) {
	m.check(i)
	m.check(j)
	if i >= j {
		panic(fmt.Sprintf("distance: lower triangle access (%d, %d)", i, j))
	}
	v, ok := m.d[pair{i, j}]
	if !ok {
		return 0, fmt.Errorf("%w: (%d, %d)", ErrMissingPair, i, j)
	}
	return v, nil
}

func (m *Matrix) check(i int) {
	if i < 0 || i >= m.n {
		panic(fmt.Sprintf("distance: index %d out of range [0,%d)", i, m.n))
	}
}

// do calls fn for each stored pair in row-major order.
func (m *Matrix) do(fn func(i, j int, v float64) error) error {
	keys := make([]pair, 0, len(m.d))
	for k := range m.d {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		if keys[a].i != keys[b].i {
			return keys[a].i < keys[b].i
		}
		return keys[a].j < keys[b].j
	})
	for _, k := range keys {
		err := fn(k.i, k.j, m.d[k])
		if err != nil {
			return err
		}
	}
	return nil
}
