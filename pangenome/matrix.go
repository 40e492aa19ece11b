// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pangenome

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SortGenomes sorts canonical genome names by species then strain number.
func SortGenomes(names []string) {
	key := func(n string) (string, int, bool) {
		f := strings.Split(n, ".")
		if len(f) != 3 {
			return n, 0, false
		}
		strain, err := strconv.Atoi(f[2])
		if err != nil {
			return n, 0, false
		}
		return f[0], strain, true
	}
	sort.SliceStable(names, func(i, j int) bool {
		si, ni, oki := key(names[i])
		sj, nj, okj := key(names[j])
		if oki != okj {
			return oki
		}
		if si != sj {
			return si < sj
		}
		if ni != nj {
			return ni < nj
		}
		return names[i] < names[j]
	})
}

// Genomes returns the sorted names of the genomes contributing to p.
func Genomes(p *Partition) []string {
	seen := make(map[string]bool)
	var names []string
	for _, f := range p.Families {
		for _, m := range f {
			g, ok := GenomeOf(m)
			if ok && !seen[g] {
				seen[g] = true
				names = append(names, g)
			}
		}
	}
	SortGenomes(names)
	return names
}

// Matrices holds the per-genome member counts of each family.
type Matrices struct {
	Genomes []string
	// Counts has one row per family and one column per genome.
	Counts *mat.Dense

	members []int
}

// Index counts the members each genome contributes to each family of p.
// Genomes are taken in the given order; if genomes is nil the genomes of p
// are used, sorted by species and strain.
func Index(p *Partition, genomes []string) (*Matrices, error) {
	if genomes == nil {
		genomes = Genomes(p)
	}
	if p.Len() == 0 || len(genomes) == 0 {
		return nil, fmt.Errorf("pangenome: %d families over %d genomes", p.Len(), len(genomes))
	}
	col := make(map[string]int, len(genomes))
	for j, g := range genomes {
		col[g] = j
	}
	m := &Matrices{
		Genomes: genomes,
		Counts:  mat.NewDense(p.Len(), len(genomes), nil),
		members: make([]int, p.Len()),
	}
	for i, f := range p.Families {
		m.members[i] = len(f)
		for _, id := range f {
			g, ok := GenomeOf(id)
			j, known := col[g]
			if !ok || !known {
				return nil, fmt.Errorf("%w: %q in family %d", ErrUnknownGenome, id, i+1)
			}
			m.Counts.Set(i, j, m.Counts.At(i, j)+1)
		}
	}
	return m, nil
}

// Presence returns the family by genome presence matrix.
func (m *Matrices) Presence() *mat.Dense {
	var p mat.Dense
	p.Apply(func(_, _ int, v float64) float64 {
		if v > 0 {
			return 1
		}
		return 0
	}, m.Counts)
	return &p
}

// WriteMatrix writes a family by genome matrix as CSV with one row per
// genome. The header row holds the family numbers.
func WriteMatrix(w io.Writer, genomes []string, fam mat.Matrix) error {
	t := fam.T()
	r, c := t.Dims()
	if r != len(genomes) {
		return fmt.Errorf("pangenome: %d genome names for %d rows", len(genomes), r)
	}
	cw := csv.NewWriter(w)
	rec := make([]string, c+1)
	rec[0] = "fam_num"
	for j := 0; j < c; j++ {
		rec[j+1] = strconv.Itoa(j + 1)
	}
	err := cw.Write(rec)
	if err != nil {
		return err
	}
	for i := 0; i < r; i++ {
		rec[0] = genomes[i]
		for j := 0; j < c; j++ {
			rec[j+1] = strconv.FormatFloat(t.At(i, j), 'f', -1, 64)
		}
		err = cw.Write(rec)
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Summary describes the spread of a family over the genomes.
type Summary struct {
	Family  int
	Members int
	Sum     int // Sum of the counts over genomes.
	Present int // Number of genomes with at least one member.
	Absent  int
	Mono    int // Number of genomes with exactly one member.
	Multi   int // Number of genomes with more than one member.
	Max     int // Largest count in a genome.
}

// Summarize returns the summary of each family of m. It returns
// ErrInconsistent if the counts of a family do not match its members.
func (m *Matrices) Summarize() ([]Summary, error) {
	rows, cols := m.Counts.Dims()
	pres := m.Presence()
	sums := make([]Summary, rows)
	for i := range sums {
		counts := m.Counts.RawRowView(i)
		s := Summary{
			Family:  i + 1,
			Members: m.members[i],
			Sum:     int(floats.Sum(counts)),
			Present: int(floats.Sum(pres.RawRowView(i))),
			Max:     int(floats.Max(counts)),
		}
		for _, v := range counts {
			switch {
			case v == 0:
				s.Absent++
			case v == 1:
				s.Mono++
			default:
				s.Multi++
			}
		}
		if s.Sum != s.Members || s.Absent+s.Mono+s.Multi != cols || s.Present != s.Mono+s.Multi {
			return nil, fmt.Errorf("%w: family %d: %+v over %d genomes", ErrInconsistent, s.Family, s, cols)
		}
		sums[i] = s
	}
	return sums, nil
}

// WriteSummary writes family summaries as CSV.
func WriteSummary(w io.Writer, sums []Summary) error {
	cw := csv.NewWriter(w)
	err := cw.Write([]string{"num_fam", "nb_members", "sum_quali", "nb_0", "nb_mono", "nb_multi", "sum_0-mono-multi", "max_multi"})
	if err != nil {
		return err
	}
	for _, s := range sums {
		err = cw.Write([]string{
			strconv.Itoa(s.Family),
			strconv.Itoa(s.Members),
			strconv.Itoa(s.Present),
			strconv.Itoa(s.Absent),
			strconv.Itoa(s.Mono),
			strconv.Itoa(s.Multi),
			strconv.Itoa(s.Absent + s.Mono + s.Multi),
			strconv.Itoa(s.Max),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
