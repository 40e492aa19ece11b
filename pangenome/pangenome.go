// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pangenome builds gene families from the output of a protein
// clustering tool and derives per-genome presence and count matrices.
package pangenome

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

var (
	// ErrDuplicateMember is returned when a locus is placed in two families.
	ErrDuplicateMember = errors.New("pangenome: locus in more than one family")

	// ErrBadFamilies is returned for a family file that does not hold
	// families 1 to n.
	ErrBadFamilies = errors.New("pangenome: invalid family file")

	// ErrUnknownGenome is returned when a family member belongs to a genome
	// absent from the genome ordering.
	ErrUnknownGenome = errors.New("pangenome: member of unknown genome")

	// ErrInconsistent is returned when family counts do not add up.
	ErrInconsistent = errors.New("pangenome: inconsistent family counts")
)

// Partition is a set of gene families. Family n is Families[n-1].
type Partition struct {
	Families [][]string
}

// Len returns the number of families.
func (p *Partition) Len() int { return len(p.Families) }

// Family returns the members of family num.
func (p *Partition) Family(num int) []string { return p.Families[num-1] }

// Members returns the total number of loci in the partition.
func (p *Partition) Members() int {
	var n int
	for _, f := range p.Families {
		n += len(f)
	}
	return n
}

// newPartition sorts the members of each family.
func newPartition(fams [][]string) *Partition {
	for _, f := range fams {
		SortLoci(f)
	}
	return &Partition{Families: fams}
}

// ReadPairs reads a two column representative/member stream. Families are
// the connected components of the graph joining each member to its
// representative, numbered in order of first appearance of their loci.
func ReadPairs(r io.Reader) (*Partition, error) {
	var (
		ids   = make(map[string]int64)
		names []string
		g     = simple.NewUndirectedGraph()
	)
	node := func(name string) simple.Node {
		id, ok := ids[name]
		if !ok {
			id = int64(len(names))
			ids[name] = id
			names = append(names, name)
			g.AddNode(simple.Node(id))
		}
		return simple.Node(id)
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var line int
	for sc.Scan() {
		line++
		f := strings.Fields(sc.Text())
		if len(f) == 0 {
			continue
		}
		if len(f) != 2 {
			return nil, fmt.Errorf("pangenome: line %d: expected 2 columns, got %d", line, len(f))
		}
		rep, mem := node(f[0]), node(f[1])
		if rep != mem {
			g.SetEdge(simple.Edge{F: rep, T: mem})
		}
	}
	err := sc.Err()
	if err != nil {
		return nil, err
	}

	type component struct {
		first int64
		nodes []graph.Node
	}
	var comps []component
	for _, c := range topo.ConnectedComponents(g) {
		first := c[0].ID()
		for _, n := range c[1:] {
			if n.ID() < first {
				first = n.ID()
			}
		}
		comps = append(comps, component{first: first, nodes: c})
	}
	sort.Slice(comps, func(i, j int) bool { return comps[i].first < comps[j].first })

	fams := make([][]string, len(comps))
	for i, c := range comps {
		fams[i] = make([]string, len(c.nodes))
		for j, n := range c.nodes {
			fams[i][j] = names[n.ID()]
		}
	}
	return newPartition(fams), nil
}

// ReadClusters reads a stream with one family per line, the members
// separated by white space. Families are numbered in line order.
func ReadClusters(r io.Reader) (*Partition, error) {
	var (
		fams [][]string
		seen = make(map[string]bool)
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<24)
	for sc.Scan() {
		f := strings.Fields(sc.Text())
		if len(f) == 0 {
			continue
		}
		for _, m := range f {
			if seen[m] {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateMember, m)
			}
			seen[m] = true
		}
		fams = append(fams, f)
	}
	err := sc.Err()
	if err != nil {
		return nil, err
	}
	return newPartition(fams), nil
}

// WriteFamilies writes p as one line per family: the family number followed
// by its members, separated by spaces.
func WriteFamilies(w io.Writer, p *Partition) error {
	bw := bufio.NewWriter(w)
	for i, f := range p.Families {
		_, err := fmt.Fprintf(bw, "%d %s\n", i+1, strings.Join(f, " "))
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadFamilies reads a family file written by WriteFamilies.
func ReadFamilies(r io.Reader) (*Partition, error) {
	byNum := make(map[int][]string)
	seen := make(map[string]bool)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<24)
	var last int
	for sc.Scan() {
		f := strings.Fields(sc.Text())
		if len(f) == 0 {
			continue
		}
		num, err := strconv.Atoi(f[0])
		if err != nil || num < 1 {
			return nil, fmt.Errorf("%w: bad family number %q", ErrBadFamilies, f[0])
		}
		if _, ok := byNum[num]; ok {
			return nil, fmt.Errorf("%w: family %d appears twice", ErrBadFamilies, num)
		}
		if len(f) == 1 {
			return nil, fmt.Errorf("%w: family %d is empty", ErrBadFamilies, num)
		}
		for _, m := range f[1:] {
			if seen[m] {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateMember, m)
			}
			seen[m] = true
		}
		byNum[num] = f[1:]
		if num > last {
			last = num
		}
	}
	err := sc.Err()
	if err != nil {
		return nil, err
	}
	if last != len(byNum) {
		return nil, fmt.Errorf("%w: %d families numbered up to %d", ErrBadFamilies, len(byNum), last)
	}
	fams := make([][]string, last)
	for num, m := range byNum {
		fams[num-1] = m
	}
	return &Partition{Families: fams}, nil
}

var locusPattern = regexp.MustCompile(`^([A-Za-z0-9]{4})\.([A-Za-z0-9]{4})\.([0-9]+)\.([0-9]+)[bi]_([0-9]+)$`)

// Locus is a parsed gembase locus identifier.
type Locus struct {
	Species string
	Date    string
	Strain  int
	Contig  int
	Number  int
}

// ParseLocus parses a locus identifier of the form
// <species>.<date>.<strain>.<contig><b|i>_<number>.
func ParseLocus(id string) (Locus, bool) {
	m := locusPattern.FindStringSubmatch(id)
	if m == nil {
		return Locus{}, false
	}
	l := Locus{Species: m[1], Date: m[2]}
	var err [3]error
	l.Strain, err[0] = strconv.Atoi(m[3])
	l.Contig, err[1] = strconv.Atoi(m[4])
	l.Number, err[2] = strconv.Atoi(m[5])
	for _, e := range err {
		if e != nil {
			return Locus{}, false
		}
	}
	return l, true
}

// Genome returns the canonical name of the genome of l.
func (l Locus) Genome() string {
	return fmt.Sprintf("%s.%s.%05d", l.Species, l.Date, l.Strain)
}

// GenomeOf returns the genome name prefix of a locus identifier.
func GenomeOf(id string) (string, bool) {
	l, ok := ParseLocus(id)
	if ok {
		return l.Genome(), true
	}
	// Fall back to the first three dot-separated fields.
	f := strings.SplitN(id, ".", 4)
	if len(f) < 4 {
		return "", false
	}
	return strings.Join(f[:3], "."), true
}

func lessLocus(a, b string) bool {
	la, oka := ParseLocus(a)
	lb, okb := ParseLocus(b)
	switch {
	case oka && !okb:
		return true
	case !oka && okb:
		return false
	case !oka && !okb:
		return a < b
	}
	if la.Species != lb.Species {
		return la.Species < lb.Species
	}
	if la.Strain != lb.Strain {
		return la.Strain < lb.Strain
	}
	if la.Contig != lb.Contig {
		return la.Contig < lb.Contig
	}
	if la.Number != lb.Number {
		return la.Number < lb.Number
	}
	return a < b
}

// SortLoci sorts locus identifiers by species, strain, contig and locus
// number. Identifiers that cannot be parsed sort lexically after the others.
func SortLoci(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool { return lessLocus(ids[i], ids[j]) })
}
