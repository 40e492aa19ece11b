// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package contig provides splitting, renaming and size statistics of the
// contigs of a draft genome assembly.
package contig

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	"github.com/shenwei356/xopen"
)

var (
	// ErrEmptyGenome is returned when an input holds no sequence letters.
	ErrEmptyGenome = errors.New("contig: no sequence found")

	// ErrDuplicateContig is returned when two contigs of a genome share
	// the same header.
	ErrDuplicateContig = errors.New("contig: duplicate contig header")
)

// Record is a contig of a renamed genome.
type Record struct {
	Original string // Header in the input file, without '>'.
	Name     string // Canonical header.
	Size     int
}

// Fragment is a named contig size in encounter order.
type Fragment struct {
	Name string
	Size int
}

// Sizes is an ordered mapping of contig names to their lengths.
type Sizes []Fragment

// Lengths returns the sizes in encounter order.
func (s Sizes) Lengths() []int {
	l := make([]int, len(s))
	for i, f := range s {
		l[i] = f.Size
	}
	return l
}

// CanonicalName returns the canonical header of the i'th (1-based) contig
// of the genome with the given canonical name.
func CanonicalName(genome string, i int) string {
	return fmt.Sprintf("%s.%04d", genome, i)
}

// header reconstitutes the full header line of a sequence read by a
// fasta.Reader, which splits it into ID and description.
func header(s *linear.Seq) string {
	if s.Desc == "" {
		return s.ID
	}
	return s.ID + " " + s.Desc
}

func newReader(r io.Reader) *fasta.Reader {
	return fasta.NewReader(r, linear.NewSeq("", nil, alphabet.DNA))
}

func open(path string) (*xopen.Reader, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("contig: open %q: %w", path, err)
	}
	if fi.Size() == 0 {
		return nil, fmt.Errorf("contig: %q: %w", path, ErrEmptyGenome)
	}
	f, err := xopen.Ropen(path)
	if err != nil {
		return nil, fmt.Errorf("contig: open %q: %w", path, err)
	}
	return f, nil
}

func create(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("contig: create %q: %w", path, err)
	}
	return f, nil
}
