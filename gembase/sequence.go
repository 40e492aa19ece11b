// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gembase

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
)

// Replicon is a contig of the renamed genome.
type Replicon struct {
	Name  string
	Index int
	Size  int
}

// copyReplicons copies the renamed genome read from r to w and returns its
// contigs sorted by name.
func copyReplicons(r io.Reader, w io.Writer, genome string) ([]Replicon, error) {
	var (
		reps []Replicon
		seen = make(map[string]bool)
		bw   = bufio.NewWriter(w)
		fw   = fasta.NewWriter(bw, 60)
		sc   = seqio.NewScanner(fasta.NewReader(r, linear.NewSeq("", nil, alphabet.DNA)))
	)
	for sc.Next() {
		s := sc.Seq().(*linear.Seq)
		idx, err := contigIndex(genome, s.ID)
		if err != nil {
			return nil, err
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("%w: replicon %q appears twice", ErrMalformed, s.ID)
		}
		seen[s.ID] = true
		reps = append(reps, Replicon{Name: s.ID, Index: idx, Size: s.Len()})
		s.Desc = ""
		_, err = fw.Write(s)
		if err != nil {
			return nil, err
		}
	}
	err := sc.Error()
	if err != nil {
		return nil, err
	}
	if len(reps) == 0 {
		return nil, fmt.Errorf("%w: no replicon", ErrMissingContig)
	}
	sort.Slice(reps, func(i, j int) bool { return reps[i].Name < reps[j].Name })
	return reps, bw.Flush()
}

// relabel writes the sequences read from r to w, named after the features
// they were called for. The annotator identifier of each sequence carries
// the locus number of its feature; sequences and features are walked in
// step, skipping features that have no sequence. When protein is true every
// CDS must have a protein whose length agrees with the CDS length.
func relabel(r io.Reader, w io.Writer, genome string, feats []*Feature, protein bool) (int, error) {
	var alpha alphabet.Alphabet = alphabet.DNA
	if protein {
		alpha = alphabet.Protein
	}
	var (
		bw = bufio.NewWriter(w)
		fw = fasta.NewWriter(bw, 60)
		sc = seqio.NewScanner(fasta.NewReader(r, linear.NewSeq("", nil, alpha)))

		i, n int
	)
	for sc.Next() {
		s := sc.Seq().(*linear.Seq)
		num, err := tagNumber(s.ID)
		if err != nil {
			return n, err
		}
		for ; i < len(feats) && feats[i].Number < num; i++ {
			if protein && feats[i].Type == "CDS" {
				return n, fmt.Errorf("%w: no protein for CDS %s", ErrCount, feats[i].Tag)
			}
		}
		if i == len(feats) {
			return n, fmt.Errorf("%w: %s is past the last feature", ErrOrder, s.ID)
		}
		f := feats[i]
		if f.Number != num {
			return n, fmt.Errorf("%w: %s has no feature, next feature is %s", ErrOrder, s.ID, f.Tag)
		}
		i++

		if protein {
			nt := f.Len()
			if nt%3 != 0 {
				return n, fmt.Errorf("%w: %s is %d nt long", ErrFrame, f.Tag, nt)
			}
			if aa := s.Len(); aa != nt/3 && aa != nt/3-1 {
				return n, fmt.Errorf("%w: %s: %d residues for %d nt", ErrMismatch, f.Tag, aa, nt)
			}
		}

		s.ID = f.Locus(genome)
		s.Desc = fmt.Sprintf("%d %s %s", s.Len(), na(f.Gene), f.Annotation())
		_, err = fw.Write(s)
		if err != nil {
			return n, err
		}
		n++
	}
	err := sc.Error()
	if err != nil {
		return n, err
	}
	if protein {
		for ; i < len(feats); i++ {
			if feats[i].Type == "CDS" {
				return n, fmt.Errorf("%w: no protein for CDS %s", ErrCount, feats[i].Tag)
			}
		}
	}
	return n, bw.Flush()
}
