// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package contig

import (
	"bytes"
	"fmt"
	"io"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
)

// Splitter cuts contigs at stretches of N and records their sizes.
//
// A Splitter may be fed several inputs, in which case they are treated as
// the consecutive parts of a single genome: header uniqueness and fragment
// numbering span all parts.
type Splitter struct {
	// NBN is the minimum length of a stretch of N at which contigs are cut.
	// If NBN is zero contigs are kept whole.
	NBN int

	w     *fasta.Writer
	seen  map[string]bool
	sizes Sizes
	num   int
	bases int
}

// NewSplitter returns a Splitter cutting at nbn N and writing the resulting
// contigs to w. If w is nil no sequence is written.
func NewSplitter(nbn int, w io.Writer) *Splitter {
	s := &Splitter{NBN: nbn, seen: make(map[string]bool)}
	if w != nil {
		s.w = fasta.NewWriter(w, 60)
	}
	return s
}

// Read consumes a multi-FASTA stream.
func (s *Splitter) Read(r io.Reader) error {
	sc := seqio.NewScanner(newReader(r))
	for sc.Next() {
		err := s.add(sc.Seq().(*linear.Seq))
		if err != nil {
			return err
		}
	}
	return sc.Error()
}

// ReadFile consumes the multi-FASTA file at path, which may be gzipped.
func (s *Splitter) ReadFile(path string) error {
	f, err := open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	err = s.Read(f)
	if err != nil {
		return fmt.Errorf("contig: %q: %w", path, err)
	}
	return nil
}

// Sizes returns the fragment sizes in encounter order. It returns
// ErrEmptyGenome if no sequence letter has been read.
func (s *Splitter) Sizes() (Sizes, error) {
	if s.bases == 0 {
		return nil, ErrEmptyGenome
	}
	return s.sizes, nil
}

func (s *Splitter) add(sq *linear.Seq) error {
	name := header(sq)
	if s.seen[name] {
		return fmt.Errorf("%w: %q", ErrDuplicateContig, name)
	}
	s.seen[name] = true

	b := bytes.ToUpper(alphabet.LettersToBytes(sq.Seq))
	s.bases += len(b)
	if s.NBN <= 0 {
		if len(b) == 0 {
			return nil
		}
		return s.emit(name, b)
	}
	for _, frag := range splitN(b, s.NBN) {
		s.num++
		err := s.emit(fmt.Sprintf("%s_%d", name, s.num), frag)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Splitter) emit(name string, b []byte) error {
	s.sizes = append(s.sizes, Fragment{Name: name, Size: len(b)})
	if s.w == nil {
		return nil
	}
	_, err := s.w.Write(linear.NewSeq(name, alphabet.BytesToLetters(b), alphabet.DNA))
	return err
}

// splitN returns the non-empty pieces of b separated by runs of at least
// n 'N' bytes.
func splitN(b []byte, n int) [][]byte {
	var (
		frags [][]byte
		start int
	)
	for i := 0; i < len(b); {
		if b[i] != 'N' {
			i++
			continue
		}
		j := i
		for j < len(b) && b[j] == 'N' {
			j++
		}
		if j-i >= n {
			if i > start {
				frags = append(frags, b[start:i])
			}
			start = j
		}
		i = j
	}
	if start < len(b) {
		frags = append(frags, b[start:])
	}
	return frags
}

// Split reads the genome made of the given files, cutting contigs at runs of
// at least nbn N, and writes the resulting contigs to w if w is not nil.
func Split(paths []string, nbn int, w io.Writer) (Sizes, error) {
	s := NewSplitter(nbn, w)
	for _, p := range paths {
		err := s.ReadFile(p)
		if err != nil {
			return nil, err
		}
	}
	sizes, err := s.Sizes()
	if err != nil {
		return nil, fmt.Errorf("contig: %v: %w", paths, err)
	}
	return sizes, nil
}
