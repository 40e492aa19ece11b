// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package contig

import (
	"bufio"
	"fmt"
	"io"

	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
)

// Rename copies the contigs read from r to w, replacing each header with
// the canonical contig name derived from genome, and returns the contig
// records in encounter order.
func Rename(r io.Reader, genome string, w io.Writer) ([]Record, error) {
	var (
		recs []Record
		seen = make(map[string]bool)
		bw   = bufio.NewWriter(w)
		fw   = fasta.NewWriter(bw, 60)
		sc   = seqio.NewScanner(newReader(r))
	)
	for sc.Next() {
		s := sc.Seq().(*linear.Seq)
		orig := header(s)
		if seen[orig] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateContig, orig)
		}
		seen[orig] = true

		rec := Record{
			Original: orig,
			Name:     CanonicalName(genome, len(recs)+1),
			Size:     s.Len(),
		}
		s.ID, s.Desc = rec.Name, ""
		_, err := fw.Write(s)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	err := sc.Error()
	if err != nil {
		return nil, err
	}
	err = bw.Flush()
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrEmptyGenome
	}
	return recs, nil
}

// RenameFile is Rename reading from the file at in and writing to a new
// file at out.
func RenameFile(in, genome, out string) ([]Record, error) {
	f, err := open(in)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	o, err := create(out)
	if err != nil {
		return nil, err
	}
	recs, err := Rename(f, genome, o)
	cerr := o.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("contig: rename %q: %w", in, err)
	}
	return recs, nil
}
