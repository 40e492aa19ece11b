// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gembase

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Feature types handled specially by the table reader.
const (
	crisprType = "repeat_region"
	geneType   = "gene"
)

// tableReader reads a feature table made of blocks
//
//	>Feature <contig>
//	<start>\t<end>\t<type>
//	\t\t\t<qualifier>\t<value>
//
// and assigns border flags with a one feature lookbehind: whether a feature
// is the last of its contig is only known when the next one is read.
type tableReader struct {
	genome  string
	contigs map[string]int

	contig string
	index  int

	cur  *Feature // Feature whose qualifiers are being read.
	inf  int      // Number of inference qualifiers of cur.
	skip bool     // cur is not retained.

	prev    *Feature // Last retained feature, border flag pending.
	number  int
	out     []*Feature
	crisprs int
}

// ReadTable reads the feature table of the named genome from r. contigs
// holds the canonical names of the genome's replicons. It returns the
// retained features in table order and the number of CRISPR arrays seen.
func ReadTable(r io.Reader, genome string, contigs map[string]int) ([]*Feature, int, error) {
	t := &tableReader{genome: genome, contigs: contigs}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var line int
	for sc.Scan() {
		line++
		err := t.line(sc.Text())
		if err != nil {
			return nil, 0, fmt.Errorf("line %d: %w", line, err)
		}
	}
	err := sc.Err()
	if err != nil {
		return nil, 0, err
	}
	err = t.flush()
	if err != nil {
		return nil, 0, err
	}
	if t.prev != nil {
		// The last feature of the genome ends its contig.
		t.prev.Border = true
		t.out = append(t.out, t.prev)
	}
	return t.out, t.crisprs, nil
}

func (t *tableReader) line(l string) error {
	switch {
	case strings.TrimSpace(l) == "":
		return nil
	case strings.HasPrefix(l, ">"):
		err := t.flush()
		if err != nil {
			return err
		}
		f := strings.Fields(l[1:])
		if len(f) < 2 || f[0] != "Feature" {
			return fmt.Errorf("%w: contig header %q", ErrMalformed, l)
		}
		idx, ok := t.contigs[f[1]]
		if !ok {
			return fmt.Errorf("%w: %q", ErrMissingContig, f[1])
		}
		t.contig, t.index = f[1], idx
		return nil
	case strings.HasPrefix(l, "\t"):
		if t.cur == nil {
			return fmt.Errorf("%w: qualifier outside a feature: %q", ErrMalformed, l)
		}
		f := strings.SplitN(strings.TrimLeft(l, "\t"), "\t", 2)
		if len(f) < 2 {
			// Valueless qualifiers such as pseudo.
			return nil
		}
		t.qualifier(f[0], strings.TrimSpace(f[1]))
		return nil
	default:
		err := t.flush()
		if err != nil {
			return err
		}
		if t.contig == "" {
			return fmt.Errorf("%w: feature before any contig header: %q", ErrMalformed, l)
		}
		return t.start(l)
	}
}

func (t *tableReader) start(l string) error {
	f := strings.Split(l, "\t")
	if len(f) < 3 {
		return fmt.Errorf("%w: feature line %q", ErrMalformed, l)
	}
	start, err := position(f[0])
	if err != nil {
		return err
	}
	end, err := position(f[1])
	if err != nil {
		return err
	}
	feat := &Feature{
		Start:       start,
		End:         end,
		Strand:      Direct,
		Type:        strings.TrimSpace(f[2]),
		Contig:      t.contig,
		ContigIndex: t.index,
	}
	if start > end {
		feat.Strand = Complement
		feat.Start, feat.End = end, start
	}
	t.cur, t.inf = feat, 0
	t.skip = feat.Type == crisprType || feat.Type == geneType
	return nil
}

// position parses a coordinate, ignoring partial gene markers.
func position(s string) (int, error) {
	s = strings.Trim(strings.TrimSpace(s), "<>")
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: coordinate %q", ErrMalformed, s)
	}
	return n, nil
}

func (t *tableReader) qualifier(key, val string) {
	f := t.cur
	switch key {
	case "locus_tag":
		f.Tag = val
	case "gene":
		f.Gene = val
	case "product":
		f.Product = val
	case "EC_number":
		f.EC = val
	case "inference":
		t.inf++
		if t.inf == 2 {
			f.Inference = val
		}
	case "db_xref":
		if f.DBXref == "" {
			f.DBXref = val
		} else {
			f.DBXref += "," + val
		}
	}
}

// flush completes the feature being read.
func (t *tableReader) flush() error {
	f := t.cur
	if f == nil {
		return nil
	}
	t.cur = nil
	if t.skip {
		if f.Type == crisprType {
			t.crisprs++
		}
		return nil
	}

	n, err := tagNumber(f.Tag)
	if err != nil {
		return fmt.Errorf("feature %d-%d on %s: %w", f.Start, f.End, f.Contig, err)
	}
	if n <= t.number {
		return fmt.Errorf("%w: locus %s follows locus number %d", ErrOrder, f.Tag, t.number)
	}
	f.Number, t.number = n, n

	if t.prev == nil {
		f.Border = true
	} else {
		if f.Contig != t.prev.Contig {
			t.prev.Border = true
			f.Border = true
		}
		t.out = append(t.out, t.prev)
	}
	t.prev = f
	return nil
}
