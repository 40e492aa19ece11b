// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gembase

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Strand is the coding strand of a feature.
type Strand byte

const (
	Direct     Strand = 'D'
	Complement Strand = 'C'
)

// Feature is a gene, CDS or RNA called by the annotator.
type Feature struct {
	Start, End int // 1-based, Start <= End.
	Strand     Strand
	Type       string

	// Number is the locus number, increasing along the genome.
	Number int
	// Tag is the annotator's own locus tag.
	Tag string

	Contig      string
	ContigIndex int
	// Border is set for the first and last features of a contig.
	Border bool

	Gene      string
	Product   string
	EC        string
	Inference string // Secondary inference.
	DBXref    string
}

// Locus returns the gembase locus identifier of f in the named genome.
func (f *Feature) Locus(genome string) string {
	pos := 'i'
	if f.Border {
		pos = 'b'
	}
	return fmt.Sprintf("%s.%04d%c_%05d", genome, f.ContigIndex, pos, f.Number)
}

// Len returns the length of f in nucleotides.
func (f *Feature) Len() int { return f.End - f.Start + 1 }

// Annotation returns the functional annotation block of f.
func (f *Feature) Annotation() string {
	return fmt.Sprintf("| %s | %s | %s | %s", na(f.Product), na(f.EC), na(f.Inference), na(f.DBXref))
}

// lstLine returns the feature list line of f without the trailing newline.
func (f *Feature) lstLine(genome string) string {
	return fmt.Sprintf("%d\t%d\t%c\t%s\t%s\t%s\t%s",
		f.Start, f.End, f.Strand, f.Type, f.Locus(genome), na(f.Gene), f.Annotation())
}

func na(s string) string {
	if s == "" {
		return NotAvailable
	}
	return s
}

var tagPattern = regexp.MustCompile(`^(.+)_([0-9]+)$`)

// tagNumber returns the numeric suffix of an annotator identifier of the
// form <name>_<digits>.
func tagNumber(tag string) (int, error) {
	m := tagPattern.FindStringSubmatch(tag)
	if m == nil {
		return 0, fmt.Errorf("%w: %q is not <name>_<number>", ErrMalformed, tag)
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrMalformed, tag, err)
	}
	return n, nil
}

// contigIndex returns the index of a canonical contig name of genome.
func contigIndex(genome, name string) (int, error) {
	suffix, ok := strings.CutPrefix(name, genome+".")
	if !ok || suffix == "" {
		return 0, fmt.Errorf("%w: contig %q is not named after %s", ErrMalformed, name, genome)
	}
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: contig %q has no index", ErrMalformed, name)
	}
	return n, nil
}
