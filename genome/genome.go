// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package genome handles the genomes of a run from their listing to their
// canonical gembase names: quality metrics, retention and strain numbering.
package genome

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/biogo/gembase/contig"
)

var (
	// ErrBadCode is returned for a species or date code that is not
	// made of exactly 4 alphanumeric characters.
	ErrBadCode = errors.New("genome: code must be 4 alphanumeric characters")

	// ErrThreshold is returned for a genome rejected by the quality
	// thresholds.
	ErrThreshold = errors.New("genome: quality below thresholds")
)

var codePattern = regexp.MustCompile(`^[A-Za-z0-9]{4}$`)

// ValidCode returns whether s is a valid species or date code.
func ValidCode(s string) bool { return codePattern.MatchString(s) }

// Descriptor describes a genome through its lifecycle. It is filled in
// place by Analyze, AssignNames and RenameContigs and must not be changed
// once annotation has started.
type Descriptor struct {
	// Original is the genome identifier as given in the list file.
	Original string

	// Name is the canonical <species>.<date>.<strain> name.
	Name string

	Species string
	Date    string

	// Source holds the input files, concatenated in order.
	Source []string

	// Sequence is the path of the sequence to annotate.
	Sequence string

	Size    int
	Contigs int
	L90     int

	// Replicons holds the renamed contigs.
	Replicons []contig.Record
}

// Code returns the <species>.<date> prefix of the canonical name.
func (d *Descriptor) Code() string { return d.Species + "." + d.Date }

func (d *Descriptor) String() string {
	if d.Name == "" {
		return d.Original
	}
	return fmt.Sprintf("%s (%s)", d.Name, d.Original)
}

// Thresholds hold the retention limits of genomes.
type Thresholds struct {
	MaxContigs int
	MaxL90     int
}

// DefaultThresholds are the usual limits for bacterial draft assemblies.
var DefaultThresholds = Thresholds{MaxContigs: 999, MaxL90: 100}

// Check returns nil if d passes t. A genome without sequence is always
// rejected with an error wrapping contig.ErrEmptyGenome; other rejections
// wrap ErrThreshold.
func (t Thresholds) Check(d *Descriptor) error {
	if d.Size == 0 || d.Contigs == 0 {
		return fmt.Errorf("genome %s: %w", d.Original, contig.ErrEmptyGenome)
	}
	if d.Contigs > t.MaxContigs || d.L90 > t.MaxL90 {
		return fmt.Errorf("genome %s: %w: %d contigs (max %d), L90 %d (max %d)",
			d.Original, ErrThreshold, d.Contigs, t.MaxContigs, d.L90, t.MaxL90)
	}
	return nil
}

// Quality reports whether a ranks strictly before b: lower L90 first, then
// fewer contigs. The original identifier breaks remaining ties.
func Quality(a, b *Descriptor) bool {
	if a.L90 != b.L90 {
		return a.L90 < b.L90
	}
	if a.Contigs != b.Contigs {
		return a.Contigs < b.Contigs
	}
	return a.Original < b.Original
}
