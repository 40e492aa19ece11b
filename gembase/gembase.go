// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gembase converts the outputs of a genome annotator into the
// gembase format: a feature list, gene, protein and replicon FASTA files
// and a GFF3 file, all sharing the same locus identifiers.
//
// The three annotator outputs describing the genes of a genome are read in
// lock-step; any disagreement between them fails the whole genome and no
// gembase file is left for it.
package gembase

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maruel/natural"
)

var (
	// ErrMalformed is returned for a header, locus tag or line that does
	// not follow the expected layout.
	ErrMalformed = errors.New("gembase: malformed entry")

	// ErrMissingContig is returned when a contig is not one of the
	// renamed replicons of the genome.
	ErrMissingContig = errors.New("gembase: unknown contig")

	// ErrCount is returned when annotator files do not hold the same
	// number of entries.
	ErrCount = errors.New("gembase: entry count mismatch")

	// ErrOrder is returned when a sequence file entry has no matching
	// entry in the feature table at its position.
	ErrOrder = errors.New("gembase: ordering violation")

	// ErrMismatch is returned when a field differs between two files
	// describing the same feature.
	ErrMismatch = errors.New("gembase: field mismatch")

	// ErrFrame is returned for a coding sequence whose length is not a
	// multiple of 3.
	ErrFrame = errors.New("gembase: CDS length not a multiple of 3")
)

// Directory names of the gembase outputs.
const (
	ListDir      = "LSTINFO"
	GeneDir      = "Genes"
	ProteinDir   = "Proteins"
	RepliconDir  = "Replicons"
	GFFDir       = "gff3"
	NotAvailable = "NA"
)

// Files holds the paths of the five gembase files of a genome.
type Files struct {
	List     string
	Genes    string
	Proteins string
	Replicon string
	GFF      string
}

// FilesFor returns the gembase files of the named genome under root.
func FilesFor(root, name string) Files {
	return Files{
		List:     filepath.Join(root, ListDir, name+".lst"),
		Genes:    filepath.Join(root, GeneDir, name+".gen"),
		Proteins: filepath.Join(root, ProteinDir, name+".prt"),
		Replicon: filepath.Join(root, RepliconDir, name+".fna"),
		GFF:      filepath.Join(root, GFFDir, name+".gff"),
	}
}

// All returns the five paths.
func (f Files) All() []string {
	return []string{f.List, f.Genes, f.Proteins, f.Replicon, f.GFF}
}

// Dirs returns the output directories of the gembase under root.
func Dirs(root string) []string {
	return []string{
		filepath.Join(root, ListDir),
		filepath.Join(root, GeneDir),
		filepath.Join(root, ProteinDir),
		filepath.Join(root, RepliconDir),
		filepath.Join(root, GFFDir),
	}
}

// Genomes returns the names of the genomes having a protein file under
// root, in natural order.
func Genomes(root string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(root, ProteinDir, "*.prt"))
	if err != nil {
		return nil, err
	}
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = strings.TrimSuffix(filepath.Base(p), ".prt")
	}
	sort.Slice(names, func(i, j int) bool { return natural.Less(names[i], names[j]) })
	return names, nil
}
