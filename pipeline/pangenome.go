// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	"github.com/biogo/gembase/cluster"
	"github.com/biogo/gembase/gembase"
	"github.com/biogo/gembase/genome"
	"github.com/biogo/gembase/pangenome"
	"github.com/biogo/gembase/store"
	"go.uber.org/zap"
)

// BuildBank concatenates the gembase protein files of the named genomes
// into a single FASTA file at path and returns the number of proteins of
// each genome.
func BuildBank(root string, names []string, path string) (map[string]int, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriter(f)
	fw := fasta.NewWriter(bw, 60)
	counts := make(map[string]int, len(names))
	for _, name := range names {
		n, err := appendProteins(fw, gembase.FilesFor(root, name).Proteins)
		if err != nil {
			f.Close()
			os.Remove(path)
			return nil, fmt.Errorf("pipeline: protein bank: %w", err)
		}
		counts[name] = n
	}
	err = bw.Flush()
	cerr := f.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	return counts, nil
}

func appendProteins(w *fasta.Writer, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	var n int
	sc := seqio.NewScanner(fasta.NewReader(f, linear.NewSeq("", nil, alphabet.Protein)))
	for sc.Next() {
		_, err = w.Write(sc.Seq())
		if err != nil {
			return n, err
		}
		n++
	}
	err = sc.Error()
	if err != nil {
		return n, fmt.Errorf("%q: %w", path, err)
	}
	return n, nil
}

// Pangenome clusters the proteins of a gembase and writes the families and
// their matrices.
type Pangenome struct {
	Root      string // Gembase directory.
	Dir       string // Output directory.
	Name      string // Dataset name used in output file names.
	Clusterer cluster.Clusterer
	Threads   int

	// Store receives the families under RunID if not nil.
	Store *store.DB
	RunID string

	Log *zap.Logger
}

// Pangenome output file names.
func (p *Pangenome) bank() string { return filepath.Join(p.Dir, p.Name+".All.prt") }
func (p *Pangenome) families() string { return filepath.Join(p.Dir, "PanGenome-"+p.Name+".lst") }
func (p *Pangenome) matrix(kind string) string {
	return filepath.Join(p.Dir, "PanGenome-"+p.Name+"."+kind+".csv")
}

// Run builds the pangenome of the named genomes. Descriptors, if known,
// are used for the exported genome table and may be nil.
func (p *Pangenome) Run(ctx context.Context, names []string, descs []*genome.Descriptor) (*pangenome.Matrices, error) {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("pipeline: no genome in %s", p.Root)
	}
	err := os.MkdirAll(p.Dir, 0o755)
	if err != nil {
		return nil, err
	}
	counts, err := BuildBank(p.Root, names, p.bank())
	if err != nil {
		return nil, err
	}
	log.Info("protein bank built", zap.String("path", p.bank()), zap.Int("genomes", len(names)))

	part, err := p.Clusterer.Run(ctx, p.Threads, p.Dir, p.bank())
	if err != nil {
		return nil, err
	}
	genomes := append([]string(nil), names...)
	pangenome.SortGenomes(genomes)
	m, err := pangenome.Index(part, genomes)
	if err != nil {
		return nil, err
	}
	sums, err := m.Summarize()
	if err != nil {
		return nil, err
	}

	for _, f := range []struct {
		path string
		fn   func(io.Writer) error
	}{
		{p.families(), func(w io.Writer) error { return pangenome.WriteFamilies(w, part) }},
		{p.matrix("quanti"), func(w io.Writer) error { return pangenome.WriteMatrix(w, m.Genomes, m.Counts) }},
		{p.matrix("quali"), func(w io.Writer) error { return pangenome.WriteMatrix(w, m.Genomes, m.Presence()) }},
		{p.matrix("summary"), func(w io.Writer) error { return pangenome.WriteSummary(w, sums) }},
	} {
		err = writeFile(f.path, f.fn)
		if err != nil {
			return nil, err
		}
	}
	log.Info("pangenome written", zap.Int("families", part.Len()), zap.String("path", p.families()))

	if p.Store != nil {
		err = p.export(ctx, log, genomes, descs, counts, part)
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (p *Pangenome) export(ctx context.Context, log *zap.Logger, names []string, descs []*genome.Descriptor, counts map[string]int, part *pangenome.Partition) error {
	byName := make(map[string]*genome.Descriptor, len(descs))
	for _, d := range descs {
		byName[d.Name] = d
	}
	rows := make([]store.Genome, len(names))
	for i, n := range names {
		rows[i] = store.Genome{Name: n, Original: n, Genes: counts[n]}
		if d, ok := byName[n]; ok {
			rows[i].Original = d.Original
			rows[i].Size, rows[i].Contigs, rows[i].L90 = d.Size, d.Contigs, d.L90
		}
	}
	err := p.Store.Export(ctx, p.RunID, rows, part)
	if err != nil {
		return err
	}
	g, c, m, err := p.Store.Counts(ctx, p.RunID)
	if err != nil {
		return err
	}
	log.Info("pangenome exported", zap.String("run", p.RunID), zap.Int("genomes", g), zap.Int("clusters", c), zap.Int("matches", m))
	return nil
}
