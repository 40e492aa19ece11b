// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gembase

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/shenwei356/xopen"
	"go.uber.org/zap"
)

// Input holds the annotator outputs for a genome and its renamed sequence.
// GFF may be empty, in which case the GFF3 output is built from the feature
// table alone.
type Input struct {
	Table     string // Feature table.
	Genes     string // Nucleotide sequences of the features.
	Proteins  string // Translations of the CDS.
	GFF       string
	Replicons string // Genome with canonical contig names.
}

// Summary holds the counts of a unified genome.
type Summary struct {
	Contigs  int
	Features int
	CRISPRs  int
	Genes    int
	Proteins int
}

// Unifier writes gembase files under Root.
type Unifier struct {
	Root string
	Log  *zap.Logger
}

// NewUnifier returns a Unifier writing under root, creating the gembase
// directories if needed.
func NewUnifier(root string, log *zap.Logger) (*Unifier, error) {
	for _, d := range Dirs(root) {
		err := os.MkdirAll(d, 0o755)
		if err != nil {
			return nil, err
		}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Unifier{Root: root, Log: log}, nil
}

// Unify writes the five gembase files of the named genome from the
// annotator outputs in. If any inconsistency is found, none of the five
// files is left on disk and the error is returned.
func (u *Unifier) Unify(name string, in Input) (Summary, error) {
	out := FilesFor(u.Root, name)
	sum, err := u.unify(name, in, out)
	if err != nil {
		for _, p := range out.All() {
			rerr := os.Remove(p)
			if rerr != nil && !os.IsNotExist(rerr) {
				u.Log.Warn("could not remove partial output", zap.String("path", p), zap.Error(rerr))
			}
		}
		return Summary{}, fmt.Errorf("gembase: %s: %w", name, err)
	}
	u.Log.Debug("unified",
		zap.String("genome", name),
		zap.Int("features", sum.Features),
		zap.Int("crisprs", sum.CRISPRs),
		zap.Int("proteins", sum.Proteins),
	)
	return sum, nil
}

func (u *Unifier) unify(name string, in Input, out Files) (Summary, error) {
	var (
		sum  Summary
		reps []Replicon
	)
	err := transform(in.Replicons, out.Replicon, func(r io.Reader, w io.Writer) error {
		var err error
		reps, err = copyReplicons(r, w, name)
		return err
	})
	if err != nil {
		return sum, err
	}
	sum.Contigs = len(reps)
	contigs := make(map[string]int, len(reps))
	present := make(map[string]bool, len(reps))
	for _, r := range reps {
		contigs[r.Name] = r.Index
		present[r.Name] = true
	}

	var feats []*Feature
	err = read(in.Table, func(r io.Reader) error {
		var err error
		feats, sum.CRISPRs, err = ReadTable(r, name, contigs)
		return err
	})
	if err != nil {
		return sum, fmt.Errorf("%s: %w", filepath.Base(in.Table), err)
	}
	sum.Features = len(feats)

	err = write(out.List, func(w io.Writer) error { return WriteList(w, name, feats) })
	if err != nil {
		return sum, err
	}

	err = transform(in.Genes, out.Genes, func(r io.Reader, w io.Writer) error {
		var err error
		sum.Genes, err = relabel(r, w, name, feats, false)
		return err
	})
	if err != nil {
		return sum, fmt.Errorf("%s: %w", filepath.Base(in.Genes), err)
	}
	err = transform(in.Proteins, out.Proteins, func(r io.Reader, w io.Writer) error {
		var err error
		sum.Proteins, err = relabel(r, w, name, feats, true)
		return err
	})
	if err != nil {
		return sum, fmt.Errorf("%s: %w", filepath.Base(in.Proteins), err)
	}

	m := &gffMerger{
		genome:   name,
		reps:     reps,
		feats:    feats,
		gffName:  filepath.Base(in.GFF),
		tblName:  filepath.Base(in.Table),
		contigOf: present,
	}
	if in.GFF == "" {
		return sum, write(out.GFF, m.synthesize)
	}
	return sum, transform(in.GFF, out.GFF, m.merge)
}

// WriteList writes the feature list of the named genome.
func WriteList(w io.Writer, genome string, feats []*Feature) error {
	bw := bufio.NewWriter(w)
	for _, f := range feats {
		_, err := fmt.Fprintln(bw, f.lstLine(genome))
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}

func read(path string, fn func(io.Reader) error) error {
	f, err := xopen.Ropen(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(f)
}

func write(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	err = fn(f)
	cerr := f.Close()
	if err != nil {
		return err
	}
	return cerr
}

func transform(in, out string, fn func(io.Reader, io.Writer) error) error {
	return read(in, func(r io.Reader) error {
		return write(out, func(w io.Writer) error { return fn(r, w) })
	})
}
