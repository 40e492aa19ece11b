// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cluster runs protein clustering tools and returns their result as
// a pangenome partition.
package cluster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	"github.com/biogo/gembase/pangenome"
	"go.uber.org/zap"
)

// ErrStale is returned by Check when a partition does not cover
// exactly the proteins of a bank.
var ErrStale = errors.New("cluster: partition does not match protein bank")

// Clusterer groups the proteins of a protein bank into families.
type Clusterer interface {
	// Run clusters the sequences of the FASTA file proteins using up to
	// threads threads, keeping its intermediate files below workdir.
	Run(ctx context.Context, threads int, workdir, proteins string) (*pangenome.Partition, error)
}

// Workspace is the directory of one clustering run.
type Workspace struct {
	Dir      string
	Families string // Family file of a completed run.
}

// Prepare creates the directory of the clustering run named name below
// workdir. It reports whether the run already completed, in which case its
// partition can be read with Load.
func Prepare(workdir, name string) (ws Workspace, done bool, err error) {
	ws = Workspace{
		Dir:      filepath.Join(workdir, name),
		Families: filepath.Join(workdir, name+".families"),
	}
	err = os.MkdirAll(ws.Dir, 0o755)
	if err != nil {
		return ws, false, err
	}
	_, err = os.Stat(ws.Families)
	if err == nil {
		return ws, true, nil
	}
	if os.IsNotExist(err) {
		err = nil
	}
	return ws, false, err
}

// Load reads the family file of a completed run.
func (ws Workspace) Load() (*pangenome.Partition, error) {
	f, err := os.Open(ws.Families)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p, err := pangenome.ReadFamilies(f)
	if err != nil {
		return nil, fmt.Errorf("cluster: %q: %w", ws.Families, err)
	}
	return p, nil
}

// BankIDs returns the identifiers of the sequences of the FASTA file at path.
func BankIDs(path string) (map[string]bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ids := make(map[string]bool)
	sc := seqio.NewScanner(fasta.NewReader(f, linear.NewSeq("", nil, alphabet.Protein)))
	for sc.Next() {
		ids[sc.Seq().Name()] = true
	}
	err = sc.Error()
	if err != nil {
		return nil, fmt.Errorf("cluster: %q: %w", path, err)
	}
	return ids, nil
}

// Check returns ErrStale unless every member of p is one of ids and every
// one of ids is a member of p.
func Check(p *pangenome.Partition, ids map[string]bool) error {
	if p.Members() != len(ids) {
		return fmt.Errorf("%w: %d members for %d proteins", ErrStale, p.Members(), len(ids))
	}
	for _, f := range p.Families {
		for _, id := range f {
			if !ids[id] {
				return fmt.Errorf("%w: %s is not in the bank", ErrStale, id)
			}
		}
	}
	return nil
}

// Save writes p as the family file of the run.
func (ws Workspace) Save(p *pangenome.Partition) error {
	f, err := os.Create(ws.Families)
	if err != nil {
		return err
	}
	err = pangenome.WriteFamilies(f, p)
	cerr := f.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(ws.Families)
	}
	return err
}

// MMseqs clusters proteins with mmseqs easy-cluster or easy-linclust.
type MMseqs struct {
	Exec     string
	Identity float64 // Minimum sequence identity.
	Coverage float64 // Minimum alignment coverage.
	Linclust bool
	Log      *zap.Logger
}

// NewMMseqs returns an MMseqs clusterer. It fails if mmseqs is not installed.
func NewMMseqs(identity, coverage float64, linclust bool, log *zap.Logger) (*MMseqs, error) {
	path, err := exec.LookPath("mmseqs")
	if err != nil {
		return nil, fmt.Errorf("cluster: could not find mmseqs executable: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &MMseqs{Exec: path, Identity: identity, Coverage: coverage, Linclust: linclust, Log: log}, nil
}

// Name returns the name of the run directory for the settings of m.
func (m *MMseqs) Name() string {
	mode := "cluster"
	if m.Linclust {
		mode = "linclust"
	}
	return fmt.Sprintf("mmseqs-%s-i%s-c%s", mode, fmtFloat(m.Identity), fmtFloat(m.Coverage))
}

func fmtFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// Run implements Clusterer. The run directory is named after the bank and
// the settings of m. Results left by a previous run are reused only if they
// cover exactly the proteins of the bank.
func (m *MMseqs) Run(ctx context.Context, threads int, workdir, proteins string) (*pangenome.Partition, error) {
	bank := strings.TrimSuffix(filepath.Base(proteins), filepath.Ext(proteins))
	ws, done, err := Prepare(workdir, bank+"-"+m.Name())
	if err != nil {
		return nil, err
	}
	ids, err := BankIDs(proteins)
	if err != nil {
		return nil, err
	}
	prefix := filepath.Join(ws.Dir, "clusters")
	tsv := prefix + "_cluster.tsv"
	if done {
		p, err := ws.Load()
		if err == nil {
			err = Check(p, ids)
		}
		if err == nil {
			m.Log.Warn("families already computed, loading them", zap.String("path", ws.Families))
			return p, nil
		}
		m.Log.Warn("discarding previous clustering", zap.String("path", ws.Families), zap.Error(err))
		for _, f := range []string{ws.Families, tsv} {
			err = os.Remove(f)
			if err != nil && !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	p, err := m.readClusters(tsv, ids)
	if err == nil {
		m.Log.Warn("mmseqs clusters exist, skipping", zap.String("path", tsv))
	} else {
		if !os.IsNotExist(err) {
			m.Log.Warn("discarding mmseqs clusters", zap.String("path", tsv), zap.Error(err))
		}
		if threads < 1 {
			threads = 1
		}
		mode := "easy-cluster"
		if m.Linclust {
			mode = "easy-linclust"
		}
		err = m.run(ctx, mode, proteins, prefix, filepath.Join(ws.Dir, "tmp"),
			"--min-seq-id", fmtFloat(m.Identity),
			"-c", fmtFloat(m.Coverage),
			"--threads", strconv.Itoa(threads),
		)
		if err != nil {
			os.Remove(tsv)
			return nil, err
		}
		p, err = m.readClusters(tsv, ids)
		if err != nil {
			return nil, err
		}
	}
	m.Log.Info("clustered proteins", zap.Int("families", p.Len()), zap.Int("members", p.Members()))
	return p, ws.Save(p)
}

// readClusters reads the mmseqs cluster table at path and checks it against
// the bank identifiers.
func (m *MMseqs) readClusters(path string, ids map[string]bool) (*pangenome.Partition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p, err := pangenome.ReadPairs(f)
	if err != nil {
		return nil, fmt.Errorf("cluster: %q: %w", path, err)
	}
	err = Check(p, ids)
	if err != nil {
		return nil, fmt.Errorf("cluster: %q: %w", path, err)
	}
	return p, nil
}

func (m *MMseqs) run(ctx context.Context, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, m.Exec, args...)
	cmd.Stderr = &stderr
	m.Log.Debug("running mmseqs", zap.Strings("args", args))
	err := cmd.Run()
	if err != nil {
		return fmt.Errorf("cluster: mmseqs %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
