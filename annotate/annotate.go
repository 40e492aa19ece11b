// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package annotate runs genome annotators on renamed genomes.
package annotate

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

	"github.com/biogo/gembase/gembase"
	"github.com/biogo/gembase/genome"
	"go.uber.org/zap"
)

// ErrAnnotator is returned when an annotator run fails.
var ErrAnnotator = errors.New("annotate: annotator failed")

// Annotator calls the genes of a genome.
type Annotator interface {
	// Annotate annotates the renamed sequence of d and returns the
	// annotator outputs.
	Annotate(ctx context.Context, d *genome.Descriptor, threads int) (gembase.Input, error)
}

// Prokka annotates genomes with prokka.
type Prokka struct {
	Exec string
	Dir  string // Parent directory of the per-genome result directories.
	Log  *zap.Logger
}

// NewProkka returns a Prokka writing its results below dir. It fails if
// prokka is not installed.
func NewProkka(dir string, log *zap.Logger) (*Prokka, error) {
	path, err := exec.LookPath("prokka")
	if err != nil {
		return nil, fmt.Errorf("annotate: could not find prokka executable: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Prokka{Exec: path, Dir: dir, Log: log}, nil
}

// Outputs returns the prokka result files for the genome d.
func (p *Prokka) Outputs(d *genome.Descriptor) gembase.Input {
	dir := p.resultDir(d)
	return gembase.Input{
		Table:     filepath.Join(dir, d.Name+".tbl"),
		Genes:     filepath.Join(dir, d.Name+".ffn"),
		Proteins:  filepath.Join(dir, d.Name+".faa"),
		GFF:       filepath.Join(dir, d.Name+".gff"),
		Replicons: d.Sequence,
	}
}

func (p *Prokka) resultDir(d *genome.Descriptor) string {
	return filepath.Join(p.Dir, d.Name+"-prokkaRes")
}

// Annotate implements Annotator. Results of a previous complete run are
// reused.
func (p *Prokka) Annotate(ctx context.Context, d *genome.Descriptor, threads int) (gembase.Input, error) {
	in := p.Outputs(d)
	log := p.Log.With(zap.String("genome", d.Name))
	if complete(in) {
		log.Warn("prokka results already exist, skipping", zap.String("dir", p.resultDir(d)))
		return in, nil
	}
	if threads < 1 {
		threads = 1
	}
	args := []string{
		"--outdir", p.resultDir(d),
		"--cpus", strconv.Itoa(threads),
		"--prefix", d.Name,
		"--locustag", d.Name,
		"--kingdom", "Bacteria",
		"--force",
		d.Sequence,
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.Exec, args...)
	cmd.Stderr = &stderr
	log.Debug("running prokka", zap.Strings("args", args))
	err := cmd.Run()
	if err != nil {
		return in, fmt.Errorf("%w: prokka on %s: %v: %s", ErrAnnotator, d.Name, err, lastLine(stderr.String()))
	}
	if !complete(in) {
		return in, fmt.Errorf("%w: prokka on %s: missing result files in %s", ErrAnnotator, d.Name, p.resultDir(d))
	}
	return in, nil
}

func complete(in gembase.Input) bool {
	for _, p := range []string{in.Table, in.Genes, in.Proteins, in.GFF} {
		fi, err := os.Stat(p)
		if err != nil || fi.Size() == 0 {
			return false
		}
	}
	return true
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
