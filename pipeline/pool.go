// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pipeline drives genomes through quality control, annotation and
// pangenome construction.
//
// Genomes are processed independently by a fixed number of workers. The
// failure of a genome is recorded in its Result and never stops the others.
package pipeline

import (
	"context"
	"io"

	"github.com/biogo/gembase/gembase"
	"github.com/biogo/gembase/genome"
	"github.com/cheggaaa/pb/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Stage is a step of the per-genome processing.
type Stage string

const (
	StageQC       Stage = "qc"
	StageDistance Stage = "distance"
	StageRename   Stage = "rename"
	StageAnnotate Stage = "annotate"
	StageUnify    Stage = "unify"
)

// Result is the outcome of the processing of a genome. Stage is the last
// stage attempted; Err is nil if it succeeded.
type Result struct {
	Genome  *genome.Descriptor
	Stage   Stage
	Err     error
	Summary gembase.Summary
}

// OK reports whether the genome went through all attempted stages.
func (r Result) OK() bool { return r.Err == nil }

// Work processes a single genome.
type Work func(ctx context.Context, d *genome.Descriptor, log *zap.Logger) Result

// Pool runs Work over genomes.
type Pool struct {
	Threads int
	Log     *zap.Logger

	// Progress receives a progress bar if not nil.
	Progress io.Writer
}

// Run applies work to every genome and returns the results in the order of
// genomes.
func (p *Pool) Run(ctx context.Context, genomes []*genome.Descriptor, work Work) []Result {
	threads := p.Threads
	if threads < 1 {
		threads = 1
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}

	type indexed struct {
		i int
		Result
	}
	results := make(chan indexed, threads)
	go func() {
		var g errgroup.Group
		g.SetLimit(threads)
		for i, d := range genomes {
			i, d := i, d
			g.Go(func() error {
				results <- indexed{i: i, Result: work(ctx, d, log.With(zap.String("genome", d.Original)))}
				return nil
			})
		}
		g.Wait()
		close(results)
	}()

	var bar *pb.ProgressBar
	if p.Progress != nil {
		bar = pb.New(len(genomes)).SetWriter(p.Progress).Start()
	}
	out := make([]Result, len(genomes))
	for r := range results {
		if bar != nil {
			bar.Increment()
		}
		if r.Err != nil {
			log.Warn("genome failed", zap.String("genome", r.Genome.Original), zap.String("stage", string(r.Stage)), zap.Error(r.Err))
		}
		out[r.i] = r.Result
	}
	if bar != nil {
		bar.Finish()
	}
	return out
}
