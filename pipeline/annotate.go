// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"os"

	"github.com/biogo/gembase/annotate"
	"github.com/biogo/gembase/gembase"
	"github.com/biogo/gembase/genome"
	"go.uber.org/zap"
)

// Annotation renames, annotates and unifies genomes.
type Annotation struct {
	Annotator annotate.Annotator
	Unifier   *gembase.Unifier
	// RenameDir receives the genomes with canonical contig names.
	RenameDir string
	// Threads is the number of threads of each annotator run.
	Threads int

	Pool *Pool
}

// Run processes the named genomes. Genomes failing a stage are reported
// in their Result and produce no gembase file.
func (a *Annotation) Run(ctx context.Context, genomes []*genome.Descriptor) ([]Result, error) {
	err := os.MkdirAll(a.RenameDir, 0o755)
	if err != nil {
		return nil, err
	}
	return a.Pool.Run(ctx, genomes, a.work), nil
}

func (a *Annotation) work(ctx context.Context, d *genome.Descriptor, log *zap.Logger) Result {
	err := genome.RenameContigs(d, a.RenameDir)
	if err != nil {
		return Result{Genome: d, Stage: StageRename, Err: err}
	}
	log = log.With(zap.String("name", d.Name))
	log.Debug("contigs renamed", zap.Int("contigs", len(d.Replicons)))

	in, err := a.Annotator.Annotate(ctx, d, a.Threads)
	if err != nil {
		return Result{Genome: d, Stage: StageAnnotate, Err: err}
	}
	sum, err := a.Unifier.Unify(d.Name, in)
	if err != nil {
		return Result{Genome: d, Stage: StageUnify, Err: err}
	}
	log.Info("genome annotated", zap.Int("features", sum.Features), zap.Int("proteins", sum.Proteins))
	return Result{Genome: d, Stage: StageUnify, Summary: sum}
}

// Share divides threads between at most n concurrent jobs and returns the
// number of jobs and the threads given to each.
func Share(threads, n int) (jobs, each int) {
	if threads < 1 {
		threads = 1
	}
	jobs = threads
	if n > 0 && n < jobs {
		jobs = n
	}
	return jobs, threads / jobs
}
