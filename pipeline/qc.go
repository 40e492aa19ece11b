// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/biogo/gembase/distance"
	"github.com/biogo/gembase/genome"
	"go.uber.org/zap"
)

// ErrDistance is the reason recorded for genomes removed by the distance
// filter.
var ErrDistance = errors.New("distance to reference out of range")

// DistanceSource computes the pairwise distances between genome sequences,
// ranked by their position in paths.
type DistanceSource interface {
	Matrix(ctx context.Context, paths []string) (*distance.Matrix, error)
}

// QC selects the genomes to annotate.
type QC struct {
	Thresholds genome.Thresholds
	CutN       int
	TmpDir     string // Directory receiving the split genomes.

	MinDist, MaxDist float64
	// Distances is used to discard genomes too close to or too far from
	// better genomes. If nil no distance filter is applied.
	Distances DistanceSource

	Pool *Pool
	Log  *zap.Logger
}

// QCReport holds the outcome of QC.Run.
type QCReport struct {
	// Analysed holds the genomes whose statistics were computed.
	Analysed []*genome.Descriptor
	// Kept holds the named genomes to annotate, in naming order.
	Kept []*genome.Descriptor
	// First is the original identifier of the best genome of the first
	// species.
	First string

	Rejected []genome.Rejection // Rejected on sequence or quality.
	Distant  []genome.Rejection // Rejected by the distance filter.

	Results []Result
}

// Run analyses genomes, discards those failing the thresholds or the
// distance filter and names the others. An error is returned only if the
// distance matrix cannot be obtained.
func (q *QC) Run(ctx context.Context, genomes []*genome.Descriptor) (*QCReport, error) {
	log := q.Log
	if log == nil {
		log = zap.NewNop()
	}
	err := os.MkdirAll(q.TmpDir, 0o755)
	if err != nil {
		return nil, err
	}

	rep := &QCReport{}
	rep.Results = q.Pool.Run(ctx, genomes, func(_ context.Context, d *genome.Descriptor, log *zap.Logger) Result {
		err := genome.Analyze(d, q.CutN, q.TmpDir)
		if err != nil {
			return Result{Genome: d, Stage: StageQC, Err: err}
		}
		log.Debug("analysed", zap.Int("size", d.Size), zap.Int("contigs", d.Contigs), zap.Int("L90", d.L90))
		return Result{Genome: d, Stage: StageQC, Err: q.Thresholds.Check(d)}
	})

	var cands []*genome.Descriptor
	index := make(map[*genome.Descriptor]int)
	for i, r := range rep.Results {
		index[r.Genome] = i
		if r.Genome.Size > 0 {
			rep.Analysed = append(rep.Analysed, r.Genome)
		}
		if r.Err != nil {
			rep.Rejected = append(rep.Rejected, genome.Rejection{Genome: r.Genome, Reason: r.Err})
			continue
		}
		cands = append(cands, r.Genome)
	}
	log.Info("quality control done", zap.Int("genomes", len(genomes)), zap.Int("kept", len(cands)))

	genome.SortByQuality(cands)
	if q.Distances != nil && len(cands) > 1 {
		paths := make([]string, len(cands))
		for i, d := range cands {
			paths[i] = d.Sequence
		}
		m, err := q.Distances.Matrix(ctx, paths)
		if err != nil {
			return nil, err
		}
		keep, disc, err := distance.Filter(m, q.MinDist, q.MaxDist)
		if err != nil {
			return nil, err
		}
		for _, dis := range disc {
			d, ref := cands[dis.Genome], cands[dis.Reference]
			reason := fmt.Errorf("%w: %g to %s", ErrDistance, dis.Distance, ref.Original)
			rep.Distant = append(rep.Distant, genome.Rejection{Genome: d, Reason: reason})
			rep.Results[index[d]].Stage = StageDistance
			rep.Results[index[d]].Err = reason
		}
		kept := make([]*genome.Descriptor, len(keep))
		for i, k := range keep {
			kept[i] = cands[k]
		}
		cands = kept
		log.Info("distance filter done", zap.Int("discarded", len(disc)), zap.Int("kept", len(cands)))
	}
	rep.First = genome.AssignNames(cands)
	rep.Kept = cands
	return rep, nil
}

// Report file names for the list file named list.
func InfoFile(dir, list string) string { return filepath.Join(dir, "ALL-GENOMES-info-"+list+".lst") }
func QualityFile(dir, list string) string { return filepath.Join(dir, "discarded-by-L90_nbcont-"+list+".lst") }
func DistanceFile(dir, list string) string { return filepath.Join(dir, "discarded-by-minhash-"+list+".lst") }
func NamesFile(dir, list string) string { return filepath.Join(dir, "LSTINFO-"+list+".lst") }
func RunSummaryFile(dir, list string) string { return filepath.Join(dir, "summary-"+list+".txt") }

// WriteReports writes the quality reports of rep to dir.
func (rep *QCReport) WriteReports(dir, list string) error {
	for _, f := range []struct {
		path string
		fn   func(io.Writer) error
	}{
		{InfoFile(dir, list), func(w io.Writer) error { return genome.WriteInfo(w, rep.Analysed) }},
		{QualityFile(dir, list), func(w io.Writer) error { return genome.WriteDiscarded(w, rep.Rejected) }},
		{DistanceFile(dir, list), func(w io.Writer) error { return genome.WriteDiscarded(w, rep.Distant) }},
		{NamesFile(dir, list), func(w io.Writer) error { return genome.WriteNames(w, rep.Kept) }},
	} {
		err := writeFile(f.path, f.fn)
		if err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	err = fn(f)
	cerr := f.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("pipeline: write %q: %w", path, err)
	}
	return nil
}
