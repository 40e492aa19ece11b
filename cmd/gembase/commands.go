// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/biogo/gembase/annotate"
	"github.com/biogo/gembase/cluster"
	"github.com/biogo/gembase/distance"
	"github.com/biogo/gembase/gembase"
	"github.com/biogo/gembase/genome"
	"github.com/biogo/gembase/pipeline"
	"github.com/biogo/gembase/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// qcFlags adds the genome selection flags to cmd.
func (a *app) qcFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("db", "d", "", "directory holding the genome files named in the list file")
	f.String("tmp", "", "directory for split genomes (default <out>/tmp_files)")
	f.StringP("species", "n", "ESCO", "default 4 character species code")
	f.String("date", "", "default 4 character date code (default current MMYY)")
	f.Int("cutn", 5, "cut contigs at stretches of at least this many N, 0 to keep them whole")
	f.Int("max-contigs", genome.DefaultThresholds.MaxContigs, "maximum number of contigs")
	f.Int("max-l90", genome.DefaultThresholds.MaxL90, "maximum L90")
	f.Float64("min-dist", 1e-4, "minimum mash distance to a better genome")
	f.Float64("max-dist", 0.06, "maximum mash distance to a better genome")
	f.Bool("no-mash", false, "do not filter genomes by mash distance")
	a.flagKeys(cmd, map[string]string{
		"db":          "",
		"tmp":         "",
		"species":     "",
		"date":        "",
		"cutn":        "qc.cutn",
		"max-contigs": "qc.max-contigs",
		"max-l90":     "qc.max-l90",
		"min-dist":    "qc.min-dist",
		"max-dist":    "qc.max-dist",
		"no-mash":     "qc.no-mash",
	})
}

func (a *app) qcCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qc <list file>",
		Short: "Compute genome statistics and select the genomes to annotate",
		Long: `Compute genome statistics and select the genomes to annotate.

Each line of the list file names a genome file, or several files joined by ::,
optionally followed by a SPEC.DATE code overriding the default species and date
codes. Contigs are cut at stretches of N, genomes with too many contigs or a too
large L90 are discarded, and the remaining genomes are filtered by their mash
distance to better genomes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := interruptible()
			defer cancel()
			_, err := a.selectGenomes(ctx, args[0])
			return err
		},
	}
	a.qcFlags(cmd)
	return cmd
}

func (a *app) tmpDir() string {
	if a.cfg.TmpDir != "" {
		return a.cfg.TmpDir
	}
	return filepath.Join(a.cfg.Out, "tmp_files")
}

// selectGenomes runs quality control and distance filtering on the genomes
// of the list file and writes the reports.
func (a *app) selectGenomes(ctx context.Context, list string) (*pipeline.QCReport, error) {
	cfg := a.cfg
	genomes, err := genome.ReadListFile(list, cfg.DBPath, cfg.Species, cfg.Date)
	if err != nil {
		return nil, err
	}
	if missing := genome.Missing(genomes); len(missing) != 0 {
		return nil, fmt.Errorf("%d genome files not found: %s", len(missing), strings.Join(missing, ", "))
	}

	qc := &pipeline.QC{
		Thresholds: cfg.Thresholds(),
		CutN:       cfg.QC.CutN,
		TmpDir:     a.tmpDir(),
		MinDist:    cfg.QC.MinDist,
		MaxDist:    cfg.QC.MaxDist,
		Pool:       a.pool(cfg.Threads),
		Log:        a.log,
	}
	if !cfg.QC.NoMash {
		m, err := distance.NewMash(filepath.Join(cfg.Out, "mash_files"), cfg.Threads, a.log)
		if err != nil {
			return nil, err
		}
		qc.Distances = m
	}
	rep, err := qc.Run(ctx, genomes)
	if err != nil {
		return nil, err
	}
	name := listName(list)
	err = rep.WriteReports(cfg.Out, name)
	if err != nil {
		return nil, err
	}
	a.log.Info("genomes selected",
		zap.Int("listed", len(genomes)),
		zap.Int("rejected", len(rep.Rejected)),
		zap.Int("too close or too far", len(rep.Distant)),
		zap.Int("kept", len(rep.Kept)),
		zap.String("first", rep.First),
		zap.String("names", pipeline.NamesFile(cfg.Out, name)),
	)
	return rep, nil
}

func (a *app) annotateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annotate <list file>",
		Short: "Select, annotate and unify genomes into a gembase",
		Long: `Select, annotate and unify genomes into a gembase.

Genomes are selected as by the qc command, named, annotated with prokka and
their annotations written under the output directory in the LSTINFO, Genes,
Proteins, Replicons and gff3 directories. A genome whose annotation files
disagree has no file in any of these directories.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := interruptible()
			defer cancel()
			return a.annotate(ctx, args[0])
		},
	}
	a.qcFlags(cmd)
	return cmd
}

func (a *app) annotate(ctx context.Context, list string) error {
	cfg := a.cfg
	prokka, err := annotate.NewProkka(filepath.Join(a.tmpDir(), "annotation"), a.log)
	if err != nil {
		return err
	}
	unifier, err := gembase.NewUnifier(cfg.Out, a.log)
	if err != nil {
		return err
	}

	rep, err := a.selectGenomes(ctx, list)
	if err != nil {
		return err
	}
	jobs, each := pipeline.Share(cfg.Threads, len(rep.Kept))
	ann := &pipeline.Annotation{
		Annotator: prokka,
		Unifier:   unifier,
		RenameDir: filepath.Join(a.tmpDir(), "renamed"),
		Threads:   each,
		Pool:      a.pool(jobs),
	}
	results, err := ann.Run(ctx, rep.Kept)
	if err != nil {
		return err
	}

	all := pipeline.Merge(rep.Results, results)
	summary := pipeline.RunSummaryFile(cfg.Out, listName(list))
	err = writeTo(summary, func(w io.Writer) error { return pipeline.WriteSummary(w, a.run, all) })
	if err != nil {
		return err
	}
	var done int
	for _, r := range results {
		if r.OK() {
			done++
		}
	}
	a.log.Info("annotation done", zap.Int("annotated", done), zap.Int("selected", len(rep.Kept)), zap.String("summary", summary))
	return nil
}

func (a *app) pangenomeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pangenome",
		Short: "Cluster the proteins of a gembase into gene families",
		Long: `Cluster the proteins of a gembase into gene families.

All the protein files of the gembase are gathered in a protein bank clustered
with mmseqs. The families are written with their per genome count and presence
matrices and a per family summary, and optionally exported to an SQLite
database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := interruptible()
			defer cancel()
			return a.pangenome(ctx)
		},
	}
	f := cmd.Flags()
	f.StringP("gembase", "g", "", "gembase directory (default the output directory)")
	f.String("name", "", "dataset name (default the gembase directory name)")
	f.Float64("identity", 0.8, "minimum sequence identity")
	f.Float64("coverage", 0.8, "minimum alignment coverage")
	f.Bool("linclust", false, "use mmseqs linclust")
	f.String("sqlite", "", "SQLite database receiving the families")
	f.StringSlice("names", nil, "names reports written by qc (default <out>/LSTINFO-*.lst)")
	a.flagKeys(cmd, map[string]string{
		"names":    "",
		"gembase":  "",
		"name":     "",
		"identity": "cluster.identity",
		"coverage": "cluster.coverage",
		"linclust": "cluster.linclust",
		"sqlite":   "",
	})
	return cmd
}

func (a *app) pangenome(ctx context.Context) error {
	cfg := a.cfg
	root := cfg.Gembase
	if root == "" {
		root = cfg.Out
	}
	name := cfg.Name
	if name == "" {
		name = filepath.Base(filepath.Clean(root))
	}
	mmseqs, err := cluster.NewMMseqs(cfg.Cluster.Identity, cfg.Cluster.Coverage, cfg.Cluster.Linclust, a.log)
	if err != nil {
		return err
	}
	names, err := gembase.Genomes(root)
	if err != nil {
		return err
	}

	pan := &pipeline.Pangenome{
		Root:      root,
		Dir:       filepath.Join(cfg.Out, "pangenome"),
		Name:      name,
		Clusterer: mmseqs,
		Threads:   cfg.Threads,
		RunID:     a.run,
		Log:       a.log,
	}
	var descs []*genome.Descriptor
	if cfg.SQLite != "" {
		reports := cfg.Names
		if len(reports) == 0 {
			reports, err = filepath.Glob(filepath.Join(cfg.Out, "LSTINFO-*.lst"))
			if err != nil {
				return err
			}
		}
		descs, err = genome.ReadNamesFiles(reports)
		if err != nil {
			return err
		}
		if len(descs) == 0 {
			a.log.Warn("no names report found, genome metrics will not be exported")
		}
		db, err := store.Open(cfg.SQLite)
		if err != nil {
			return err
		}
		defer db.Close()
		pan.Store = db
	}
	m, err := pan.Run(ctx, names, descs)
	if err != nil {
		return err
	}
	r, c := m.Counts.Dims()
	a.log.Info("pangenome done", zap.Int("families", r), zap.Int("genomes", c))
	return nil
}
