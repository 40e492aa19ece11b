// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/biogo/gembase/annotate"
	"github.com/biogo/gembase/contig"
	"github.com/biogo/gembase/distance"
	"github.com/biogo/gembase/gembase"
	"github.com/biogo/gembase/genome"
	"github.com/biogo/gembase/pangenome"
	"github.com/biogo/gembase/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/check.v1"
)

func Test(t *testing.T) { check.TestingT(t) }

type S struct{}

var _ = check.Suite(&S{})

func (s *S) TestPool(c *check.C) {
	var genomes []*genome.Descriptor
	for i := 0; i < 20; i++ {
		genomes = append(genomes, &genome.Descriptor{Original: fmt.Sprintf("g%d", i)})
	}
	var running, peak int32
	var bar bytes.Buffer
	p := &Pool{Threads: 3, Log: zap.NewNop(), Progress: &bar}
	results := p.Run(context.Background(), genomes, func(_ context.Context, d *genome.Descriptor, _ *zap.Logger) Result {
		n := atomic.AddInt32(&running, 1)
		for {
			m := atomic.LoadInt32(&peak)
			if n <= m || atomic.CompareAndSwapInt32(&peak, m, n) {
				break
			}
		}
		defer atomic.AddInt32(&running, -1)
		var err error
		if strings.HasSuffix(d.Original, "7") {
			err = errors.New("failed")
		}
		return Result{Genome: d, Stage: StageQC, Err: err}
	})
	c.Assert(results, check.HasLen, len(genomes))
	for i, r := range results {
		c.Check(r.Genome, check.Equals, genomes[i])
		c.Check(r.OK(), check.Equals, !strings.HasSuffix(r.Genome.Original, "7"))
	}
	c.Check(peak <= 3, check.Equals, true)
}

func (s *S) TestShare(c *check.C) {
	for i, t := range []struct {
		threads, n int
		jobs, each int
	}{
		{threads: 1, n: 10, jobs: 1, each: 1},
		{threads: 8, n: 10, jobs: 8, each: 1},
		{threads: 8, n: 2, jobs: 2, each: 4},
		{threads: 0, n: 2, jobs: 1, each: 1},
		{threads: 8, n: 0, jobs: 8, each: 1},
	} {
		jobs, each := Share(t.threads, t.n)
		c.Check([]int{jobs, each}, check.DeepEquals, []int{t.jobs, t.each}, check.Commentf("Test %d", i))
	}
}

func randomSeq(rnd *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = "ACGT"[rnd.Intn(4)]
	}
	return string(b)
}

// distances is a DistanceSource giving 0.01 between every pair of genomes
// except for pairs listed in close.
type distances struct {
	close [][2]string
}

func (d distances) Matrix(_ context.Context, paths []string) (*distance.Matrix, error) {
	m := distance.NewMatrix(len(paths))
	for i := range paths {
		for j := i + 1; j < len(paths); j++ {
			v := 0.01
			for _, p := range d.close {
				a, b := filepath.Base(paths[i]), filepath.Base(paths[j])
				if (strings.HasPrefix(a, p[0]) && strings.HasPrefix(b, p[1])) || (strings.HasPrefix(a, p[1]) && strings.HasPrefix(b, p[0])) {
					v = 0
				}
			}
			m.Set(i, j, v)
		}
	}
	return m, nil
}

// fakeAnnotator calls a 30 nt CDS at the start of every contig.
type fakeAnnotator struct {
	dir  string
	fail map[string]bool
}

func (a fakeAnnotator) Annotate(_ context.Context, d *genome.Descriptor, _ int) (gembase.Input, error) {
	if a.fail[d.Original] {
		return gembase.Input{}, fmt.Errorf("%w: %s", annotate.ErrAnnotator, d.Original)
	}
	var tbl, ffn, faa strings.Builder
	for i, r := range d.Replicons {
		fmt.Fprintf(&tbl, ">Feature %s\n1\t30\tCDS\n\t\t\tlocus_tag\tFAKE_%05d\n\t\t\tproduct\tfake protein\n", r.Name, i+1)
		fmt.Fprintf(&ffn, ">FAKE_%05d\n%s\n", i+1, strings.Repeat("ATG", 10))
		fmt.Fprintf(&faa, ">FAKE_%05d\n%s\n", i+1, strings.Repeat("M", 9))
	}
	in := gembase.Input{
		Table:     filepath.Join(a.dir, d.Name+".tbl"),
		Genes:     filepath.Join(a.dir, d.Name+".ffn"),
		Proteins:  filepath.Join(a.dir, d.Name+".faa"),
		Replicons: d.Sequence,
	}
	for _, f := range []struct{ path, content string }{
		{in.Table, tbl.String()}, {in.Genes, ffn.String()}, {in.Proteins, faa.String()},
	} {
		err := os.WriteFile(f.path, []byte(f.content), 0o644)
		if err != nil {
			return in, err
		}
	}
	return in, nil
}

// byContig puts proteins encoded on the same contig index in a family.
type byContig struct {
	mu   sync.Mutex
	runs int
}

func (b *byContig) Run(_ context.Context, _ int, _, proteins string) (*pangenome.Partition, error) {
	b.mu.Lock()
	b.runs++
	b.mu.Unlock()
	data, err := os.ReadFile(proteins)
	if err != nil {
		return nil, err
	}
	fams := make(map[int][]string)
	var last int
	for _, l := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(l, ">") {
			continue
		}
		id := strings.Fields(l[1:])[0]
		loc, ok := pangenome.ParseLocus(id)
		if !ok {
			return nil, fmt.Errorf("bad locus %q", id)
		}
		fams[loc.Contig] = append(fams[loc.Contig], id)
		if loc.Contig > last {
			last = loc.Contig
		}
	}
	var lines []string
	for i := 1; i <= last; i++ {
		lines = append(lines, strings.Join(fams[i], " "))
	}
	return pangenome.ReadClusters(strings.NewReader(strings.Join(lines, "\n")))
}

func writeGenomes(c *check.C) (dir string, genomes []*genome.Descriptor) {
	rnd := rand.New(rand.NewSource(1))
	dir = c.MkDir()
	same := randomSeq(rnd, 1000)
	files := map[string]string{
		"g1.fna": ">c1\n" + randomSeq(rnd, 600) + "\n>c2\n" + randomSeq(rnd, 400) + "\n",
		"g2.fna": ">chromosome\n" + same + "\n",
		"g3.fna": "",
		"g4.fna": ">a\n" + randomSeq(rnd, 100) + "\n>b\n" + randomSeq(rnd, 100) + "\n>c\n" + randomSeq(rnd, 100) +
			"\n>d\n" + randomSeq(rnd, 100) + "\n>e\n" + randomSeq(rnd, 100) + "\n",
		"g5.fna": ">chromosome\n" + same + "\n",
	}
	var list strings.Builder
	for _, name := range []string{"g1.fna", "g2.fna", "g3.fna", "g4.fna", "g5.fna"} {
		c.Assert(os.WriteFile(filepath.Join(dir, name), []byte(files[name]), 0o644), check.IsNil)
		fmt.Fprintln(&list, name)
	}
	genomes, err := genome.ReadList(strings.NewReader(list.String()), dir, "ESCO", "1017")
	c.Assert(err, check.IsNil)
	return dir, genomes
}

func (s *S) TestEndToEnd(c *check.C) {
	ctx := context.Background()
	_, genomes := writeGenomes(c)
	out := c.MkDir()
	pool := &Pool{Threads: 2, Log: zap.NewNop()}

	qc := &QC{
		Thresholds: genome.Thresholds{MaxContigs: 4, MaxL90: 100},
		CutN:       5,
		TmpDir:     filepath.Join(out, "tmp"),
		MinDist:    1e-4,
		MaxDist:    0.06,
		Distances:  distances{close: [][2]string{{"g2", "g5"}}},
		Pool:       pool,
	}
	rep, err := qc.Run(ctx, genomes)
	c.Assert(err, check.IsNil)
	c.Check(rep.First, check.Equals, "g2.fna")
	var kept []string
	for _, d := range rep.Kept {
		kept = append(kept, d.Original+"="+d.Name)
	}
	c.Check(kept, check.DeepEquals, []string{"g2.fna=ESCO.1017.00001", "g1.fna=ESCO.1017.00002"})
	c.Assert(rep.Rejected, check.HasLen, 2)
	c.Check(rep.Rejected[0].Genome.Original, check.Equals, "g3.fna")
	c.Check(errors.Is(rep.Rejected[0].Reason, contig.ErrEmptyGenome), check.Equals, true)
	c.Check(errors.Is(rep.Rejected[1].Reason, genome.ErrThreshold), check.Equals, true)
	c.Assert(rep.Distant, check.HasLen, 1)
	c.Check(rep.Distant[0].Genome.Original, check.Equals, "g5.fna")
	c.Check(rep.Distant[0].Reason, check.ErrorMatches, `distance to reference out of range: 0 to g2\.fna`)
	c.Check(rep.Analysed, check.HasLen, 4)

	c.Assert(rep.WriteReports(out, "list"), check.IsNil)
	for _, p := range []string{InfoFile(out, "list"), QualityFile(out, "list"), DistanceFile(out, "list"), NamesFile(out, "list")} {
		_, err := os.Stat(p)
		c.Check(err, check.IsNil)
	}

	root := filepath.Join(out, "gembase")
	u, err := gembase.NewUnifier(root, zap.NewNop())
	c.Assert(err, check.IsNil)
	ann := &Annotation{
		Annotator: fakeAnnotator{dir: c.MkDir()},
		Unifier:   u,
		RenameDir: filepath.Join(out, "renamed"),
		Threads:   1,
		Pool:      pool,
	}
	results, err := ann.Run(ctx, rep.Kept)
	c.Assert(err, check.IsNil)
	for _, r := range results {
		c.Check(r.Err, check.IsNil)
		c.Check(r.Stage, check.Equals, StageUnify)
	}
	c.Check(results[1].Summary, check.Equals, gembase.Summary{Contigs: 2, Features: 2, Genes: 2, Proteins: 2})

	var sum bytes.Buffer
	run := uuid.NewString()
	c.Assert(WriteSummary(&sum, run, Merge(rep.Results, results)), check.IsNil)
	lines := strings.Split(strings.TrimSpace(sum.String()), "\n")
	c.Check(lines[0], check.Equals, "# run "+run)
	c.Check(lines, check.HasLen, 8)
	c.Check(lines[len(lines)-1], check.Equals, "# 2/5 genomes annotated")
	c.Check(strings.HasPrefix(lines[2], "g1.fna\tESCO.1017.00002\tunify\tok\t2\t2\t0\t2\t-"), check.Equals, true, check.Commentf("%q", lines[2]))

	names, err := gembase.Genomes(root)
	c.Assert(err, check.IsNil)
	c.Check(names, check.DeepEquals, []string{"ESCO.1017.00001", "ESCO.1017.00002"})

	db, err := store.Open(filepath.Join(out, "pan.db"))
	c.Assert(err, check.IsNil)
	defer db.Close()
	cl := &byContig{}
	pan := &Pangenome{
		Root:      root,
		Dir:       filepath.Join(out, "pangenome"),
		Name:      "test",
		Clusterer: cl,
		Threads:   1,
		Store:     db,
		RunID:     run,
	}
	c.Assert(rep.WriteReports(out, "list"), check.IsNil)
	descs, err := genome.ReadNamesFiles([]string{NamesFile(out, "list")})
	c.Assert(err, check.IsNil)
	m, err := pan.Run(ctx, names, descs)
	c.Assert(err, check.IsNil)
	c.Check(cl.runs, check.Equals, 1)
	c.Check(m.Genomes, check.DeepEquals, []string{"ESCO.1017.00001", "ESCO.1017.00002"})
	c.Check(mat.Equal(m.Counts, mat.NewDense(2, 2, []float64{1, 1, 0, 1})), check.Equals, true)

	quanti, err := os.ReadFile(pan.matrix("quanti"))
	c.Assert(err, check.IsNil)
	c.Check(string(quanti), check.Equals, "fam_num,1,2\nESCO.1017.00001,1,0\nESCO.1017.00002,1,1\n")
	fams, err := os.ReadFile(pan.families())
	c.Assert(err, check.IsNil)
	c.Check(string(fams), check.Equals, "1 ESCO.1017.00001.0001b_00001 ESCO.1017.00002.0001b_00001\n2 ESCO.1017.00002.0002b_00002\n")

	g, cls, matches, err := db.Counts(ctx, run)
	c.Assert(err, check.IsNil)
	c.Check([]int{g, cls, matches}, check.DeepEquals, []int{2, 2, 3})

	rows, err := db.Genomes(ctx, run)
	c.Assert(err, check.IsNil)
	c.Assert(rows, check.HasLen, 2)
	for i, d := range rep.Kept {
		c.Check(d.Size > 0, check.Equals, true)
		c.Check(rows[i], check.Equals, store.Genome{
			Name: d.Name, Original: d.Original,
			Size: d.Size, Contigs: d.Contigs, L90: d.L90,
			Genes: i + 1,
		})
	}
}

func (s *S) TestAnnotationFailure(c *check.C) {
	ctx := context.Background()
	_, genomes := writeGenomes(c)
	out := c.MkDir()
	pool := &Pool{Threads: 2, Log: zap.NewNop()}
	qc := &QC{Thresholds: genome.DefaultThresholds, TmpDir: filepath.Join(out, "tmp"), Pool: pool}
	rep, err := qc.Run(ctx, genomes)
	c.Assert(err, check.IsNil)
	c.Check(rep.Kept, check.HasLen, 4)

	root := filepath.Join(out, "gembase")
	u, err := gembase.NewUnifier(root, zap.NewNop())
	c.Assert(err, check.IsNil)
	ann := &Annotation{
		Annotator: fakeAnnotator{dir: c.MkDir(), fail: map[string]bool{"g1.fna": true}},
		Unifier:   u,
		RenameDir: filepath.Join(out, "renamed"),
		Pool:      pool,
	}
	results, err := ann.Run(ctx, rep.Kept)
	c.Assert(err, check.IsNil)
	var failed []string
	for _, r := range results {
		if !r.OK() {
			failed = append(failed, r.Genome.Original)
			c.Check(r.Stage, check.Equals, StageAnnotate)
			c.Check(errors.Is(r.Err, annotate.ErrAnnotator), check.Equals, true)
			_, err := os.Stat(gembase.FilesFor(root, r.Genome.Name).List)
			c.Check(os.IsNotExist(err), check.Equals, true)
		}
	}
	c.Check(failed, check.DeepEquals, []string{"g1.fna"})
	names, err := gembase.Genomes(root)
	c.Assert(err, check.IsNil)
	c.Check(names, check.HasLen, 3)
}
