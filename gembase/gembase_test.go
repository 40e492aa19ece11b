// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gembase

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"gopkg.in/check.v1"
)

func Test(t *testing.T) { check.TestingT(t) }

type S struct{}

var _ = check.Suite(&S{})

const genome = "TEST.0120.00001"

var (
	contigs = map[string]int{
		"TEST.0120.00001.0001": 1,
		"TEST.0120.00001.0002": 2,
		"TEST.0120.00001.0003": 3,
	}

	fixture = map[string]string{
		"g.fna": ">TEST.0120.00001.0001\n" + strings.Repeat("A", 1000) +
			"\n>TEST.0120.00001.0002\n" + strings.Repeat("C", 300) +
			"\n>TEST.0120.00001.0003\n" + strings.Repeat("G", 50) + "\n",

		"g.tbl": `>Feature TEST.0120.00001.0001
100	201	gene
			locus_tag	PROK_00001
100	201	CDS
			locus_tag	PROK_00001
			product	hypothetical protein
			inference	ab initio prediction:Prodigal:2.6
			inference	similar to AA sequence:UniProtKB:P0001
501	250	CDS
			locus_tag	PROK_00002
			gene	dnaA
			EC_number	3.6.4.12
			db_xref	COG:COG0593
			db_xref	GO:0005524
600	700	repeat_region
			note	CRISPR with 3 repeat units
			rpt_family	CRISPR
800	875	tRNA
			locus_tag	PROK_00003
			product	tRNA-Leu(cag)
>Feature TEST.0120.00001.0002
<1	90	CDS
			locus_tag	PROK_00004
			pseudo
`,

		"g.ffn": ">PROK_00001 hypothetical protein\n" + strings.Repeat("ATG", 34) +
			"\n>PROK_00002 Chromosomal replication initiator protein DnaA\n" + strings.Repeat("ATG", 84) +
			"\n>PROK_00003 tRNA-Leu(cag)\n" + strings.Repeat("T", 76) +
			"\n>PROK_00004 hypothetical protein\n" + strings.Repeat("ATG", 30) + "\n",

		"g.faa": ">PROK_00001 hypothetical protein\n" + strings.Repeat("M", 33) +
			"\n>PROK_00002 Chromosomal replication initiator protein DnaA\n" + strings.Repeat("M", 84) +
			"\n>PROK_00004 hypothetical protein\n" + strings.Repeat("M", 30) + "\n",

		"g.gff": `##gff-version 3
##sequence-region TEST.0120.00001.0001 1 1000
TEST.0120.00001.0001	Prodigal:2.6	gene	100	201	.	+	.	ID=PROK_00001_gene;locus_tag=PROK_00001
TEST.0120.00001.0001	Prodigal:2.6	CDS	100	201	.	+	0	ID=PROK_00001;Parent=PROK_00001_gene;locus_tag=PROK_00001;product=hypothetical protein
TEST.0120.00001.0001	Prodigal:2.6	CDS	250	501	.	-	0	ID=PROK_00002;gene=dnaA
TEST.0120.00001.0001	minced:0.2.0	repeat_region	600	700	.	.	.	note=CRISPR
TEST.0120.00001.0001	Aragorn:1.2	tRNA	800	875	.	+	.	ID=PROK_00003;locus_tag=PROK_00003
TEST.0120.00001.0002	Prodigal:2.6	CDS	1	90	.	+	0	ID=PROK_00004;locus_tag=PROK_00004
##FASTA
>TEST.0120.00001.0001
ACGT
`,
	}
)

// setup writes the fixture to a new directory, replacing old by new in the
// named files, and returns the corresponding Input.
func setup(c *check.C, edits ...[3]string) Input {
	dir := c.MkDir()
	for name, content := range fixture {
		for _, e := range edits {
			if e[0] == name {
				c.Assert(strings.Contains(content, e[1]), check.Equals, true, check.Commentf("%s: %q", name, e[1]))
				content = strings.Replace(content, e[1], e[2], 1)
			}
		}
		c.Assert(os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644), check.IsNil)
	}
	return Input{
		Table:     filepath.Join(dir, "g.tbl"),
		Genes:     filepath.Join(dir, "g.ffn"),
		Proteins:  filepath.Join(dir, "g.faa"),
		GFF:       filepath.Join(dir, "g.gff"),
		Replicons: filepath.Join(dir, "g.fna"),
	}
}

func headers(c *check.C, path string) []string {
	b, err := os.ReadFile(path)
	c.Assert(err, check.IsNil)
	var h []string
	for _, l := range strings.Split(string(b), "\n") {
		if strings.HasPrefix(l, ">") {
			h = append(h, l)
		}
	}
	return h
}

func lines(c *check.C, path string) []string {
	b, err := os.ReadFile(path)
	c.Assert(err, check.IsNil)
	return strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
}

func (s *S) TestLocus(c *check.C) {
	f := &Feature{ContigIndex: 12, Number: 345, Border: true}
	c.Check(f.Locus("ESCO.1017.00002"), check.Equals, "ESCO.1017.00002.0012b_00345")
	f.Border = false
	c.Check(f.Locus("ESCO.1017.00002"), check.Equals, "ESCO.1017.00002.0012i_00345")
	c.Check(f.Annotation(), check.Equals, "| NA | NA | NA | NA")
}

func (s *S) TestTwoFeatureContig(c *check.C) {
	tbl := ">Feature TEST.0120.00001.0001\n" +
		"100\t200\tCDS\n\t\t\tlocus_tag\tX_00001\n" +
		"500\t250\tCDS\n\t\t\tlocus_tag\tX_00002\n"
	feats, crisprs, err := ReadTable(strings.NewReader(tbl), genome, contigs)
	c.Assert(err, check.IsNil)
	c.Check(crisprs, check.Equals, 0)
	var buf bytes.Buffer
	c.Assert(WriteList(&buf, genome, feats), check.IsNil)
	c.Check(buf.String(), check.Equals,
		"100\t200\tD\tCDS\tTEST.0120.00001.0001b_00001\tNA\t| NA | NA | NA | NA\n"+
			"250\t500\tC\tCDS\tTEST.0120.00001.0001b_00002\tNA\t| NA | NA | NA | NA\n")
}

func (s *S) TestBorderFlags(c *check.C) {
	rnd := rand.New(rand.NewSource(1))
	for k := 0; k < 200; k++ {
		var (
			tbl   strings.Builder
			want  []bool
			num   int
			names = []string{"TEST.0120.00001.0001", "TEST.0120.00001.0002", "TEST.0120.00001.0003"}
		)
		for _, name := range names {
			fmt.Fprintf(&tbl, ">Feature %s\n", name)
			n := rnd.Intn(5)
			var kept []bool
			for i := 0; i < n; i++ {
				if rnd.Intn(4) == 0 {
					fmt.Fprintf(&tbl, "%d\t%d\trepeat_region\n\t\t\tnote\tCRISPR\n", 10*i+1, 10*i+5)
					continue
				}
				num += 1 + rnd.Intn(3)
				fmt.Fprintf(&tbl, "%d\t%d\tCDS\n\t\t\tlocus_tag\tPROK_%05d\n", 10*i+1, 10*i+5, num)
				kept = append(kept, false)
			}
			if len(kept) != 0 {
				kept[0], kept[len(kept)-1] = true, true
			}
			want = append(want, kept...)
		}
		feats, _, err := ReadTable(strings.NewReader(tbl.String()), genome, contigs)
		c.Assert(err, check.IsNil)
		got := make([]bool, len(feats))
		for i, f := range feats {
			got[i] = f.Border
			if i > 0 {
				c.Check(f.Number > feats[i-1].Number, check.Equals, true)
			}
		}
		if len(want) == 0 {
			want = got[:0]
		}
		c.Check(got, check.DeepEquals, want, check.Commentf("case %d\n%s", k, tbl.String()))
	}
}

func (s *S) TestReadTableErrors(c *check.C) {
	for i, t := range []struct {
		tbl  string
		want error
	}{
		{tbl: ">Feature nowhere\n1\t9\tCDS\n\t\t\tlocus_tag\tP_00001\n", want: ErrMissingContig},
		{tbl: "1\t9\tCDS\n", want: ErrMalformed},
		{tbl: ">Feature TEST.0120.00001.0001\n1\t9\tCDS\n\t\t\tlocus_tag\tP00001\n", want: ErrMalformed},
		{tbl: ">Feature TEST.0120.00001.0001\n1\t9\tCDS\n", want: ErrMalformed},
		{tbl: ">Feature TEST.0120.00001.0001\nx\t9\tCDS\n\t\t\tlocus_tag\tP_00001\n", want: ErrMalformed},
		{
			tbl: ">Feature TEST.0120.00001.0001\n1\t9\tCDS\n\t\t\tlocus_tag\tP_00002\n" +
				"20\t29\tCDS\n\t\t\tlocus_tag\tP_00002\n",
			want: ErrOrder,
		},
	} {
		_, _, err := ReadTable(strings.NewReader(t.tbl), genome, contigs)
		c.Check(errors.Is(err, t.want), check.Equals, true, check.Commentf("Test %d: %v", i, err))
	}
}

func (s *S) TestUnify(c *check.C) {
	in := setup(c)
	root := c.MkDir()
	u, err := NewUnifier(root, zap.NewNop())
	c.Assert(err, check.IsNil)
	sum, err := u.Unify(genome, in)
	c.Assert(err, check.IsNil)
	c.Check(sum, check.Equals, Summary{Contigs: 3, Features: 4, CRISPRs: 1, Genes: 4, Proteins: 3})

	out := FilesFor(root, genome)
	c.Check(lines(c, out.List), check.DeepEquals, []string{
		"100\t201\tD\tCDS\tTEST.0120.00001.0001b_00001\tNA\t| hypothetical protein | NA | similar to AA sequence:UniProtKB:P0001 | NA",
		"250\t501\tC\tCDS\tTEST.0120.00001.0001i_00002\tdnaA\t| NA | 3.6.4.12 | NA | COG:COG0593,GO:0005524",
		"800\t875\tD\ttRNA\tTEST.0120.00001.0001b_00003\tNA\t| tRNA-Leu(cag) | NA | NA | NA",
		"1\t90\tD\tCDS\tTEST.0120.00001.0002b_00004\tNA\t| NA | NA | NA | NA",
	})
	c.Check(headers(c, out.Genes), check.DeepEquals, []string{
		">TEST.0120.00001.0001b_00001 102 NA | hypothetical protein | NA | similar to AA sequence:UniProtKB:P0001 | NA",
		">TEST.0120.00001.0001i_00002 252 dnaA | NA | 3.6.4.12 | NA | COG:COG0593,GO:0005524",
		">TEST.0120.00001.0001b_00003 76 NA | tRNA-Leu(cag) | NA | NA | NA",
		">TEST.0120.00001.0002b_00004 90 NA | NA | NA | NA | NA",
	})
	c.Check(headers(c, out.Proteins), check.DeepEquals, []string{
		">TEST.0120.00001.0001b_00001 33 NA | hypothetical protein | NA | similar to AA sequence:UniProtKB:P0001 | NA",
		">TEST.0120.00001.0001i_00002 84 dnaA | NA | 3.6.4.12 | NA | COG:COG0593,GO:0005524",
		">TEST.0120.00001.0002b_00004 30 NA | NA | NA | NA | NA",
	})
	c.Check(headers(c, out.Replicon), check.DeepEquals, []string{
		">TEST.0120.00001.0001", ">TEST.0120.00001.0002", ">TEST.0120.00001.0003",
	})
	c.Check(lines(c, out.GFF), check.DeepEquals, []string{
		"##gff-version 3",
		"##sequence-region TEST.0120.00001.0001 1 1000",
		"##sequence-region TEST.0120.00001.0002 1 300",
		"##sequence-region TEST.0120.00001.0003 1 50",
		"TEST.0120.00001.0001\tProdigal:2.6\tCDS\t100\t201\t.\t+\t0\tID=TEST.0120.00001.0001b_00001;Parent=PROK_00001_gene;locus_tag=TEST.0120.00001.0001b_00001;product=hypothetical protein",
		"TEST.0120.00001.0001\tProdigal:2.6\tCDS\t250\t501\t.\t-\t0\tID=TEST.0120.00001.0001i_00002;gene=dnaA;locus_tag=TEST.0120.00001.0001i_00002",
		"TEST.0120.00001.0001\tAragorn:1.2\ttRNA\t800\t875\t.\t+\t.\tID=TEST.0120.00001.0001b_00003;locus_tag=TEST.0120.00001.0001b_00003",
		"TEST.0120.00001.0002\tProdigal:2.6\tCDS\t1\t90\t.\t+\t0\tID=TEST.0120.00001.0002b_00004;locus_tag=TEST.0120.00001.0002b_00004",
	})

	// Locus identifiers are unique and sorted by locus number.
	seen := make(map[string]bool)
	last := -1
	for _, l := range lines(c, out.List) {
		f := strings.Split(l, "\t")
		c.Check(seen[f[4]], check.Equals, false)
		seen[f[4]] = true
		var n int
		_, err := fmt.Sscanf(f[4][strings.LastIndex(f[4], "_")+1:], "%d", &n)
		c.Assert(err, check.IsNil)
		c.Check(n > last, check.Equals, true)
		last = n
	}
}

func (s *S) TestUnifyWithoutGFF(c *check.C) {
	in := setup(c)
	in.GFF = ""
	root := c.MkDir()
	u, err := NewUnifier(root, nil)
	c.Assert(err, check.IsNil)
	_, err = u.Unify(genome, in)
	c.Assert(err, check.IsNil)
	gff := lines(c, FilesFor(root, genome).GFF)
	c.Check(gff, check.HasLen, 8)
	c.Check(gff[5], check.Equals, "TEST.0120.00001.0001\t.\tCDS\t250\t501\t.\t-\t.\tID=TEST.0120.00001.0001i_00002;locus_tag=TEST.0120.00001.0001i_00002;gene=dnaA")
}

func (s *S) TestUnifyFailures(c *check.C) {
	for i, t := range []struct {
		edit    [3]string
		want    error
		message string
	}{
		{
			edit:    [3]string{"g.gff", "CDS\t100\t201", "CDS\t101\t201"},
			want:    ErrMismatch,
			message: `.*g\.gff and g\.tbl disagree on start of PROK_00001: 101 != 100`,
		},
		{
			edit: [3]string{"g.gff", "tRNA\t800", "rRNA\t800"},
			want: ErrMismatch,
		},
		{
			edit: [3]string{"g.gff", "TEST.0120.00001.0002\tProdigal", "contig_2\tProdigal"},
			want: ErrMissingContig,
		},
		{
			edit: [3]string{"g.tbl", "100\t201\tCDS", "100\t200\tCDS"},
			want: ErrFrame,
		},
		{
			edit: [3]string{"g.faa", strings.Repeat("M", 84), strings.Repeat("M", 80)},
			want: ErrMismatch,
		},
		{
			edit: [3]string{"g.ffn", ">PROK_00003", ">PROK_00009"},
			want: ErrOrder,
		},
		{
			edit: [3]string{"g.ffn", ">PROK_00001", ">PROK00001"},
			want: ErrMalformed,
		},
		{
			edit: [3]string{"g.faa", ">PROK_00004 hypothetical protein\n" + strings.Repeat("M", 30) + "\n", ""},
			want: ErrCount,
		},
		{
			edit: [3]string{"g.faa", ">PROK_00002", ">PROK_00003"},
			want: ErrCount,
		},
		{
			edit: [3]string{"g.tbl", ">Feature TEST.0120.00001.0002", ">Feature TEST.0120.00001.0009"},
			want: ErrMissingContig,
		},
		{
			edit: [3]string{"g.fna", ">TEST.0120.00001.0003", ">contig3"},
			want: ErrMalformed,
		},
	} {
		in := setup(c, t.edit)
		root := c.MkDir()
		u, err := NewUnifier(root, zap.NewNop())
		c.Assert(err, check.IsNil)
		_, err = u.Unify(genome, in)
		c.Check(errors.Is(err, t.want), check.Equals, true, check.Commentf("Test %d: %v", i, err))
		if t.message != "" {
			c.Check(err, check.ErrorMatches, t.message, check.Commentf("Test %d", i))
		}
		for _, p := range FilesFor(root, genome).All() {
			_, err := os.Stat(p)
			c.Check(os.IsNotExist(err), check.Equals, true, check.Commentf("Test %d: %s left behind", i, p))
		}
	}
}

func (s *S) TestSetAttributes(c *check.C) {
	for i, t := range []struct {
		in, want string
	}{
		{in: "ID=A_1;locus_tag=A_1;product=x", want: "ID=L;locus_tag=L;product=x"},
		{in: "product=x", want: "ID=L;product=x;locus_tag=L"},
		{in: "", want: "ID=L;locus_tag=L"},
		{in: "locus_tag=A_1;ID=A_1;", want: "locus_tag=L;ID=L"},
	} {
		c.Check(setAttributes(t.in, "L"), check.Equals, t.want, check.Commentf("Test %d", i))
	}
}
