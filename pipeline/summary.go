// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/maruel/natural"
)

// Merge returns the results of later stages in place of those of earlier
// stages for the same genome.
func Merge(stages ...[]Result) []Result {
	var (
		out   []Result
		index = make(map[string]int)
	)
	for _, results := range stages {
		for _, r := range results {
			if i, ok := index[r.Genome.Original]; ok {
				out[i] = r
				continue
			}
			index[r.Genome.Original] = len(out)
			out = append(out, r)
		}
	}
	return out
}

// WriteSummary writes the per-genome outcome of the run and the number of
// genomes that went through every stage.
func WriteSummary(w io.Writer, run string, results []Result) error {
	s := append([]Result(nil), results...)
	sort.SliceStable(s, func(i, j int) bool { return natural.Less(s[i].Genome.Original, s[j].Genome.Original) })

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# run %s\n", run)
	fmt.Fprintln(bw, "orig_name\tgembase_name\tstage\tstatus\tcontigs\tfeatures\tcrisprs\tproteins\treason")
	var done int
	for _, r := range s {
		status, reason := "ok", "-"
		if r.Err != nil {
			status, reason = "failed", r.Err.Error()
		} else if r.Stage == StageUnify {
			done++
		}
		name := r.Genome.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(bw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			r.Genome.Original, name, r.Stage, status,
			r.Summary.Contigs, r.Summary.Features, r.Summary.CRISPRs, r.Summary.Proteins, reason)
	}
	fmt.Fprintf(bw, "# %d/%d genomes annotated\n", done, len(s))
	return bw.Flush()
}
