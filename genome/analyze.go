// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package genome

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/biogo/gembase/contig"
)

// Analyze computes the assembly metrics of d, cutting its contigs at runs
// of at least nbn N. When contigs are cut, or when the genome is made of
// several files, the sequence to annotate is written to tmpdir and recorded
// as d.Sequence; otherwise d.Sequence is the source file.
func Analyze(d *Descriptor, nbn int, tmpdir string) error {
	if nbn <= 0 && len(d.Source) == 1 {
		sizes, err := contig.Split(d.Source, 0, nil)
		if err != nil {
			return fmt.Errorf("genome %s: %w", d.Original, err)
		}
		d.Sequence = d.Source[0]
		d.setStats(sizes)
		return nil
	}

	out := filepath.Join(tmpdir, splitName(d, nbn))
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	sizes, err := contig.Split(d.Source, nbn, w)
	if err == nil {
		err = w.Flush()
	}
	cerr := f.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(out)
		return fmt.Errorf("genome %s: %w", d.Original, err)
	}
	d.Sequence = out
	d.setStats(sizes)
	return nil
}

func (d *Descriptor) setStats(sizes contig.Sizes) {
	st := contig.Summarize(sizes)
	d.Size, d.Contigs, d.L90 = st.Size, st.Contigs, st.L90
}

func splitName(d *Descriptor, nbn int) string {
	base := filepath.Base(d.Source[0])
	if len(d.Source) > 1 {
		base += "-all"
	}
	if nbn > 0 {
		return fmt.Sprintf("%s-split%dN.fna", base, nbn)
	}
	return base + ".fna"
}
