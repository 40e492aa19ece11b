// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package genome

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/biogo/gembase/contig"
)

// AssignNames sorts genomes by species code and decreasing quality and
// gives each its canonical name. Strain numbers start at 1 for each species
// code so that the best genome of a species gets the lowest number. It
// returns the original identifier of the first genome in that order.
func AssignNames(genomes []*Descriptor) string {
	if len(genomes) == 0 {
		return ""
	}
	sort.SliceStable(genomes, func(i, j int) bool {
		a, b := genomes[i], genomes[j]
		if a.Species != b.Species {
			return a.Species < b.Species
		}
		return Quality(a, b)
	})
	var strain int
	for i, d := range genomes {
		if i == 0 || d.Species != genomes[i-1].Species {
			strain = 0
		}
		strain++
		d.Name = fmt.Sprintf("%s.%s.%05d", d.Species, d.Date, strain)
	}
	return genomes[0].Original
}

// SortByQuality sorts genomes by decreasing quality.
func SortByQuality(genomes []*Descriptor) {
	sort.SliceStable(genomes, func(i, j int) bool { return Quality(genomes[i], genomes[j]) })
}

// RenameContigs writes the sequence of the named genome d with canonical
// contig headers to dir, making it the sequence to annotate.
func RenameContigs(d *Descriptor, dir string) error {
	if d.Name == "" {
		return fmt.Errorf("genome %s: not named", d.Original)
	}
	out := filepath.Join(dir, d.Name+".fna")
	recs, err := contig.RenameFile(d.Sequence, d.Name, out)
	if err != nil {
		return fmt.Errorf("genome %s: %w", d, err)
	}
	d.Sequence = out
	d.Replicons = recs
	return nil
}
