// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package genome

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/maruel/natural"
)

// Rejection records a genome excluded from the run and why.
type Rejection struct {
	Genome *Descriptor
	Reason error
}

func byOriginal(genomes []*Descriptor) []*Descriptor {
	s := append([]*Descriptor(nil), genomes...)
	sort.SliceStable(s, func(i, j int) bool { return natural.Less(s[i].Original, s[j].Original) })
	return s
}

// WriteInfo writes the metrics of the analysed genomes, one per line in
// natural order of their identifiers.
func WriteInfo(w io.Writer, genomes []*Descriptor) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "orig_name\tto_annotate\tgsize\tnb_conts\tL90")
	for _, d := range byOriginal(genomes) {
		fmt.Fprintf(bw, "%s\t%s\t%d\t%d\t%d\n", d.Original, d.Sequence, d.Size, d.Contigs, d.L90)
	}
	return bw.Flush()
}

// WriteDiscarded writes the rejected genomes with their metrics and reason.
func WriteDiscarded(w io.Writer, rejected []Rejection) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "orig_name\tto_annotate\tgsize\tnb_conts\tL90\treason")
	s := append([]Rejection(nil), rejected...)
	sort.SliceStable(s, func(i, j int) bool { return natural.Less(s[i].Genome.Original, s[j].Genome.Original) })
	for _, r := range s {
		d := r.Genome
		fmt.Fprintf(bw, "%s\t%s\t%d\t%d\t%d\t%v\n", d.Original, d.Sequence, d.Size, d.Contigs, d.L90, r.Reason)
	}
	return bw.Flush()
}

// WriteNames writes the named genomes in canonical name order.
func WriteNames(w io.Writer, genomes []*Descriptor) error {
	s := append([]*Descriptor(nil), genomes...)
	sort.SliceStable(s, func(i, j int) bool { return s[i].Name < s[j].Name })
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "gembase_name\torig_name\tto_annotate\tgsize\tnb_conts\tL90")
	for _, d := range s {
		fmt.Fprintf(bw, "%s\t%s\t%s\t%d\t%d\t%d\n", d.Name, d.Original, d.Sequence, d.Size, d.Contigs, d.L90)
	}
	return bw.Flush()
}

// ReadNames reads a names report written by WriteNames. The descriptors
// returned hold the name, identifier, sequence and metrics of the genomes.
func ReadNames(r io.Reader) ([]*Descriptor, error) {
	var genomes []*Descriptor
	sc := bufio.NewScanner(r)
	var line int
	for sc.Scan() {
		line++
		if line == 1 && strings.HasPrefix(sc.Text(), "gembase_name\t") {
			continue
		}
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		f := strings.Split(sc.Text(), "\t")
		if len(f) != 6 {
			return nil, fmt.Errorf("genome: names line %d: want 6 fields, got %d", line, len(f))
		}
		code := strings.SplitN(f[0], ".", 3)
		if len(code) != 3 || !ValidCode(code[0]) || !ValidCode(code[1]) {
			return nil, fmt.Errorf("%w: names line %d: %q", ErrBadCode, line, f[0])
		}
		d := &Descriptor{Name: f[0], Original: f[1], Species: code[0], Date: code[1], Sequence: f[2]}
		for i, dst := range []*int{&d.Size, &d.Contigs, &d.L90} {
			v, err := strconv.Atoi(f[3+i])
			if err != nil {
				return nil, fmt.Errorf("genome: names line %d: %w", line, err)
			}
			*dst = v
		}
		genomes = append(genomes, d)
	}
	return genomes, sc.Err()
}

// ReadNamesFiles reads the names reports at paths. A genome named in
// several reports is described by the last one.
func ReadNamesFiles(paths []string) ([]*Descriptor, error) {
	var (
		genomes []*Descriptor
		index   = make(map[string]int)
	)
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		g, err := ReadNames(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%q: %w", p, err)
		}
		for _, d := range g {
			if i, ok := index[d.Name]; ok {
				genomes[i] = d
				continue
			}
			index[d.Name] = len(genomes)
			genomes = append(genomes, d)
		}
	}
	return genomes, nil
}
