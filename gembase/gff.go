// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gembase

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// gffMerger rewrites the annotator GFF3 so that its features carry the
// gembase locus identifiers.
type gffMerger struct {
	genome   string
	reps     []Replicon
	feats    []*Feature
	gffName  string // Base names used in mismatch reports.
	tblName  string
	contigOf map[string]bool
}

func (m *gffMerger) header(w *bufio.Writer) error {
	_, err := w.WriteString("##gff-version 3\n")
	if err != nil {
		return err
	}
	for _, r := range m.reps {
		_, err = fmt.Fprintf(w, "##sequence-region %s 1 %d\n", r.Name, r.Size)
		if err != nil {
			return err
		}
	}
	return nil
}

// merge copies the feature lines of the GFF3 read from r to w. The n'th
// retained feature line of r must describe the n'th feature of the table.
func (m *gffMerger) merge(r io.Reader, w io.Writer) error {
	bw := bufio.NewWriter(w)
	err := m.header(bw)
	if err != nil {
		return err
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var i int
	for sc.Scan() {
		l := sc.Text()
		if strings.HasPrefix(l, "##FASTA") {
			break
		}
		if strings.TrimSpace(l) == "" || strings.HasPrefix(l, "#") {
			continue
		}
		f := strings.Split(l, "\t")
		if len(f) != 9 {
			return fmt.Errorf("%w: %s: %d columns in %q", ErrMalformed, m.gffName, len(f), l)
		}
		typ := strings.TrimSpace(f[2])
		if typ == geneType || typ == crisprType {
			continue
		}
		if i == len(m.feats) {
			return fmt.Errorf("%w: %s has more features than %s", ErrCount, m.gffName, m.tblName)
		}
		feat := m.feats[i]
		i++
		err = m.check(f, feat)
		if err != nil {
			return err
		}
		locus := feat.Locus(m.genome)
		f[8] = setAttributes(f[8], locus)
		_, err = bw.WriteString(strings.Join(f, "\t") + "\n")
		if err != nil {
			return err
		}
	}
	err = sc.Err()
	if err != nil {
		return err
	}
	if i != len(m.feats) {
		return fmt.Errorf("%w: %s has %d features, %s has %d", ErrCount, m.gffName, i, m.tblName, len(m.feats))
	}
	return bw.Flush()
}

func (m *gffMerger) check(f []string, feat *Feature) error {
	contig := strings.TrimSpace(f[0])
	if !m.contigOf[contig] {
		return fmt.Errorf("%w: %s: %q", ErrMissingContig, m.gffName, contig)
	}
	id := attribute(f[8], "ID")
	for _, c := range []struct {
		field     string
		gff, want string
	}{
		{field: "contig", gff: contig, want: feat.Contig},
		{field: "start", gff: strings.TrimSpace(f[3]), want: strconv.Itoa(feat.Start)},
		{field: "end", gff: strings.TrimSpace(f[4]), want: strconv.Itoa(feat.End)},
		{field: "type", gff: strings.TrimSpace(f[2]), want: feat.Type},
	} {
		if c.gff != c.want {
			return fmt.Errorf("%w: %s and %s disagree on %s of %s: %s != %s",
				ErrMismatch, m.gffName, m.tblName, c.field, id, c.gff, c.want)
		}
	}
	return nil
}

// synthesize writes a GFF3 built from the table features alone.
func (m *gffMerger) synthesize(w io.Writer) error {
	bw := bufio.NewWriter(w)
	err := m.header(bw)
	if err != nil {
		return err
	}
	for _, f := range m.feats {
		strand := '+'
		if f.Strand == Complement {
			strand = '-'
		}
		locus := f.Locus(m.genome)
		attr := "ID=" + locus + ";locus_tag=" + locus
		if f.Gene != "" {
			attr += ";gene=" + f.Gene
		}
		if f.Product != "" {
			attr += ";product=" + escape(f.Product)
		}
		_, err = fmt.Fprintf(bw, "%s\t.\t%s\t%d\t%d\t.\t%c\t.\t%s\n", f.Contig, f.Type, f.Start, f.End, strand, attr)
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}

// attribute returns the value of key in a GFF3 attribute column.
func attribute(attrs, key string) string {
	for _, a := range strings.Split(attrs, ";") {
		k, v, ok := strings.Cut(a, "=")
		if ok && strings.TrimSpace(k) == key {
			return v
		}
	}
	return ""
}

// setAttributes replaces the ID and locus_tag values of attrs with locus,
// adding them when missing.
func setAttributes(attrs, locus string) string {
	var (
		parts      []string
		id, tagged bool
	)
	for _, a := range strings.Split(strings.TrimSpace(attrs), ";") {
		if a == "" {
			continue
		}
		k, _, _ := strings.Cut(a, "=")
		switch strings.TrimSpace(k) {
		case "ID":
			a, id = "ID="+locus, true
		case "locus_tag":
			a, tagged = "locus_tag="+locus, true
		}
		parts = append(parts, a)
	}
	if !tagged {
		parts = append(parts, "locus_tag="+locus)
	}
	if !id {
		parts = append([]string{"ID=" + locus}, parts...)
	}
	return strings.Join(parts, ";")
}

var gffEscaper = strings.NewReplacer(";", "%3B", "=", "%3D", "&", "%26", ",", "%2C", "\t", "%09")

func escape(s string) string { return gffEscaper.Replace(s) }
