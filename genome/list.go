// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package genome

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ReadList reads a genome list. Each non-empty line not starting with '#'
// holds the genome files, joined by "::" when a genome is split over
// several files, optionally followed by a <species>[.<date>] code
// overriding the given defaults. File names are relative to dir.
func ReadList(r io.Reader, dir, species, date string) ([]*Descriptor, error) {
	var (
		genomes []*Descriptor
		seen    = make(map[string]int)
		sc      = bufio.NewScanner(r)
		line    int
	)
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		d := &Descriptor{Original: fields[0], Species: species, Date: date}
		if prev, ok := seen[d.Original]; ok {
			return nil, fmt.Errorf("genome: line %d: %q already listed at line %d", line, d.Original, prev)
		}
		seen[d.Original] = line
		for _, f := range strings.Split(fields[0], "::") {
			if f == "" {
				return nil, fmt.Errorf("genome: line %d: empty file name in %q", line, fields[0])
			}
			d.Source = append(d.Source, filepath.Join(dir, f))
		}
		if len(fields) > 1 {
			code := strings.SplitN(fields[1], ".", 2)
			d.Species = code[0]
			if len(code) == 2 {
				d.Date = code[1]
			}
		}
		if !ValidCode(d.Species) || !ValidCode(d.Date) {
			return nil, fmt.Errorf("genome: line %d: %q: %w", line, d.Code(), ErrBadCode)
		}
		genomes = append(genomes, d)
	}
	return genomes, sc.Err()
}

// ReadListFile is ReadList on the named file.
func ReadListFile(path, dir, species, date string) ([]*Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadList(f, dir, species, date)
}

// Missing returns the source files of the genomes that do not exist.
func Missing(genomes []*Descriptor) []string {
	var missing []string
	for _, d := range genomes {
		for _, p := range d.Source {
			if _, err := os.Stat(p); err != nil {
				missing = append(missing, p)
			}
		}
	}
	return missing
}
