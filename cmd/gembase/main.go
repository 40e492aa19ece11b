// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// gembase builds a pangenome from bacterial draft genome assemblies.
//
// The qc command computes the assembly statistics of the genomes listed in
// a list file and selects those to annotate. The annotate command then
// annotates them with prokka and writes their gembase files. The pangenome
// command clusters the proteins of a gembase with mmseqs and writes the
// families and their presence and count matrices.
package main

import (
	"fmt"
	"os"
)

func main() {
	root, closeLog := newRoot()
	err := root.Execute()
	if cerr := closeLog(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
