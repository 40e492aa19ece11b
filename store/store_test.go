// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/biogo/gembase/pangenome"
	"github.com/google/uuid"
	"gopkg.in/check.v1"
)

func Test(t *testing.T) { check.TestingT(t) }

type S struct{}

var _ = check.Suite(&S{})

func (s *S) TestExport(c *check.C) {
	ctx := context.Background()
	path := filepath.Join(c.MkDir(), "pan.db")
	db, err := Open(path)
	c.Assert(err, check.IsNil)
	defer db.Close()

	genomes := []Genome{
		{Name: "ESCO.1017.00001", Original: "a.fna", Size: 5000, Contigs: 2, L90: 1, Genes: 3},
		{Name: "ESCO.1017.00002", Original: "b.fna", Size: 4000, Contigs: 9, L90: 4, Genes: 1},
	}
	p := &pangenome.Partition{Families: [][]string{
		{"ESCO.1017.00001.0001b_00001", "ESCO.1017.00001.0002i_00003", "ESCO.1017.00002.0001b_00001"},
		{"ESCO.1017.00001.0001i_00002"},
	}}
	run := uuid.NewString()
	c.Assert(db.Export(ctx, run, genomes, p), check.IsNil)

	g, cl, m, err := db.Counts(ctx, run)
	c.Assert(err, check.IsNil)
	c.Check([]int{g, cl, m}, check.DeepEquals, []int{2, 2, 4})

	rows, err := db.Genomes(ctx, run)
	c.Assert(err, check.IsNil)
	c.Check(rows, check.DeepEquals, genomes)

	num, err := db.ClusterOf(ctx, run, "ESCO.1017.00001.0001i_00002")
	c.Assert(err, check.IsNil)
	c.Check(num, check.Equals, 2)
	num, err = db.ClusterOf(ctx, run, "nothing")
	c.Assert(err, check.IsNil)
	c.Check(num, check.Equals, 0)

	// A second export of the same run fails without leaving rows.
	c.Check(db.Export(ctx, run, genomes, p), check.NotNil)
	g, cl, m, err = db.Counts(ctx, run)
	c.Assert(err, check.IsNil)
	c.Check([]int{g, cl, m}, check.DeepEquals, []int{2, 2, 4})

	// Runs are kept apart.
	other := uuid.NewString()
	c.Assert(db.Export(ctx, other, genomes[:1], &pangenome.Partition{}), check.IsNil)
	g, cl, m, err = db.Counts(ctx, other)
	c.Assert(err, check.IsNil)
	c.Check([]int{g, cl, m}, check.DeepEquals, []int{1, 0, 0})
}
