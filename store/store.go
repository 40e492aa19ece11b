// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package store exports the genomes and gene families of a pangenome run
// to an SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/biogo/gembase/pangenome"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id  TEXT PRIMARY KEY,
	created TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS genomes (
	run_id    TEXT NOT NULL,
	genome_id TEXT NOT NULL,
	original  TEXT NOT NULL,
	size      INTEGER,
	contigs   INTEGER,
	l90       INTEGER,
	genes     INTEGER,
	PRIMARY KEY (run_id, genome_id)
);
CREATE TABLE IF NOT EXISTS gene_clusters (
	run_id     TEXT NOT NULL,
	cluster_id INTEGER NOT NULL,
	members    INTEGER NOT NULL,
	genomes    INTEGER NOT NULL,
	PRIMARY KEY (run_id, cluster_id)
);
CREATE TABLE IF NOT EXISTS gene_matches (
	run_id     TEXT NOT NULL,
	cluster_id INTEGER NOT NULL,
	genome_id  TEXT,
	contig_id  TEXT,
	gene_id    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS gene_matches_gene ON gene_matches (run_id, gene_id);
`

// Genome is a row of the genomes table.
type Genome struct {
	Name     string
	Original string
	Size     int
	Contigs  int
	L90      int
	Genes    int
}

// DB is a pangenome database.
type DB struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(schema)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema in %q: %w", path, err)
	}
	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error { return d.db.Close() }

// Export writes the genomes and families of the run in a single
// transaction.
func (d *DB) Export(ctx context.Context, run string, genomes []Genome, p *pangenome.Partition) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs (run_id, created) VALUES (?, ?)`, run, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store: run %s: %w", run, err)
	}

	stm, err := tx.PrepareContext(ctx, `INSERT INTO genomes (run_id, genome_id, original, size, contigs, l90, genes) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stm.Close()
	for _, g := range genomes {
		_, err = stm.ExecContext(ctx, run, g.Name, g.Original, g.Size, g.Contigs, g.L90, g.Genes)
		if err != nil {
			return fmt.Errorf("store: genome %s: %w", g.Name, err)
		}
	}

	clusters, err := tx.PrepareContext(ctx, `INSERT INTO gene_clusters (run_id, cluster_id, members, genomes) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer clusters.Close()
	matches, err := tx.PrepareContext(ctx, `INSERT INTO gene_matches (run_id, cluster_id, genome_id, contig_id, gene_id) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer matches.Close()
	for i, fam := range p.Families {
		num := i + 1
		seen := make(map[string]bool)
		for _, id := range fam {
			var genome, contig sql.NullString
			if l, ok := pangenome.ParseLocus(id); ok {
				genome = sql.NullString{String: l.Genome(), Valid: true}
				contig = sql.NullString{String: fmt.Sprintf("%s.%04d", l.Genome(), l.Contig), Valid: true}
				seen[l.Genome()] = true
			}
			_, err = matches.ExecContext(ctx, run, num, genome, contig, id)
			if err != nil {
				return fmt.Errorf("store: family %d member %s: %w", num, id, err)
			}
		}
		_, err = clusters.ExecContext(ctx, run, num, len(fam), len(seen))
		if err != nil {
			return fmt.Errorf("store: family %d: %w", num, err)
		}
	}
	return tx.Commit()
}

// Counts returns the number of genomes, clusters and matches stored for
// the run.
func (d *DB) Counts(ctx context.Context, run string) (genomes, clusters, matches int, err error) {
	for _, q := range []struct {
		table string
		dst   *int
	}{
		{table: "genomes", dst: &genomes},
		{table: "gene_clusters", dst: &clusters},
		{table: "gene_matches", dst: &matches},
	} {
		err = d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+q.table+` WHERE run_id = ?`, run).Scan(q.dst)
		if err != nil {
			return 0, 0, 0, err
		}
	}
	return genomes, clusters, matches, nil
}

// Genomes returns the genome rows of the run ordered by name.
func (d *DB) Genomes(ctx context.Context, run string) ([]Genome, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT genome_id, original, size, contigs, l90, genes FROM genomes WHERE run_id = ? ORDER BY genome_id`, run)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var genomes []Genome
	for rows.Next() {
		var g Genome
		err = rows.Scan(&g.Name, &g.Original, &g.Size, &g.Contigs, &g.L90, &g.Genes)
		if err != nil {
			return nil, err
		}
		genomes = append(genomes, g)
	}
	return genomes, rows.Err()
}

// ClusterOf returns the family holding the gene in the run, or zero if the
// gene is not in a family.
func (d *DB) ClusterOf(ctx context.Context, run, gene string) (int, error) {
	var num int
	err := d.db.QueryRowContext(ctx, `SELECT cluster_id FROM gene_matches WHERE run_id = ? AND gene_id = ?`, run, gene).Scan(&num)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return num, err
}
