// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package distance

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ReadMash reads a mash dist stream, "path1 path2 distance ..." per line,
// into a matrix over the given genome paths ranked by their position.
// A path absent from paths is an error.
func ReadMash(r io.Reader, paths []string) (*Matrix, error) {
	index := make(map[string]int, len(paths))
	for i, p := range paths {
		index[p] = i
	}
	m := NewMatrix(len(paths))
	sc := bufio.NewScanner(r)
	var line int
	for sc.Scan() {
		line++
		f := strings.Fields(sc.Text())
		if len(f) == 0 {
			continue
		}
		if len(f) < 3 {
			return nil, fmt.Errorf("distance: line %d: want at least 3 fields, got %d", line, len(f))
		}
		i, ok := index[f[0]]
		if !ok {
			return nil, fmt.Errorf("distance: line %d: unknown genome %q", line, f[0])
		}
		j, ok := index[f[1]]
		if !ok {
			return nil, fmt.Errorf("distance: line %d: unknown genome %q", line, f[1])
		}
		d, err := strconv.ParseFloat(f[2], 64)
		if err != nil {
			return nil, fmt.Errorf("distance: line %d: %w", line, err)
		}
		m.Set(i, j, d)
	}
	return m, sc.Err()
}

// Load returns the distance matrix over paths, reading the binary cache if
// it holds exactly paths in the same order, or else parsing the mash text
// output and caching the result. It returns ErrNoMatrix if the cache does
// not match and the text output does not exist.
func Load(cache, text string, paths []string, log *zap.Logger) (*Matrix, error) {
	if _, err := os.Stat(cache); err == nil {
		cached, m, err := ReadCacheFile(cache)
		if err != nil {
			return nil, err
		}
		if equal(cached, paths) {
			log.Warn("distance matrix already computed, loading it", zap.String("path", cache))
			return m, nil
		}
		log.Warn("distance matrix cached for other genomes, rebuilding it", zap.String("path", cache))
	}
	f, err := os.Open(text)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: no matrix for these genomes in %q and %q does not exist", ErrNoMatrix, cache, text)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := ReadMash(f, paths)
	if err != nil {
		return nil, fmt.Errorf("distance: %q: %w", text, err)
	}
	err = WriteCacheFile(cache, paths, m)
	if err != nil {
		return nil, err
	}
	log.Info("distance matrix cached", zap.String("path", cache), zap.Int("pairs", m.Pairs()))
	return m, nil
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Mash computes all-pairs distances with the mash sketch and dist commands.
type Mash struct {
	Exec    string
	Threads int
	Dir     string // Directory holding the sketch and distance files.
	Log     *zap.Logger
}

// NewMash returns a Mash working in dir. It fails if mash is not installed.
func NewMash(dir string, threads int, log *zap.Logger) (*Mash, error) {
	path, err := exec.LookPath("mash")
	if err != nil {
		return nil, fmt.Errorf("distance: could not find mash executable: %w", err)
	}
	if threads < 1 {
		threads = 1
	}
	return &Mash{Exec: path, Threads: threads, Dir: dir, Log: log}, nil
}

// Files returns the binary cache and mash text output paths of the run.
func (m *Mash) Files() (cache, text string) {
	return filepath.Join(m.Dir, "mash.dist.bin"), filepath.Join(m.Dir, "mash.dist.txt")
}

// Matrix returns the distances between the genome sequences at paths,
// reusing any file left by a previous run over the same genomes.
func (m *Mash) Matrix(ctx context.Context, paths []string) (*Matrix, error) {
	cache, text := m.Files()
	err := os.MkdirAll(m.Dir, 0o755)
	if err != nil {
		return nil, err
	}
	sketch := filepath.Join(m.Dir, "sketch.msh")
	list := filepath.Join(m.Dir, "sketch.list")
	want := strings.Join(paths, "\n") + "\n"
	if got, err := os.ReadFile(list); err != nil || string(got) != want {
		// Files left by a run over other genomes are stale.
		for _, p := range []string{sketch, text, cache} {
			err = os.Remove(p)
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
		err = os.WriteFile(list, []byte(want), 0o644)
		if err != nil {
			return nil, err
		}
	}
	if _, err := os.Stat(cache); err == nil {
		return Load(cache, text, paths, m.Log)
	}
	if _, err := os.Stat(sketch); err == nil {
		m.Log.Warn("mash sketch exists, skipping", zap.String("path", sketch))
	} else {
		err = m.run(ctx, nil, "sketch", "-o", strings.TrimSuffix(sketch, ".msh"), "-p", strconv.Itoa(m.Threads), "-l", list)
		if err != nil {
			os.Remove(sketch)
			return nil, err
		}
	}
	if _, err := os.Stat(text); err == nil {
		m.Log.Warn("mash distances exist, skipping", zap.String("path", text))
	} else {
		out, err := os.Create(text)
		if err != nil {
			return nil, err
		}
		err = m.run(ctx, out, "dist", "-p", strconv.Itoa(m.Threads), sketch, sketch)
		cerr := out.Close()
		if err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(text)
			return nil, err
		}
	}
	return Load(cache, text, paths, m.Log)
}

func (m *Mash) run(ctx context.Context, stdout io.Writer, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, m.Exec, args...)
	cmd.Stdout = stdout
	cmd.Stderr = &stderr
	m.Log.Debug("running mash", zap.Strings("args", args))
	err := cmd.Run()
	if err != nil {
		return fmt.Errorf("distance: mash %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
