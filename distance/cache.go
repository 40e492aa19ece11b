// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package distance

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/golang/snappy"
)

// The cache is a snappy framed stream holding, in little endian order:
//
//	magic   [8]byte  "GMBDIST2"
//	n       uint32   number of genomes
//	n × {len uint32, path [len]byte}, genome paths in rank order
//	pairs   uint64   number of stored distances
//	pairs × {i uint32, j uint32, dist float64 bits}, i < j, row-major order
var magic = [8]byte{'G', 'M', 'B', 'D', 'I', 'S', 'T', '2'}

// ErrBadCache is returned when a cache stream is not a distance cache.
var ErrBadCache = errors.New("distance: not a distance cache")

// WriteCache writes m to w. The genome of rank i of m is at paths[i].
func WriteCache(w io.Writer, paths []string, m *Matrix) error {
	if len(paths) != m.n {
		return fmt.Errorf("distance: %d paths for %d genomes", len(paths), m.n)
	}
	sw := snappy.NewBufferedWriter(w)
	err := binary.Write(sw, binary.LittleEndian, magic)
	if err != nil {
		return err
	}
	err = binary.Write(sw, binary.LittleEndian, uint32(m.n))
	if err != nil {
		return err
	}
	for _, p := range paths {
		err = binary.Write(sw, binary.LittleEndian, uint32(len(p)))
		if err != nil {
			return err
		}
		_, err = io.WriteString(sw, p)
		if err != nil {
			return err
		}
	}
	err = binary.Write(sw, binary.LittleEndian, uint64(len(m.d)))
	if err != nil {
		return err
	}
	var rec [16]byte
	err = m.do(func(i, j int, v float64) error {
		binary.LittleEndian.PutUint32(rec[0:], uint32(i))
		binary.LittleEndian.PutUint32(rec[4:], uint32(j))
		binary.LittleEndian.PutUint64(rec[8:], math.Float64bits(v))
		_, err := sw.Write(rec[:])
		return err
	})
	if err != nil {
		return err
	}
	return sw.Close()
}

// ReadCache reads a matrix written by WriteCache and the paths of its
// genomes.
func ReadCache(r io.Reader) ([]string, *Matrix, error) {
	br := bufio.NewReader(snappy.NewReader(r))
	var (
		head  [8]byte
		n     uint32
		pairs uint64
	)
	err := binary.Read(br, binary.LittleEndian, &head)
	if err != nil || head != magic {
		return nil, nil, ErrBadCache
	}
	err = binary.Read(br, binary.LittleEndian, &n)
	if err != nil {
		return nil, nil, fmt.Errorf("distance: reading cache: %w", err)
	}
	paths := make([]string, n)
	for i := range paths {
		var l uint32
		err = binary.Read(br, binary.LittleEndian, &l)
		if err != nil {
			return nil, nil, fmt.Errorf("distance: reading cache path %d: %w", i, err)
		}
		b := make([]byte, l)
		_, err = io.ReadFull(br, b)
		if err != nil {
			return nil, nil, fmt.Errorf("distance: reading cache path %d: %w", i, err)
		}
		paths[i] = string(b)
	}
	err = binary.Read(br, binary.LittleEndian, &pairs)
	if err != nil {
		return nil, nil, fmt.Errorf("distance: reading cache: %w", err)
	}
	m := NewMatrix(int(n))
	var rec [16]byte
	for k := uint64(0); k < pairs; k++ {
		_, err = io.ReadFull(br, rec[:])
		if err != nil {
			return nil, nil, fmt.Errorf("distance: reading cache pair %d: %w", k, err)
		}
		i := int(binary.LittleEndian.Uint32(rec[0:]))
		j := int(binary.LittleEndian.Uint32(rec[4:]))
		if i >= j || j >= m.n {
			return nil, nil, fmt.Errorf("%w: bad pair (%d, %d)", ErrBadCache, i, j)
		}
		m.d[pair{i, j}] = math.Float64frombits(binary.LittleEndian.Uint64(rec[8:]))
	}
	return paths, m, nil
}

// WriteCacheFile writes m to a new file at path.
func WriteCacheFile(path string, paths []string, m *Matrix) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	err = WriteCache(f, paths, m)
	cerr := f.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
	}
	return err
}

// ReadCacheFile reads the matrix cached at path.
func ReadCacheFile(path string) ([]string, *Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return ReadCache(f)
}
