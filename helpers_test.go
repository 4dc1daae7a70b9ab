// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package nlx_test

import (
	"fmt"
	"io/fs"

	"github.com/OpenPSG/nlx"
)

// memFS serves electrode files from memory.
type memFS struct {
	files  map[string]map[string]nlx.Array
	opened []string
	closed int
}

func newMemFS() *memFS {
	return &memFS{files: map[string]map[string]nlx.Array{}}
}

func (m *memFS) Open(path string) (nlx.File, error) {
	entries, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, fs.ErrNotExist)
	}
	m.opened = append(m.opened, path)
	return &memFile{fs: m, entries: entries}, nil
}

type memFile struct {
	fs      *memFS
	entries map[string]nlx.Array
}

func (f *memFile) Array(name string) (nlx.Array, error) {
	a, ok := f.entries[name]
	if !ok {
		return nlx.Array{}, fmt.Errorf("no entry %q", name)
	}
	return a, nil
}

func (f *memFile) Close() error {
	f.fs.closed++
	return nil
}

func scalar(v float64) nlx.Array {
	return nlx.Array{Shape: []int{1, 1}, Data: []float64{v}}
}

func row(v ...float64) nlx.Array {
	return nlx.Array{Shape: []int{1, len(v)}, Data: v}
}

// electrodeFile builds the entries of a well formed electrode file.
func electrodeFile(lfp, ts []float64) map[string]nlx.Array {
	return map[string]nlx.Array{
		"Fs":                scalar(32000),
		"firstts":           scalar(ts[0] - 10),
		"lfpfq":             scalar(1000),
		"lfp":               row(lfp...),
		"lfpts":             row(ts...),
		"spkts":             row(ts[0]+1, ts[0]+2),
		"spkwv":             {Shape: []int{2, 3}, Data: []float64{1, 2, 3, 4, 5, 6}},
		"params/n_std":      scalar(4),
		"params/rawspk":     scalar(0),
		"params/resamp":     scalar(1),
		"params/saveupsamp": scalar(0),
		"params/spkfq":      scalar(400),
		"params/spkbuff":    {Shape: []int{2, 1}, Data: []float64{8, 24}},
	}
}
