// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package matfile reads and writes electrode files saved by MATLAB in the
// v7.3 format, which is HDF5 with a 512 byte user block.
package matfile

import (
	"fmt"
	"os"
	"strings"

	"github.com/OpenPSG/nlx"
	"gonum.org/v1/hdf5"
)

// matlabEmpty marks a dataset holding the dimensions of an empty array
// instead of its values.
const matlabEmpty = "MATLAB_empty"

// File is an electrode file opened for reading.
type File struct {
	f *hdf5.File
}

var _ nlx.File = (*File)(nil)

// Open opens the electrode file at path. It matches nlx.Opener.
func Open(path string) (nlx.File, error) {
	// Stat first so that an absent file is reported as fs.ErrNotExist.
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("error opening hdf5 file: %w", err)
	}

	return &File{f: f}, nil
}

// Array reads the named dataset as float64 values.
func (m *File) Array(name string) (nlx.Array, error) {
	if group, _, ok := strings.Cut(name, "/"); ok && !m.f.LinkExists(group) {
		return nlx.Array{}, fmt.Errorf("no group %q", group)
	}
	if !m.f.LinkExists(name) {
		return nlx.Array{}, fmt.Errorf("no dataset %q", name)
	}

	dset, err := m.f.OpenDataset(name)
	if err != nil {
		return nlx.Array{}, fmt.Errorf("error opening dataset: %w", err)
	}
	defer dset.Close()

	if attr, err := dset.OpenAttribute(matlabEmpty); err == nil {
		_ = attr.Close()
		return nlx.Array{Shape: []int{0, 0}}, nil
	}

	space := dset.Space()
	defer space.Close()

	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nlx.Array{}, fmt.Errorf("error reading dataset shape: %w", err)
	}

	a := nlx.Array{Shape: make([]int, len(dims))}
	for i, d := range dims {
		a.Shape[i] = int(d)
	}

	a.Data = make([]float64, space.SimpleExtentNPoints())
	if len(a.Data) > 0 {
		if err := dset.Read(&a.Data); err != nil {
			return nlx.Array{}, fmt.Errorf("error reading dataset values: %w", err)
		}
	}

	return a, nil
}

// Close closes the file.
func (m *File) Close() error {
	return m.f.Close()
}
