// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package matfile

import (
	"fmt"

	"github.com/OpenPSG/nlx"
	"gonum.org/v1/hdf5"
)

// WriteRecord saves rec to path using the same layout Open expects.
// An existing file is truncated.
func WriteRecord(path string, rec nlx.Record) (err error) {
	f, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	if err != nil {
		return fmt.Errorf("error creating hdf5 file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("error closing hdf5 file: %w", cerr)
		}
	}()

	params, err := f.CreateGroup("params")
	if err != nil {
		return fmt.Errorf("error creating params group: %w", err)
	}
	if err := params.Close(); err != nil {
		return err
	}

	scalar := func(v float64) nlx.Array {
		return nlx.Array{Shape: []int{1, 1}, Data: []float64{v}}
	}

	entries := []struct {
		name string
		a    nlx.Array
	}{
		{"Fs", scalar(rec.SamplingRate)},
		{"firstts", scalar(rec.FirstTimestamp)},
		{"lfpfq", scalar(rec.LFPRate)},
		{"lfp", rec.LFP},
		{"lfpts", rec.LFPTimestamps},
		{"spkts", rec.SpikeTimestamps},
		{"spkwv", rec.SpikeWaveforms},
		{"params/n_std", scalar(rec.Params.NStd)},
		{"params/rawspk", scalar(rec.Params.RawSpike)},
		{"params/resamp", scalar(rec.Params.Resample)},
		{"params/saveupsamp", scalar(rec.Params.SaveUpsampled)},
		{"params/spkfq", scalar(rec.Params.SpikeRate)},
		{"params/spkbuff", nlx.Array{
			Shape: []int{2, 1},
			Data:  []float64{float64(rec.Params.Buffer.Before), float64(rec.Params.Buffer.After)},
		}},
	}
	for _, e := range entries {
		if err := writeArray(f, e.name, e.a); err != nil {
			return fmt.Errorf("error writing %s: %w", e.name, err)
		}
	}

	return nil
}

func writeArray(f *hdf5.File, name string, a nlx.Array) error {
	if a.Len() == 0 {
		return writeEmpty(f, name, a.Shape)
	}
	if a.Len() != len(a.Data) {
		return fmt.Errorf("shape %v does not match %d values", a.Shape, len(a.Data))
	}

	dims := make([]uint, len(a.Shape))
	for i, d := range a.Shape {
		dims[i] = uint(d)
	}
	space, err := hdf5.CreateSimpleDataspace(dims, nil)
	if err != nil {
		return err
	}
	defer space.Close()

	dset, err := f.CreateDataset(name, hdf5.T_NATIVE_DOUBLE, space)
	if err != nil {
		return err
	}
	defer dset.Close()

	data := a.Data
	return dset.Write(&data)
}

// writeEmpty stores an empty array the way MATLAB does: a dataset holding
// the array's dimensions, flagged with the MATLAB_empty attribute.
func writeEmpty(f *hdf5.File, name string, shape []int) error {
	dims := []uint64{0, 0}
	if len(shape) > 0 {
		dims = make([]uint64, len(shape))
		for i, d := range shape {
			dims[i] = uint64(d)
		}
	}

	space, err := hdf5.CreateSimpleDataspace([]uint{uint(len(dims))}, nil)
	if err != nil {
		return err
	}
	defer space.Close()

	dset, err := f.CreateDataset(name, hdf5.T_NATIVE_UINT64, space)
	if err != nil {
		return err
	}
	defer dset.Close()

	if err := dset.Write(&dims); err != nil {
		return err
	}

	scalar, err := hdf5.CreateDataspace(hdf5.S_SCALAR)
	if err != nil {
		return err
	}
	defer scalar.Close()

	attr, err := dset.CreateAttribute(matlabEmpty, hdf5.T_NATIVE_UINT8, scalar)
	if err != nil {
		return err
	}
	defer attr.Close()

	flag := uint8(1)
	return attr.Write(&flag, hdf5.T_NATIVE_UINT8)
}
