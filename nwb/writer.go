// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package nwb writes LFP recordings into Neurodata Without Borders (HDF5)
// files.
package nwb

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/OpenPSG/nlx"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/hdf5"
)

// Writer writes an NWB file.
type Writer struct {
	f       *hdf5.File
	hdr     Header
	written bool // The LFP series has been created
}

// Create creates the NWB file at path and writes the session metadata.
func Create(path string, hdr Header) (*Writer, error) {
	if hdr.Identifier == "" {
		hdr.Identifier = uuid.NewString()
	}
	if hdr.ProcessingModule == "" {
		hdr.ProcessingModule = DefaultProcessingModule
	}
	if hdr.SessionStartTime.IsZero() {
		hdr.SessionStartTime = time.Now()
	}

	f, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	if err != nil {
		return nil, fmt.Errorf("error creating file: %w", err)
	}

	w := &Writer{f: f, hdr: hdr}
	if err := w.writeHeader(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("error writing header: %w", err)
	}

	return w, nil
}

// Header returns the header as written, with defaults filled in.
func (w *Writer) Header() Header {
	return w.hdr
}

// Close closes the file.
func (w *Writer) Close() error {
	return w.f.Close()
}

// WriteLFP writes a combined LFP matrix as the LFP series. Samples are
// stored time x electrodes.
func (w *Writer) WriteLFP(lfp *nlx.LFP) error {
	data, err := w.createSeries(SeriesInfo{
		Electrodes: lfp.Electrodes,
		Timestamps: lfp.Timestamps,
		Resolution: lfp.SamplingRate,
	})
	if err != nil {
		return err
	}
	defer closeAll(data)

	transposed := mat.DenseCopyOf(lfp.Matrix.T()).RawMatrix().Data

	for _, dset := range data {
		if err := dset.Write(&transposed); err != nil {
			return fmt.Errorf("error writing lfp data: %w", err)
		}
	}

	return nil
}

// SeriesWriter fills the LFP series one electrode column at a time.
type SeriesWriter struct {
	data       []*hdf5.Dataset
	electrodes int
	timepoints int
	written    []bool
}

// BeginLFP creates the LFP series and returns a SeriesWriter for its
// electrode columns. Columns never written are NaN once the SeriesWriter
// is closed.
func (w *Writer) BeginLFP(info SeriesInfo) (*SeriesWriter, error) {
	data, err := w.createSeries(info)
	if err != nil {
		return nil, err
	}

	return &SeriesWriter{
		data:       data,
		electrodes: info.Electrodes,
		timepoints: len(info.Timestamps),
		written:    make([]bool, info.Electrodes),
	}, nil
}

// WriteElectrode writes the samples of the given 1-based electrode.
func (sw *SeriesWriter) WriteElectrode(electrode int, samples []float64) error {
	if electrode < 1 || electrode > sw.electrodes {
		return fmt.Errorf("electrode %d out of range (electrodes %d)", electrode, sw.electrodes)
	}
	if len(samples) != sw.timepoints {
		return fmt.Errorf("electrode %d has %d samples, expected %d", electrode, len(samples), sw.timepoints)
	}

	for _, dset := range sw.data {
		if err := writeColumn(dset, electrode-1, samples); err != nil {
			return fmt.Errorf("error writing electrode %d: %w", electrode, err)
		}
	}
	sw.written[electrode-1] = true

	return nil
}

// Close fills the unwritten columns with NaN and releases the series.
func (sw *SeriesWriter) Close() error {
	var nan []float64
	for i, ok := range sw.written {
		if ok {
			continue
		}
		if nan == nil {
			nan = make([]float64, sw.timepoints)
			for j := range nan {
				nan[j] = math.NaN()
			}
		}
		if err := sw.WriteElectrode(i+1, nan); err != nil {
			closeAll(sw.data)
			return err
		}
	}

	return closeAll(sw.data)
}

// Abort releases the series without filling the unwritten columns.
func (sw *SeriesWriter) Abort() error {
	return closeAll(sw.data)
}

func writeColumn(dset *hdf5.Dataset, col int, samples []float64) error {
	filespace := dset.Space()
	defer filespace.Close()

	if err := filespace.SelectHyperslab(
		[]uint{0, uint(col)}, nil,
		[]uint{uint(len(samples)), 1}, nil,
	); err != nil {
		return err
	}

	memspace, err := hdf5.CreateSimpleDataspace([]uint{uint(len(samples)), 1}, nil)
	if err != nil {
		return err
	}
	defer memspace.Close()

	return dset.WriteSubset(&samples, memspace, filespace)
}

func closeAll(data []*hdf5.Dataset) error {
	var errs []error
	for _, dset := range data {
		errs = append(errs, dset.Close())
	}
	return errors.Join(errs...)
}
