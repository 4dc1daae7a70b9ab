// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package nlx

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Array is an n-dimensional array of float64 values stored in row-major order.
type Array struct {
	Shape []int     // Length of each axis, outermost first
	Data  []float64 // Values in row-major (C) order
}

// Len returns the total number of elements implied by the shape.
func (a Array) Len() int {
	if len(a.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

// At returns the element at the given index, one coordinate per axis.
func (a Array) At(idx ...int) (float64, error) {
	if len(idx) != len(a.Shape) {
		return 0, fmt.Errorf("index has %d axes, array has %d", len(idx), len(a.Shape))
	}
	off := 0
	for i, x := range idx {
		if x < 0 || x >= a.Shape[i] {
			return 0, fmt.Errorf("index %d out of range on axis %d (length %d)", x, i, a.Shape[i])
		}
		off = off*a.Shape[i] + x
	}
	return a.Data[off], nil
}

// Row returns the i'th row of a 2-D array. The returned slice aliases the array.
func (a Array) Row(i int) ([]float64, error) {
	if len(a.Shape) != 2 {
		return nil, fmt.Errorf("row of %d-D array", len(a.Shape))
	}
	if i < 0 || i >= a.Shape[0] {
		return nil, fmt.Errorf("row %d out of range (rows %d)", i, a.Shape[0])
	}
	cols := a.Shape[1]
	return a.Data[i*cols : (i+1)*cols], nil
}

// Flatten returns a copy of the array's values as a vector.
func (a Array) Flatten() []float64 {
	out := make([]float64, len(a.Data))
	copy(out, a.Data)
	return out
}

// BufferWindow is the number of samples kept before and after a threshold
// crossing when spike waveforms were extracted.
type BufferWindow struct {
	Before int
	After  int
}

// Params holds the spike preprocessing parameters stored alongside the LFP.
type Params struct {
	NStd          float64      // Standard deviations used for thresholding
	RawSpike      float64      // rawspk flag
	Resample      float64      // resamp flag
	SaveUpsampled float64      // saveupsamp flag
	SpikeRate     float64      // spkfq, spike sampling frequency
	Buffer        BufferWindow // spkbuff, transposed into a pair
}

// Record is the parsed content of one electrode file.
// The zero Record stands for an electrode whose file does not exist.
type Record struct {
	Electrode         int     // 1-based electrode index, 0 if parsed by path only
	Path              string  // File the record was parsed from
	SamplingRate      float64 // Fs, raw sampling frequency in Hz
	FirstTimestamp    float64 // firstts, first timestamp of the raw data
	LFPRate           float64 // lfpfq, LFP sampling frequency in Hz
	LFP               Array   // lfp, 1 x T
	LFPTimestamps     Array   // lfpts, same shape as LFP
	FirstLFPTimestamp float64 // lfpts[0][0]
	SpikeTimestamps   Array   // spkts
	SpikeWaveforms    Array   // spkwv
	Params            Params
}

// Empty reports whether the record is the missing-file sentinel.
func (r Record) Empty() bool {
	return r.Path == ""
}

// Samples returns the LFP values as a vector.
func (r Record) Samples() []float64 {
	return r.LFP.Flatten()
}

// Timestamps returns the LFP timestamps as a vector.
func (r Record) Timestamps() []float64 {
	return r.LFPTimestamps.Flatten()
}

// LFP is the LFP of all electrodes of a recording, combined into one
// electrodes x timepoints matrix.
type LFP struct {
	Electrodes   int        // Number of rows
	Timepoints   int        // Number of columns
	Matrix       *mat.Dense // Samples; NaN where an electrode is missing
	Timestamps   []float64  // Shared timestamp vector, length Timepoints
	SamplingRate float64    // Shared raw sampling rate (Fs)
	LFPRate      float64    // Shared LFP sampling rate (lfpfq)
	Missing      []int      // 1-based indices of electrodes without a file
}

// NewLFP returns an electrodes x timepoints LFP with every sample NaN.
// Both dimensions must be positive.
func NewLFP(electrodes, timepoints int) *LFP {
	data := make([]float64, electrodes*timepoints)
	for i := range data {
		data[i] = math.NaN()
	}
	return &LFP{
		Electrodes: electrodes,
		Timepoints: timepoints,
		Matrix:     mat.NewDense(electrodes, timepoints, data),
	}
}

// Row returns the samples of the electrode at 0-based row e.
// The returned slice aliases the matrix.
func (l *LFP) Row(e int) []float64 {
	return l.Matrix.RawRowView(e)
}

// At returns the sample of row e at timepoint t.
func (l *LFP) At(e, t int) float64 {
	return l.Matrix.At(e, t)
}
