// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/OpenPSG/nlx"
)

// recordDurations are tried longest first when choosing the data record
// length of an export.
var recordDurations = []float64{1, 0.5, 0.25, 0.2, 0.1, 0.05, 0.04, 0.025, 0.02, 0.01, 0.005, 0.002, 0.001}

// ExportOptions configures ExportLFP.
type ExportOptions struct {
	PatientID         string
	RecordingID       string
	StartTime         time.Time
	PhysicalDimension string // Defaults to "uV"
}

// ExportLFP writes lfp as an EDF recording with one signal per electrode,
// labelled E1..En. Missing samples are stored as the digital minimum.
func ExportLFP(w io.WriteSeeker, lfp *nlx.LFP, opts ExportOptions) error {
	if lfp.Electrodes < 1 || lfp.Timepoints < 1 {
		return fmt.Errorf("empty lfp: %d electrodes, %d timepoints", lfp.Electrodes, lfp.Timepoints)
	}

	spr, duration, err := recordLayout(lfp.LFPRate, lfp.Electrodes)
	if err != nil {
		return err
	}

	if opts.PhysicalDimension == "" {
		opts.PhysicalDimension = "uV"
	}

	hdr := Header{
		Version:            Version0,
		PatientID:          opts.PatientID,
		RecordingID:        opts.RecordingID,
		StartTime:          opts.StartTime,
		DataRecordDuration: duration,
		Signals:            make([]Signal, lfp.Electrodes),
	}
	for e := range hdr.Signals {
		pmin, pmax := physicalRange(lfp.Row(e))
		hdr.Signals[e] = Signal{
			Label:             "E" + strconv.Itoa(e+1),
			TransducerType:    "extracellular electrode",
			PhysicalDimension: opts.PhysicalDimension,
			PhysicalMin:       pmin,
			PhysicalMax:       pmax,
			DigitalMin:        DigitalMin,
			DigitalMax:        DigitalMax,
			Prefiltering:      "LFP " + formatNumber(lfp.LFPRate, 8) + "Hz",
			SamplesPerRecord:  spr,
		}
	}

	ew, err := Create(w, hdr)
	if err != nil {
		return err
	}

	record := make([][]float64, lfp.Electrodes)
	for e := range record {
		record[e] = make([]float64, spr)
	}
	for start := 0; start < lfp.Timepoints; start += spr {
		for e := range record {
			n := copy(record[e], lfp.Row(e)[start:])
			for i := n; i < spr; i++ {
				record[e][i] = math.NaN()
			}
		}
		if err := ew.WriteRecord(record); err != nil {
			return fmt.Errorf("error writing record at sample %d: %w", start, err)
		}
	}

	return ew.Close()
}

// recordLayout picks the longest record duration for which the samples per
// record are integral and a record of all electrodes fits MaxRecordBytes.
func recordLayout(rate float64, electrodes int) (int, time.Duration, error) {
	if !(rate > 0) || math.IsInf(rate, 0) {
		return 0, 0, fmt.Errorf("invalid lfp rate %v", rate)
	}

	for _, d := range recordDurations {
		exact := rate * d
		spr := math.Round(exact)
		if spr < 1 || math.Abs(exact-spr) > 1e-6 {
			continue
		}
		if int(spr)*electrodes*2 > MaxRecordBytes {
			continue
		}
		return int(spr), time.Duration(math.Round(d * float64(time.Second))), nil
	}

	return 0, 0, fmt.Errorf("no data record length fits %d electrodes at %v Hz", electrodes, rate)
}

// physicalRange returns the range of the finite samples, widened to values
// the header can hold so that no sample falls outside it.
func physicalRange(samples []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range samples {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo > hi {
		return -1, 1
	}
	if lo == hi {
		lo, hi = lo-1, hi+1
	}

	lo = roundField(lo, 8, false)
	hi = roundField(hi, 8, true)
	if lo >= hi {
		hi = lo + 1
	}
	return lo, hi
}

// roundField rounds v down, or up, to the most precise value that formats
// within width characters.
func roundField(v float64, width int, up bool) float64 {
	for prec := width; prec >= 0; prec-- {
		p := math.Pow10(prec)
		n := math.Floor(v * p)
		if up {
			n = math.Ceil(v * p)
		}
		// v*p is rounded itself and may land on the wrong side of v.
		if up && n/p < v {
			n++
		}
		if !up && n/p > v {
			n--
		}
		s := strconv.FormatFloat(n/p, 'f', prec, 64)
		if len(s) > width {
			continue
		}
		out, err := strconv.ParseFloat(s, 64)
		if err != nil {
			break
		}
		return out
	}
	return v
}
