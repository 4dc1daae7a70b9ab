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
	"io"
	"math"
)

// LFPReader reads the LFP of a recording one electrode at a time, parsing
// each file only when its electrode is requested.
type LFPReader struct {
	p       *Parser
	cfg     Config
	tb      timebase
	next    int // Next electrode to read, 1-based
	missing []int
	err     error // Sticky error of Next
}

// NewLFPReader establishes the timebase of the recording from the first
// electrode that has a file and returns a reader positioned at electrode 1.
func NewLFPReader(p *Parser, cfg Config) (*LFPReader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for e := 1; e <= cfg.Electrodes; e++ {
		rec, err := p.ParseElectrode(cfg.Template, e)
		if err != nil {
			return nil, err
		}
		if rec.Empty() {
			continue
		}
		return &LFPReader{
			p:    p,
			cfg:  cfg,
			tb:   newTimebase(rec),
			next: 1,
		}, nil
	}

	return nil, fmt.Errorf("%w: %s, %d electrodes", ErrNoElectrodes, cfg.Template, cfg.Electrodes)
}

// Electrodes returns the number of electrodes the reader yields.
func (r *LFPReader) Electrodes() int { return r.cfg.Electrodes }

// Timepoints returns the number of samples of every electrode.
func (r *LFPReader) Timepoints() int { return len(r.tb.timestamps) }

// Timestamps returns the shared timestamp vector.
func (r *LFPReader) Timestamps() []float64 { return r.tb.timestamps }

// SamplingRate returns the shared raw sampling rate.
func (r *LFPReader) SamplingRate() float64 { return r.tb.samplingRate }

// LFPRate returns the shared LFP sampling rate.
func (r *LFPReader) LFPRate() float64 { return r.tb.lfpRate }

// Missing returns the 1-based indices of the electrodes read so far that
// had no file.
func (r *LFPReader) Missing() []int { return r.missing }

// Next parses the next electrode and returns its 1-based index and samples.
// An electrode without a file yields NaN samples. After the last electrode
// Next returns io.EOF. Once Next has failed, every later call returns the
// same error without reading further.
func (r *LFPReader) Next() (int, []float64, error) {
	if r.err != nil {
		return 0, nil, r.err
	}
	if r.next > r.cfg.Electrodes {
		return 0, nil, io.EOF
	}
	e := r.next
	r.next++

	rec, err := r.p.ParseElectrode(r.cfg.Template, e)
	if err != nil {
		r.err = err
		return 0, nil, err
	}

	if rec.Empty() {
		r.missing = append(r.missing, e)
		samples := make([]float64, r.Timepoints())
		for i := range samples {
			samples[i] = math.NaN()
		}
		return e, samples, nil
	}

	if err := r.tb.check(rec, !r.cfg.SkipConsistencyCheck); err != nil {
		r.err = err
		return 0, nil, err
	}

	return e, rec.LFP.Data, nil
}
