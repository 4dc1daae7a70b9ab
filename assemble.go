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
	"log/slog"
	"math"
	"slices"
)

// Config describes the electrode files of one recording.
type Config struct {
	Template   Template // Path of every electrode file
	Electrodes int      // Number of electrodes, files are numbered 1..Electrodes
	// SkipConsistencyCheck accepts electrodes whose sampling rate or
	// timestamps differ from the first electrode. Sample counts must
	// always agree.
	SkipConsistencyCheck bool
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if c.Template.IsZero() {
		return fmt.Errorf("%w: template is not set", ErrInvalidTemplate)
	}
	if c.Electrodes < 1 {
		return fmt.Errorf("electrode count must be at least 1, got %d", c.Electrodes)
	}
	return nil
}

// timebase is the sample clock shared by all electrodes of a recording.
type timebase struct {
	electrode    int
	timestamps   []float64
	samplingRate float64
	lfpRate      float64
}

func newTimebase(rec Record) timebase {
	return timebase{
		electrode:    rec.Electrode,
		timestamps:   rec.Timestamps(),
		samplingRate: rec.SamplingRate,
		lfpRate:      rec.LFPRate,
	}
}

func (tb timebase) check(rec Record, strict bool) error {
	if rec.LFP.Len() != len(tb.timestamps) {
		return fmt.Errorf("%w: electrode %d has %d samples, electrode %d has %d",
			ErrInconsistentInput, rec.Electrode, rec.LFP.Len(), tb.electrode, len(tb.timestamps))
	}
	if !strict {
		return nil
	}
	if rec.SamplingRate != tb.samplingRate {
		return fmt.Errorf("%w: electrode %d sampled at %v Hz, electrode %d at %v Hz",
			ErrInconsistentInput, rec.Electrode, rec.SamplingRate, tb.electrode, tb.samplingRate)
	}
	if !slices.EqualFunc(rec.LFPTimestamps.Data, tb.timestamps, sameTimestamp) {
		return fmt.Errorf("%w: electrode %d timestamps differ from electrode %d",
			ErrInconsistentInput, rec.Electrode, tb.electrode)
	}
	return nil
}

// sameTimestamp compares timestamps exactly, taking NaN as equal to NaN.
func sameTimestamp(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

// Assemble parses every electrode file and combines their LFP into one
// matrix. Rows of electrodes without a file are left NaN. The timebase is
// taken from the first electrode that has a file.
func Assemble(p *Parser, cfg Config) (*LFP, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		lfp     *LFP
		tb      timebase
		missing []int
	)
	for e := 1; e <= cfg.Electrodes; e++ {
		rec, err := p.ParseElectrode(cfg.Template, e)
		if err != nil {
			return nil, err
		}
		if rec.Empty() {
			missing = append(missing, e)
			continue
		}

		if lfp == nil {
			tb = newTimebase(rec)
			lfp = NewLFP(cfg.Electrodes, len(tb.timestamps))
			lfp.Timestamps = tb.timestamps
			lfp.SamplingRate = tb.samplingRate
			lfp.LFPRate = tb.lfpRate
		} else if err := tb.check(rec, !cfg.SkipConsistencyCheck); err != nil {
			return nil, err
		}

		copy(lfp.Row(e-1), rec.LFP.Data)
	}
	if lfp == nil {
		return nil, fmt.Errorf("%w: %s, %d electrodes", ErrNoElectrodes, cfg.Template, cfg.Electrodes)
	}
	lfp.Missing = missing

	p.logger().Info("assembled lfp",
		slog.Int("electrodes", lfp.Electrodes),
		slog.Int("timepoints", lfp.Timepoints),
		slog.Int("missing", len(missing)))

	return lfp, nil
}
