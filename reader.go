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
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
)

// File is an opened electrode file.
type File interface {
	// Array returns the named entry. Entries inside a group are addressed
	// with a slash separated path, e.g. "params/n_std".
	Array(name string) (Array, error)
	// Close releases the underlying file.
	Close() error
}

// Opener opens the electrode file at path. An absent file must be reported
// with an error matching fs.ErrNotExist.
type Opener func(path string) (File, error)

// Parser reads electrode files into Records.
type Parser struct {
	Open   Opener
	Logger *slog.Logger // Defaults to slog.Default()
}

// NewParser returns a Parser opening files with open.
func NewParser(open Opener, logger *slog.Logger) *Parser {
	return &Parser{Open: open, Logger: logger}
}

func (p *Parser) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

// ParseElectrode parses the file of the given 1-based electrode.
func (p *Parser) ParseElectrode(t Template, electrode int) (Record, error) {
	rec, err := p.Parse(t.Path(electrode))
	if err != nil {
		return Record{}, fmt.Errorf("electrode %d: %w", electrode, err)
	}
	if !rec.Empty() {
		rec.Electrode = electrode
	}
	return rec, nil
}

// Parse reads the electrode file at path. A file that does not exist is
// skipped: Parse returns the zero Record and no error.
func (p *Parser) Parse(path string) (rec Record, err error) {
	f, err := p.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			p.logger().Info("skipped electrode file", slog.String("path", path))
			return Record{}, nil
		}
		return Record{}, fmt.Errorf("error opening %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("error closing %s: %w", path, cerr))
		}
	}()
	p.logger().Debug("opened electrode file", slog.String("path", path))

	rec = Record{Path: path}

	scalars := []struct {
		name string
		dst  *float64
	}{
		{"Fs", &rec.SamplingRate},
		{"firstts", &rec.FirstTimestamp},
		{"lfpfq", &rec.LFPRate},
		{"params/n_std", &rec.Params.NStd},
		{"params/rawspk", &rec.Params.RawSpike},
		{"params/resamp", &rec.Params.Resample},
		{"params/saveupsamp", &rec.Params.SaveUpsampled},
		{"params/spkfq", &rec.Params.SpikeRate},
	}
	for _, s := range scalars {
		a, err := f.Array(s.name)
		if err != nil {
			return Record{}, fmt.Errorf("error reading %s: %w", s.name, err)
		}
		if *s.dst, err = Scalar(a); err != nil {
			return Record{}, fmt.Errorf("error reading %s: %w", s.name, err)
		}
	}

	arrays := []struct {
		name string
		dst  *Array
	}{
		{"lfp", &rec.LFP},
		{"lfpts", &rec.LFPTimestamps},
		{"spkts", &rec.SpikeTimestamps},
		{"spkwv", &rec.SpikeWaveforms},
	}
	for _, a := range arrays {
		if *a.dst, err = f.Array(a.name); err != nil {
			return Record{}, fmt.Errorf("error reading %s: %w", a.name, err)
		}
	}

	if rec.LFPTimestamps.Len() == 0 {
		return Record{}, fmt.Errorf("%w: lfpts is empty", ErrUnexpectedInput)
	}
	if rec.LFP.Len() != rec.LFPTimestamps.Len() {
		return Record{}, fmt.Errorf("%w: lfp has %d samples, lfpts has %d", ErrUnexpectedInput, rec.LFP.Len(), rec.LFPTimestamps.Len())
	}
	rec.FirstLFPTimestamp = rec.LFPTimestamps.Data[0]

	if steps := rec.LFPTimestamps.Data; len(steps) > 1 {
		lo, hi := math.Inf(1), math.Inf(-1)
		for i := 1; i < len(steps); i++ {
			d := steps[i] - steps[i-1]
			lo = math.Min(lo, d)
			hi = math.Max(hi, d)
		}
		p.logger().Debug("lfp timestamp step", slog.String("path", path), slog.Float64("min", lo), slog.Float64("max", hi))
	}

	spkbuff, err := f.Array("params/spkbuff")
	if err != nil {
		return Record{}, fmt.Errorf("error reading params/spkbuff: %w", err)
	}
	if rec.Params.Buffer.Before, rec.Params.Buffer.After, err = Pair(spkbuff); err != nil {
		return Record{}, fmt.Errorf("error reading params/spkbuff: %w", err)
	}

	return rec, nil
}
